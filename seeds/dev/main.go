package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/edvin/vdesk/internal/core"
	"github.com/edvin/vdesk/internal/db"
	"github.com/edvin/vdesk/internal/model"
)

type seedFile struct {
	Users     []userEntry     `yaml:"users"`
	Instances []instanceEntry `yaml:"instances"`
}

type userEntry struct {
	ID          string `yaml:"id"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
	Approved    bool   `yaml:"approved"`
}

type instanceEntry struct {
	ID                 string  `yaml:"id"`
	OwnerID            string  `yaml:"owner_id"`
	Name               string  `yaml:"name"`
	Zone               string  `yaml:"zone"`
	ProviderInstanceID string  `yaml:"provider_instance_id"`
	DiskSizeGB         int     `yaml:"disk_size_gb"`
	HourlyRate         float64 `yaml:"hourly_rate"`
	StartedHoursAgo    float64 `yaml:"started_hours_ago"`
	DeletedHoursAgo    float64 `yaml:"deleted_hours_ago"`
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.RunMigrations(databaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "run migrations: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	sf, err := loadSeedFile()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("Seeding vdesk database...")

	for _, u := range sf.Users {
		fmt.Printf("  Inserting user %s...\n", u.Email)
		if err := seedUser(ctx, pool, u); err != nil {
			fmt.Fprintf(os.Stderr, "insert user %s: %v\n", u.Email, err)
			os.Exit(1)
		}
	}

	now := time.Now().UTC()
	for _, inst := range sf.Instances {
		fmt.Printf("  Inserting instance %s...\n", inst.Name)
		if err := seedInstance(ctx, pool, inst, now); err != nil {
			fmt.Fprintf(os.Stderr, "insert instance %s: %v\n", inst.Name, err)
			os.Exit(1)
		}
	}

	fmt.Println("Done.")
}

// loadSeedFile reads seed.yaml next to this source file.
func loadSeedFile() (*seedFile, error) {
	_, thisFile, _, _ := runtime.Caller(0)
	yamlPath := filepath.Join(filepath.Dir(thisFile), "seed.yaml")

	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read seed.yaml: %w", err)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed.yaml: %w", err)
	}
	return &sf, nil
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, u userEntry) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	var displayName *string
	if u.DisplayName != "" {
		displayName = &u.DisplayName
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, approved) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash,
		 display_name = EXCLUDED.display_name, approved = EXCLUDED.approved`,
		u.ID, u.Email, core.HashPassword(u.Password, salt), displayName, u.Approved)
	return err
}

func seedInstance(ctx context.Context, pool *pgxpool.Pool, inst instanceEntry, now time.Time) error {
	createdAt := now.Add(-hours(inst.StartedHoursAgo))
	status := model.InstanceStatusRunning
	var deletedAt *time.Time
	if inst.DeletedHoursAgo > 0 {
		t := now.Add(-hours(inst.DeletedHoursAgo))
		deletedAt = &t
		status = model.InstanceStatusDeleted
	}
	var providerID *string
	if inst.ProviderInstanceID != "" {
		providerID = &inst.ProviderInstanceID
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO instances (id, owner_id, name, zone, provider_instance_id, disk_size_gb, hourly_rate, status, created_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, zone = EXCLUDED.zone,
		 provider_instance_id = EXCLUDED.provider_instance_id, disk_size_gb = EXCLUDED.disk_size_gb,
		 hourly_rate = EXCLUDED.hourly_rate, status = EXCLUDED.status,
		 created_at = EXCLUDED.created_at, deleted_at = EXCLUDED.deleted_at`,
		inst.ID, inst.OwnerID, inst.Name, inst.Zone, providerID, inst.DiskSizeGB, inst.HourlyRate, status, createdAt, deletedAt)
	return err
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
