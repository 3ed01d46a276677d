package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL       string
	JWTSecret         string
	JWTIssuer         string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
	CORSOrigins       []string
	// RateLimitPerMinute caps backup creation requests per caller.
	RateLimitPerMinute int

	StorageRatePerGBHour float64

	SnapshotPollInterval time.Duration
	// SnapshotPollTimeout of zero polls until the snapshot settles.
	SnapshotPollTimeout  time.Duration
	SimulatedBackupDelay time.Duration
	SimulatedBackupSize  int

	GCEProject         string
	GCECredentialsFile string

	DBConnectAttempts int
	DBConnectDelay    time.Duration

	ReconcileOnStartup bool
}

func Load() (*Config, error) {
	var corsList []string
	for _, o := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173"), ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			corsList = append(corsList, trimmed)
		}
	}

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "vdesk-api"),
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:  getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServiceName:        getEnv("SERVICE_NAME", "vdesk-api"),
		CORSOrigins:        corsList,
		GCEProject:         getEnv("GCE_PROJECT", ""),
		GCECredentialsFile: getEnv("GCE_CREDENTIALS_FILE", ""),
	}

	p := parser{}
	cfg.RateLimitPerMinute = p.int("RATE_LIMIT_PER_MINUTE", 60)
	cfg.StorageRatePerGBHour = p.float("STORAGE_RATE_PER_GB_HOUR", 2.306)
	cfg.SnapshotPollInterval = p.duration("SNAPSHOT_POLL_INTERVAL", 5*time.Second)
	cfg.SnapshotPollTimeout = p.duration("SNAPSHOT_POLL_TIMEOUT", 0)
	cfg.SimulatedBackupDelay = p.duration("SIMULATED_BACKUP_DELAY", 3*time.Second)
	cfg.SimulatedBackupSize = p.int("SIMULATED_BACKUP_SIZE_GB", 10)
	cfg.DBConnectAttempts = p.int("DB_CONNECT_ATTEMPTS", 5)
	cfg.DBConnectDelay = p.duration("DB_CONNECT_DELAY", time.Second)
	cfg.ReconcileOnStartup = p.bool("RECONCILE_ON_STARTUP", true)

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(p.errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.StorageRatePerGBHour < 0 {
		return fmt.Errorf("STORAGE_RATE_PER_GB_HOUR must not be negative")
	}
	if c.SnapshotPollInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_POLL_INTERVAL must be positive")
	}
	if c.SnapshotPollTimeout < 0 {
		return fmt.Errorf("SNAPSHOT_POLL_TIMEOUT must not be negative")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// SnapshotProviderEnabled reports whether backups of provider-managed
// instances go to GCE. Without a project every backup is simulated.
func (c *Config) SnapshotProviderEnabled() bool {
	return c.GCEProject != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser reads typed env vars, collecting every malformed key.
type parser struct {
	errs []string
}

func (p *parser) int(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a number", key, v))
		return fallback
	}
	return f
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func (p *parser) bool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}
