package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/vdesk/internal/billing"
	"github.com/edvin/vdesk/internal/snapshot"
)

type Services struct {
	Auth     *AuthService
	Instance *InstanceService
	Backup   *BackupService
	Cost     *CostService
	Tasks    *TaskRegistry
}

// ServicesConfig carries the settings NewServices needs beyond the database.
type ServicesConfig struct {
	JWTSecret   string
	JWTIssuer   string
	StorageRate float64
	Backup      BackupConfig
}

// NewServices wires the services on top of db. provider may be nil.
func NewServices(db DB, provider snapshot.Provider, cfg ServicesConfig, logger zerolog.Logger) *Services {
	clk := cfg.Backup.Clock
	costs := billing.NewCalculator(cfg.StorageRate, clk)
	store := NewBackupStore(db, clk)
	instances := NewInstanceService(db, costs)
	tasks := NewTaskRegistry(logger)

	return &Services{
		Auth:     NewAuthService(db, cfg.JWTSecret, cfg.JWTIssuer, clk),
		Instance: instances,
		Backup:   NewBackupService(store, instances, provider, tasks, costs, cfg.Backup, logger),
		Cost:     NewCostService(store, instances, costs),
		Tasks:    tasks,
	}
}
