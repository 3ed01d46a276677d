package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/edvin/vdesk/internal/api"
	"github.com/edvin/vdesk/internal/config"
	"github.com/edvin/vdesk/internal/core"
	"github.com/edvin/vdesk/internal/db"
	"github.com/edvin/vdesk/internal/logging"
	"github.com/edvin/vdesk/internal/metrics"
	"github.com/edvin/vdesk/internal/snapshot"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		logger.Info().Msg("migrations complete")
	}

	pool, err := db.NewCorePool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		Attempts: cfg.DBConnectAttempts,
		Delay:    cfg.DBConnectDelay,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
		logger.Warn().Err(err).Msg("failed to register pool metrics")
	}

	provider, err := newSnapshotProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create snapshot provider")
	}

	backupCfg := core.DefaultBackupConfig()
	backupCfg.PollInterval = cfg.SnapshotPollInterval
	backupCfg.PollTimeout = cfg.SnapshotPollTimeout
	backupCfg.SimulatedDelay = cfg.SimulatedBackupDelay
	backupCfg.SimulatedSizeGB = cfg.SimulatedBackupSize

	services := core.NewServices(pool, provider, core.ServicesConfig{
		JWTSecret:   cfg.JWTSecret,
		JWTIssuer:   cfg.JWTIssuer,
		StorageRate: cfg.StorageRatePerGBHour,
		Backup:      backupCfg,
	}, logger)

	if cfg.ReconcileOnStartup {
		n, err := services.Backup.Reconcile(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("backup reconciliation failed")
		} else {
			logger.Info().Int("backups", n).Msg("reconciled orphaned backups")
		}
	}

	srv := api.NewServer(logger, pool, services, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting vdesk API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsListenAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsListenAddr, pool.Ping)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	httpServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	// Cancelled jobs leave their backups in CREATING for the next start to reconcile.
	if err := services.Tasks.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("background backup jobs did not stop in time")
	}
}

// newSnapshotProvider returns the GCE provider behind a circuit breaker, or
// nil when no project is configured so that every backup is simulated.
func newSnapshotProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (snapshot.Provider, error) {
	if !cfg.SnapshotProviderEnabled() {
		logger.Warn().Msg("GCE_PROJECT not set, backups will be simulated")
		return nil, nil
	}

	gce, err := snapshot.NewGCE(ctx, cfg.GCEProject, cfg.GCECredentialsFile)
	if err != nil {
		return nil, err
	}

	breakerCfg := snapshot.DefaultBreakerConfig()
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		metrics.ProviderBreakerState.WithLabelValues(name).Set(float64(to))
		logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("snapshot provider circuit breaker state changed")
	}
	return snapshot.NewBreaker(gce, breakerCfg, clock.WallClock), nil
}
