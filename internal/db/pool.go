package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/rs/zerolog"
)

// PoolConfig controls how the core pool is opened.
type PoolConfig struct {
	URL string
	// Attempts is how many times to try connecting before giving up.
	Attempts int
	// Delay is the wait before the second attempt. It doubles on each
	// further attempt up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    clock.Clock
}

// NewCorePool opens the core database pool, retrying with backoff while the
// database is not reachable yet.
func NewCorePool(ctx context.Context, cfg PoolConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse core db config: %w", err)
	}

	var pool *pgxpool.Pool
	err = withRetry(ctx, cfg, logger, func() error {
		p, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return fmt.Errorf("create core db pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping core db: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func withRetry(ctx context.Context, cfg PoolConfig, logger zerolog.Logger, fn func() error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = fn()
			return lastErr
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("database not reachable")
		},
		Attempts:    attempts,
		Delay:       delay,
		MaxDelay:    maxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clk,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		return fmt.Errorf("connect to core db after %d attempts: %w", attempts, lastErr)
	}
	if err != nil {
		return fmt.Errorf("connect to core db: %w", err)
	}
	return nil
}
