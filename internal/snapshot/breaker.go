package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker around a Provider.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	OnStateChange    func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig trips after five consecutive failures and probes
// again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "snapshot-provider",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker wraps a Provider with a circuit breaker. NOT_READY and NOT_FOUND
// answers are normal results and never count towards tripping.
type Breaker struct {
	next  Provider
	cb    *gobreaker.CircuitBreaker[any]
	clock clock.Clock
}

// NewBreaker returns next guarded by a circuit breaker built from cfg.
func NewBreaker(next Provider, cfg BreakerConfig, clk clock.Clock) *Breaker {
	if clk == nil {
		clk = clock.WallClock
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotReady(err) || IsNotFound(err)
		},
	}
	return &Breaker{
		next:  next,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
		clock: clk,
	}
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) VerifyInstance(ctx context.Context, instance, zone string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.VerifyInstance(ctx, instance, zone)
	})
	return b.translate(OpVerify, instance, err)
}

func (b *Breaker) CreateSnapshot(ctx context.Context, name, instance, zone string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.CreateSnapshot(ctx, name, instance, zone)
	})
	return b.translate(OpCreate, name, err)
}

func (b *Breaker) DescribeSnapshot(ctx context.Context, name string) (*Description, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.DescribeSnapshot(ctx, name)
	})
	if err != nil {
		return nil, b.translate(OpDescribe, name, err)
	}
	desc, _ := res.(*Description)
	return desc, nil
}

func (b *Breaker) DeleteSnapshot(ctx context.Context, name string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.DeleteSnapshot(ctx, name)
	})
	return b.translate(OpDelete, name, err)
}

func (b *Breaker) translate(op, resource string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		e := NewError(CodeCommand, op, resource, "circuit open", b.clock.Now())
		e.cause = err
		return e
	}
	return err
}
