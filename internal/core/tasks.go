package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/vdesk/internal/metrics"
)

// TaskRegistry runs background jobs keyed by backup id. Each job gets its own
// cancellable context derived from the registry's root context.
type TaskRegistry struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	tasks  map[string]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	logger zerolog.Logger
}

func NewTaskRegistry(logger zerolog.Logger) *TaskRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRegistry{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]context.CancelFunc),
		logger: logger.With().Str("component", "task-registry").Logger(),
	}
}

// Spawn starts fn in a new goroutine registered under id. It returns false
// without starting anything if id is already running or the registry has
// been shut down.
func (r *TaskRegistry) Spawn(id string, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, running := r.tasks[id]; running {
		return false
	}

	ctx, cancel := context.WithCancel(r.ctx)
	r.tasks[id] = cancel
	r.wg.Add(1)
	metrics.BackupTasksActive.Inc()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error().Str("backup_id", id).Str("panic", fmt.Sprint(p)).Msg("background task panicked")
			}
			r.mu.Lock()
			delete(r.tasks, id)
			r.mu.Unlock()
			cancel()
			metrics.BackupTasksActive.Dec()
			r.wg.Done()
		}()
		fn(ctx)
	}()
	return true
}

// Has reports whether a task is running for id.
func (r *TaskRegistry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// Cancel stops the task running for id, if any.
func (r *TaskRegistry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.tasks[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Len returns the number of running tasks.
func (r *TaskRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Shutdown cancels every task and waits for them to return or for ctx to
// expire. No new tasks are accepted afterwards.
func (r *TaskRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	pending := len(r.tasks)
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info().Int("tasks", pending).Msg("background tasks drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain background tasks: %w", ctx.Err())
	}
}
