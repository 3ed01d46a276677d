package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/rs/zerolog"

	"github.com/edvin/vdesk/internal/billing"
	"github.com/edvin/vdesk/internal/metrics"
	"github.com/edvin/vdesk/internal/model"
	"github.com/edvin/vdesk/internal/platform"
	"github.com/edvin/vdesk/internal/snapshot"
)

// Messages recorded on backups that fail outside a provider call.
const (
	msgInterruptedByRestart = "backup interrupted by restart"
	msgProviderUnavailable  = "snapshot provider not configured"
)

// BackupRecords is the persistence used by BackupService. *BackupStore
// satisfies it.
type BackupRecords interface {
	Create(ctx context.Context, nb NewBackup) (*model.Backup, error)
	GetByID(ctx context.Context, id string) (*model.Backup, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Backup, error)
	ListByStatus(ctx context.Context, status model.BackupStatus) ([]model.Backup, error)
	UpdateStatus(ctx context.Context, id string, next model.BackupStatus, fields UpdateFields) (*model.Backup, error)
	Delete(ctx context.Context, id string) (*model.Backup, error)
}

// InstanceLookup resolves the source instance of a backup request.
type InstanceLookup interface {
	GetByID(ctx context.Context, id string) (*model.Instance, error)
}

// BackupConfig controls the background snapshot job.
type BackupConfig struct {
	// PollInterval is the wait between describe-snapshot calls.
	PollInterval time.Duration
	// PollTimeout bounds the polling loop. Zero polls until the snapshot
	// is ready or fails.
	PollTimeout time.Duration
	// SimulatedDelay is how long a backup of a non-provider instance takes.
	SimulatedDelay time.Duration
	// SimulatedSizeGB is used when the source instance has no disk size.
	SimulatedSizeGB int
	// StoreRetryDelay is the first wait before retrying a terminal status
	// write that failed with ErrStoreUnavailable. It doubles up to
	// StoreRetryMaxDelay.
	StoreRetryDelay    time.Duration
	StoreRetryMaxDelay time.Duration
	// StoreRetryAttempts caps those retries. Zero retries until the job is
	// cancelled.
	StoreRetryAttempts int
	Clock              clock.Clock
}

// DefaultBackupConfig polls every five seconds with no timeout.
func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		PollInterval:    5 * time.Second,
		SimulatedDelay:  3 * time.Second,
		SimulatedSizeGB:    10,
		StoreRetryDelay:    time.Second,
		StoreRetryMaxDelay: 30 * time.Second,
		Clock:              clock.WallClock,
	}
}

// BackupService drives backups from the create request through the
// background snapshot job to COMPLETED or ERROR, and handles reads and
// deletes on behalf of their owner.
type BackupService struct {
	store     BackupRecords
	instances InstanceLookup
	provider  snapshot.Provider
	tasks     *TaskRegistry
	costs     *billing.Calculator
	cfg       BackupConfig
	logger    zerolog.Logger
}

// NewBackupService creates a BackupService. provider may be nil, in which
// case every backup is simulated.
func NewBackupService(store BackupRecords, instances InstanceLookup, provider snapshot.Provider, tasks *TaskRegistry, costs *billing.Calculator, cfg BackupConfig, logger zerolog.Logger) *BackupService {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.SimulatedSizeGB <= 0 {
		cfg.SimulatedSizeGB = 10
	}
	if cfg.StoreRetryDelay <= 0 {
		cfg.StoreRetryDelay = time.Second
	}
	if cfg.StoreRetryMaxDelay <= 0 {
		cfg.StoreRetryMaxDelay = 30 * time.Second
	}
	return &BackupService{
		store:     store,
		instances: instances,
		provider:  provider,
		tasks:     tasks,
		costs:     costs,
		cfg:       cfg,
		logger:    logger.With().Str("component", "backup").Logger(),
	}
}

// Create validates the request, persists a CREATING backup and starts the
// background snapshot job. It returns as soon as the record exists.
func (s *BackupService) Create(ctx context.Context, callerID, instanceID, name string) (*model.Backup, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", instanceID, err)
	}
	if inst.Status == model.InstanceStatusDeleted {
		return nil, fmt.Errorf("instance %s is deleted: %w", instanceID, ErrNotFound)
	}
	if inst.OwnerID != callerID {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrForbidden)
	}

	name, err = ValidateBackupName(name)
	if err != nil {
		return nil, err
	}

	remote := s.isRemote(inst)
	if remote {
		if err := s.provider.VerifyInstance(ctx, *inst.ProviderInstanceID, inst.Zone); err != nil {
			if snapshot.IsNotFound(err) {
				return nil, fmt.Errorf("instance %s not found by snapshot provider: %w", instanceID, ErrNotFound)
			}
			return nil, fmt.Errorf("verify instance %s: %w", instanceID, err)
		}
	}

	b, err := s.store.Create(ctx, NewBackup{
		OwnerID:              callerID,
		SourceInstanceID:     &inst.ID,
		Name:                 name,
		ProviderSnapshotName: platform.SnapshotName(inst.ID, s.cfg.Clock.Now()),
		SourceInstanceName:   inst.Name,
		SourceInstanceZone:   inst.Zone,
		Simulated:            !remote,
	})
	if err != nil {
		return nil, fmt.Errorf("create backup for instance %s: %w", instanceID, err)
	}
	metrics.BackupTransitions.WithLabelValues(string(model.BackupStatusCreating)).Inc()

	logger := s.logger.With().Str("backup_id", b.ID).Logger()
	logger.Info().Str("instance_id", inst.ID).Bool("simulated", b.Simulated).Msg("backup created")

	backup := *b
	var started bool
	if remote {
		providerInstance, zone := *inst.ProviderInstanceID, inst.Zone
		started = s.tasks.Spawn(b.ID, func(ctx context.Context) {
			s.runSnapshot(ctx, backup, providerInstance, zone)
		})
	} else {
		sizeGB := inst.DiskSizeGB
		started = s.tasks.Spawn(b.ID, func(ctx context.Context) {
			s.runSimulated(ctx, backup, sizeGB)
		})
	}
	if !started {
		logger.Warn().Msg("background job not started, backup left for reconciliation")
	}

	return b, nil
}

func (s *BackupService) isRemote(inst *model.Instance) bool {
	return s.provider != nil && inst.ProviderInstanceID != nil && *inst.ProviderInstanceID != ""
}

// runSnapshot asks the provider for a snapshot and polls it until it is
// ready. Failures are recorded on the backup; nothing is returned.
func (s *BackupService) runSnapshot(ctx context.Context, b model.Backup, instance, zone string) {
	if err := s.provider.CreateSnapshot(ctx, b.ProviderSnapshotName, instance, zone); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(ctx, b.ID, err)
		return
	}
	s.poll(ctx, b)
}

func (s *BackupService) poll(ctx context.Context, b model.Backup) {
	logger := s.logger.With().Str("backup_id", b.ID).Str("snapshot", b.ProviderSnapshotName).Logger()

	var deadline <-chan time.Time
	if s.cfg.PollTimeout > 0 {
		deadline = s.cfg.Clock.After(s.cfg.PollTimeout)
	}

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("polling cancelled")
			return
		case <-deadline:
			metrics.BackupPolls.WithLabelValues(metrics.PollTimeout).Inc()
			s.fail(ctx, b.ID, snapshot.NewError(snapshot.CodeTimeout, snapshot.OpDescribe, b.ProviderSnapshotName,
				fmt.Sprintf("snapshot not ready after %s", s.cfg.PollTimeout), s.cfg.Clock.Now()))
			return
		case <-s.cfg.Clock.After(s.cfg.PollInterval):
		}

		desc, err := s.provider.DescribeSnapshot(ctx, b.ProviderSnapshotName)
		switch {
		case err == nil:
			metrics.BackupPolls.WithLabelValues(metrics.PollReady).Inc()
			s.complete(ctx, b.ID, desc.SizeBytes)
			return
		case snapshot.IsNotReady(err):
			metrics.BackupPolls.WithLabelValues(metrics.PollNotReady).Inc()
			logger.Debug().Int("attempt", attempt).Msg("snapshot not ready")
		default:
			if ctx.Err() != nil {
				return
			}
			metrics.BackupPolls.WithLabelValues(metrics.PollFailed).Inc()
			s.fail(ctx, b.ID, err)
			return
		}
	}
}

// runSimulated completes a backup of an instance the provider does not
// manage after a fixed delay, sized from the instance disk.
func (s *BackupService) runSimulated(ctx context.Context, b model.Backup, diskSizeGB int) {
	select {
	case <-ctx.Done():
		return
	case <-s.cfg.Clock.After(s.cfg.SimulatedDelay):
	}

	sizeGB := diskSizeGB
	if sizeGB <= 0 {
		sizeGB = s.cfg.SimulatedSizeGB
	}
	s.complete(ctx, b.ID, int64(sizeGB)*billing.BytesPerGB)
}

func (s *BackupService) complete(ctx context.Context, id string, sizeBytes int64) {
	fields := UpdateFields{}
	if sizeBytes >= 0 {
		fields.StorageBytes = &sizeBytes
	}
	if err := s.transition(ctx, id, model.BackupStatusCompleted, fields); err != nil {
		s.logger.Error().Err(err).Str("backup_id", id).Msg("failed to mark backup completed")
		return
	}
	metrics.BackupTransitions.WithLabelValues(string(model.BackupStatusCompleted)).Inc()
	s.logger.Info().Str("backup_id", id).Str("status", string(model.BackupStatusCompleted)).Int64("storage_bytes", sizeBytes).Msg("backup completed")
}

func (s *BackupService) fail(ctx context.Context, id string, cause error) {
	msg := cause.Error()
	s.logger.Warn().Err(cause).Str("backup_id", id).Str("code", string(snapshot.CodeOf(cause))).Msg("backup failed")

	if err := s.transition(ctx, id, model.BackupStatusError, UpdateFields{ErrorMessage: &msg}); err != nil {
		s.logger.Error().Err(err).Str("backup_id", id).Msg("failed to mark backup errored")
		return
	}
	metrics.BackupTransitions.WithLabelValues(string(model.BackupStatusError)).Inc()
}

// transition writes the terminal status of a background job. The job has
// no caller to hand an unavailable store back to, so it keeps retrying
// until the write lands, the error is not transient, or ctx is cancelled.
func (s *BackupService) transition(ctx context.Context, id string, next model.BackupStatus, fields UpdateFields) error {
	attempts := s.cfg.StoreRetryAttempts
	if attempts <= 0 {
		attempts = -1
	}

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, lastErr = s.store.UpdateStatus(ctx, id, next, fields)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || !errors.Is(err, ErrStoreUnavailable)
		},
		NotifyFunc: func(err error, attempt int) {
			s.logger.Warn().Err(err).Str("backup_id", id).Str("status", string(next)).Int("attempt", attempt).Msg("store unavailable, retrying status update")
		},
		Attempts:    attempts,
		Delay:       s.cfg.StoreRetryDelay,
		MaxDelay:    s.cfg.StoreRetryMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       s.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		return fmt.Errorf("update backup %s to %s after %d attempts: %w", id, next, attempts, lastErr)
	}
	return err
}

// Get returns the caller's backup with its accrued cost.
func (s *BackupService) Get(ctx context.Context, callerID, id string) (*model.BackupWithCost, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != callerID {
		return nil, fmt.Errorf("backup %s: %w", id, ErrForbidden)
	}
	return &model.BackupWithCost{Backup: *b, CurrentCost: s.costs.BackupCost(b)}, nil
}

// List returns the caller's non-deleted backups, newest first, each with
// its accrued cost.
func (s *BackupService) List(ctx context.Context, callerID string) ([]model.BackupWithCost, error) {
	backups, err := s.store.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.BackupWithCost, 0, len(backups))
	for i := range backups {
		out = append(out, model.BackupWithCost{Backup: backups[i], CurrentCost: s.costs.BackupCost(&backups[i])})
	}
	return out, nil
}

// Delete removes the remote snapshot and then marks the backup DELETED.
// A provider failure aborts before any status change. The remote delete
// happens first, so a CREATING backup loses its snapshot even though the
// status change is then rejected.
func (s *BackupService) Delete(ctx context.Context, callerID, id string) (*model.Backup, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != callerID {
		return nil, fmt.Errorf("backup %s: %w", id, ErrForbidden)
	}

	if !b.Simulated {
		if err := s.deleteSnapshot(ctx, b); err != nil {
			return nil, fmt.Errorf("delete snapshot for backup %s: %w", id, err)
		}
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.BackupTransitions.WithLabelValues(string(model.BackupStatusDeleted)).Inc()
	s.logger.Info().Str("backup_id", id).Str("status", string(model.BackupStatusDeleted)).Msg("backup deleted")
	return deleted, nil
}

func (s *BackupService) deleteSnapshot(ctx context.Context, b *model.Backup) error {
	if s.provider == nil {
		return snapshot.NewError(snapshot.CodeCommand, snapshot.OpDelete, b.ProviderSnapshotName, msgProviderUnavailable, s.cfg.Clock.Now())
	}
	err := s.provider.DeleteSnapshot(ctx, b.ProviderSnapshotName)
	// A failed backup may never have produced a remote snapshot.
	if snapshot.IsNotFound(err) && b.Status == model.BackupStatusError {
		return nil
	}
	return err
}

// Reconcile picks up CREATING backups that have no running job, typically
// after a restart. Provider backups resume polling since the remote job may
// still finish. Simulated backups, or provider backups without a configured
// provider, are moved to ERROR. It returns how many backups were handled.
func (s *BackupService) Reconcile(ctx context.Context) (int, error) {
	orphans, err := s.store.ListByStatus(ctx, model.BackupStatusCreating)
	if err != nil {
		return 0, fmt.Errorf("list creating backups: %w", err)
	}

	handled := 0
	for _, b := range orphans {
		if s.tasks.Has(b.ID) {
			continue
		}
		logger := s.logger.With().Str("backup_id", b.ID).Logger()

		if b.Simulated || s.provider == nil {
			msg := msgInterruptedByRestart
			if !b.Simulated {
				msg = msgProviderUnavailable
			}
			if _, err := s.store.UpdateStatus(ctx, b.ID, model.BackupStatusError, UpdateFields{ErrorMessage: &msg}); err != nil {
				if errors.Is(err, ErrInvalidTransition) {
					continue
				}
				return handled, fmt.Errorf("fail orphaned backup %s: %w", b.ID, err)
			}
			metrics.BackupTransitions.WithLabelValues(string(model.BackupStatusError)).Inc()
			logger.Warn().Str("reason", msg).Msg("orphaned backup marked as error")
			handled++
			continue
		}

		backup := b
		if s.tasks.Spawn(b.ID, func(ctx context.Context) { s.poll(ctx, backup) }) {
			logger.Info().Msg("resumed polling for orphaned backup")
			handled++
		}
	}
	return handled, nil
}
