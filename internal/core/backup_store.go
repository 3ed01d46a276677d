package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/juju/clock"

	"github.com/edvin/vdesk/internal/model"
	"github.com/edvin/vdesk/internal/platform"
)

const backupColumns = `id, owner_id, source_instance_id, name, provider_snapshot_name, source_instance_name, source_instance_zone, storage_bytes, status, error_message, simulated, created_at, updated_at`

// NewBackup holds the caller-supplied fields of a backup being created.
type NewBackup struct {
	OwnerID              string
	SourceInstanceID     *string
	Name                 string
	ProviderSnapshotName string
	SourceInstanceName   string
	SourceInstanceZone   string
	Simulated            bool
}

// UpdateFields are optional values written alongside a status change.
// Nil fields keep their stored value.
type UpdateFields struct {
	StorageBytes *int64
	ErrorMessage *string
}

// BackupStore persists backups in the backups table.
type BackupStore struct {
	db    DB
	clock clock.Clock
}

func NewBackupStore(db DB, clk clock.Clock) *BackupStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &BackupStore{db: db, clock: clk}
}

// Create inserts a new backup in CREATING with no size or error.
func (s *BackupStore) Create(ctx context.Context, nb NewBackup) (*model.Backup, error) {
	now := s.clock.Now().UTC()
	b := &model.Backup{
		ID:                   platform.NewID(),
		OwnerID:              nb.OwnerID,
		SourceInstanceID:     nb.SourceInstanceID,
		Name:                 nb.Name,
		ProviderSnapshotName: nb.ProviderSnapshotName,
		SourceInstanceName:   nb.SourceInstanceName,
		SourceInstanceZone:   nb.SourceInstanceZone,
		Status:               model.BackupStatusCreating,
		Simulated:            nb.Simulated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO backups (`+backupColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, NULL, $9, $10, $11)`,
		b.ID, b.OwnerID, b.SourceInstanceID, b.Name, b.ProviderSnapshotName,
		b.SourceInstanceName, b.SourceInstanceZone, string(b.Status), b.Simulated,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert backup: %w", classifyDBError(err))
	}
	return b, nil
}

func (s *BackupStore) GetByID(ctx context.Context, id string) (*model.Backup, error) {
	row := s.db.QueryRow(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id)
	b, err := scanBackup(row)
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, classifyDBError(err))
	}
	return b, nil
}

// ListByOwner returns the owner's backups that are not DELETED, newest first.
func (s *BackupStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Backup, error) {
	backups, err := s.list(ctx,
		`SELECT `+backupColumns+` FROM backups
		 WHERE owner_id = $1 AND status <> $2
		 ORDER BY created_at DESC, id DESC`,
		ownerID, string(model.BackupStatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("list backups for owner %s: %w", ownerID, err)
	}
	return backups, nil
}

// ListByStatus returns every backup currently in status, oldest first.
func (s *BackupStore) ListByStatus(ctx context.Context, status model.BackupStatus) ([]model.Backup, error) {
	backups, err := s.list(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE status = $1 ORDER BY created_at, id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list backups with status %s: %w", status, err)
	}
	return backups, nil
}

func (s *BackupStore) list(ctx context.Context, query string, args ...any) ([]model.Backup, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", classifyDBError(err))
		}
		backups = append(backups, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backups: %w", classifyDBError(err))
	}
	return backups, nil
}

// UpdateStatus moves a backup to next. The write only applies if the row is
// still in the status that was validated, so concurrent transitions of the
// same backup cannot both succeed.
func (s *BackupStore) UpdateStatus(ctx context.Context, id string, next model.BackupStatus, fields UpdateFields) (*model.Backup, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsValidTransition(current.Status, next) {
		return nil, fmt.Errorf("update backup %s from %s to %s: %w", id, current.Status, next, ErrInvalidTransition)
	}
	if fields.StorageBytes != nil && *fields.StorageBytes < 0 {
		return nil, &ValidationError{Field: "storageBytes", Message: "cannot be negative"}
	}

	row := s.db.QueryRow(ctx,
		`UPDATE backups SET
			status = $1,
			storage_bytes = COALESCE($2, storage_bytes),
			error_message = COALESCE($3, error_message),
			updated_at = $4
		 WHERE id = $5 AND status = $6
		 RETURNING `+backupColumns,
		string(next), fields.StorageBytes, fields.ErrorMessage, s.clock.Now().UTC(), id, string(current.Status),
	)
	updated, err := scanBackup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// The row left current.Status between the read and the write.
		return nil, fmt.Errorf("update backup %s from %s to %s: status changed concurrently: %w", id, current.Status, next, ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("update backup %s status to %s: %w", id, next, classifyDBError(err))
	}
	return updated, nil
}

// Delete marks a backup DELETED. Rows are never removed.
func (s *BackupStore) Delete(ctx context.Context, id string) (*model.Backup, error) {
	return s.UpdateStatus(ctx, id, model.BackupStatusDeleted, UpdateFields{})
}

func scanBackup(row rowScanner) (*model.Backup, error) {
	var b model.Backup
	var status string
	err := row.Scan(&b.ID, &b.OwnerID, &b.SourceInstanceID, &b.Name, &b.ProviderSnapshotName,
		&b.SourceInstanceName, &b.SourceInstanceZone, &b.StorageBytes, &status, &b.ErrorMessage,
		&b.Simulated, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = model.BackupStatus(status)
	return &b, nil
}
