package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juju/clock"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/vdesk/internal/model"
	"github.com/edvin/vdesk/internal/snapshot"
)

// ---------- Mock DB ----------

// mockDB implements the DB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows, one scan function per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func newEmptyMockRows() *mockRows {
	return &mockRows{}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// backupScanFunc fills a backup row in column order.
func backupScanFunc(b model.Backup) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = b.ID
		*(dest[1].(*string)) = b.OwnerID
		*(dest[2].(**string)) = b.SourceInstanceID
		*(dest[3].(*string)) = b.Name
		*(dest[4].(*string)) = b.ProviderSnapshotName
		*(dest[5].(*string)) = b.SourceInstanceName
		*(dest[6].(*string)) = b.SourceInstanceZone
		*(dest[7].(**int64)) = b.StorageBytes
		*(dest[8].(*string)) = string(b.Status)
		*(dest[9].(**string)) = b.ErrorMessage
		*(dest[10].(*bool)) = b.Simulated
		*(dest[11].(*time.Time)) = b.CreatedAt
		*(dest[12].(*time.Time)) = b.UpdatedAt
		return nil
	}
}

// ---------- Mock snapshot provider ----------

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) VerifyInstance(ctx context.Context, instance, zone string) error {
	return m.Called(ctx, instance, zone).Error(0)
}

func (m *mockProvider) CreateSnapshot(ctx context.Context, name, instance, zone string) error {
	return m.Called(ctx, name, instance, zone).Error(0)
}

func (m *mockProvider) DescribeSnapshot(ctx context.Context, name string) (*snapshot.Description, error) {
	args := m.Called(ctx, name)
	desc, _ := args.Get(0).(*snapshot.Description)
	return desc, args.Error(1)
}

func (m *mockProvider) DeleteSnapshot(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

// ---------- In-memory backup records ----------

// memBackupStore is an in-memory BackupRecords that enforces the same
// transition rules as BackupStore.
type memBackupStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	seq     int
	backups map[string]*model.Backup
	// updates receives the id and status of every successful UpdateStatus.
	updates chan model.Backup
	// failNext makes the next call of the named method return the error.
	failNext map[string]error
}

func newMemBackupStore(clk clock.Clock) *memBackupStore {
	return &memBackupStore{
		clock:    clk,
		backups:  make(map[string]*model.Backup),
		updates:  make(chan model.Backup, 64),
		failNext: make(map[string]error),
	}
}

func (s *memBackupStore) injected(method string) error {
	err := s.failNext[method]
	delete(s.failNext, method)
	return err
}

func (s *memBackupStore) Create(_ context.Context, nb NewBackup) (*model.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Create"); err != nil {
		return nil, err
	}
	s.seq++
	now := s.clock.Now().UTC()
	b := &model.Backup{
		ID:                   fmt.Sprintf("backup-%d", s.seq),
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
	s.backups[b.ID] = b
	cp := *b
	return &cp, nil
}

// failOnce makes the next call of method return err.
func (s *memBackupStore) failOnce(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method] = err
}

func (s *memBackupStore) put(b model.Backup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backups[b.ID] = &b
}

func (s *memBackupStore) GetByID(_ context.Context, id string) (*model.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("GetByID"); err != nil {
		return nil, err
	}
	b, ok := s.backups[id]
	if !ok {
		return nil, fmt.Errorf("get backup %s: %w", id, ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *memBackupStore) ListByOwner(_ context.Context, ownerID string) ([]model.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListByOwner"); err != nil {
		return nil, err
	}
	out := []model.Backup{}
	for _, b := range s.backups {
		if b.OwnerID == ownerID && b.Status != model.BackupStatusDeleted {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memBackupStore) ListByStatus(_ context.Context, status model.BackupStatus) ([]model.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("ListByStatus"); err != nil {
		return nil, err
	}
	out := []model.Backup{}
	for _, b := range s.backups {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memBackupStore) UpdateStatus(_ context.Context, id string, next model.BackupStatus, fields UpdateFields) (*model.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateStatus"); err != nil {
		return nil, err
	}
	b, ok := s.backups[id]
	if !ok {
		return nil, fmt.Errorf("get backup %s: %w", id, ErrNotFound)
	}
	if !IsValidTransition(b.Status, next) {
		return nil, fmt.Errorf("update backup %s: %w", id, ErrInvalidTransition)
	}
	b.Status = next
	if fields.StorageBytes != nil {
		v := *fields.StorageBytes
		b.StorageBytes = &v
	}
	if fields.ErrorMessage != nil {
		v := *fields.ErrorMessage
		b.ErrorMessage = &v
	}
	b.UpdatedAt = s.clock.Now().UTC()
	cp := *b
	s.updates <- cp
	return &cp, nil
}

func (s *memBackupStore) Delete(ctx context.Context, id string) (*model.Backup, error) {
	return s.UpdateStatus(ctx, id, model.BackupStatusDeleted, UpdateFields{})
}

func (s *memBackupStore) get(id string) model.Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.backups[id]
}

// ---------- In-memory instances ----------

type memInstances struct {
	instances map[string]*model.Instance
	err       error
}

func newMemInstances(instances ...model.Instance) *memInstances {
	m := &memInstances{instances: make(map[string]*model.Instance)}
	for i := range instances {
		inst := instances[i]
		m.instances[inst.ID] = &inst
	}
	return m
}

func (m *memInstances) GetByID(_ context.Context, id string) (*model.Instance, error) {
	if m.err != nil {
		return nil, m.err
	}
	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("get instance %s: %w", id, ErrNotFound)
	}
	cp := *inst
	return &cp, nil
}

func (m *memInstances) ListByOwner(_ context.Context, ownerID string) ([]model.Instance, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Instance{}
	for _, inst := range m.instances {
		if inst.OwnerID == ownerID {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
