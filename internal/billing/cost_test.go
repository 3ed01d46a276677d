package billing

import (
	"math"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/vdesk/internal/model"
)

func gib(n int64) *int64 {
	v := n * BytesPerGB
	return &v
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.234, 1.23},
		{0.125, 0.13},
		{2.5, 2.5},
		{23.0600001, 23.06},
		{99.999, 100},
		{2.675, 2.68},
		{1.005, 1.01},
		{0.285, 0.29},
		{2.674999, 2.67},
		{10.0049, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Round2(tt.in), 1e-9, "Round2(%v)", tt.in)
	}
}

func TestStorageCost_Formula(t *testing.T) {
	for _, gb := range []float64{0, 0.5, 1, 10, 123.4} {
		for _, hours := range []float64{0, 0.25, 1, 24, 720} {
			want := Round2(gb * hours * DefaultStorageRatePerGBHour)
			assert.InDelta(t, want, StorageCost(gb, hours, DefaultStorageRatePerGBHour), 1e-9,
				"gb=%v hours=%v", gb, hours)
		}
	}
}

func TestStorageCost_NegativeInputs(t *testing.T) {
	assert.Equal(t, 0.0, StorageCost(-1, 10, 1))
	assert.Equal(t, 0.0, StorageCost(10, -1, 1))
	assert.Equal(t, 0.0, StorageCost(10, 10, 0))
}

func TestElapsedHours_ClampsClockSkew(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.0, ElapsedHours(now.Add(time.Hour), now))
	assert.InDelta(t, 2.0, ElapsedHours(now.Add(-2*time.Hour), now), 1e-9)
}

func TestNewCalculator_Defaults(t *testing.T) {
	c := NewCalculator(0, nil)
	assert.Equal(t, DefaultStorageRatePerGBHour, c.Rate())
	assert.NotNil(t, c.clock)
}

func TestBackupCost_CompletedOneHour(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCalculator(2.306, testclock.NewClock(now))

	b := &model.Backup{
		Status:       model.BackupStatusCompleted,
		StorageBytes: gib(10),
		CreatedAt:    now.Add(-time.Hour),
		UpdatedAt:    now.Add(-50 * time.Minute),
	}
	assert.InDelta(t, 23.06, c.BackupCost(b), 0.05)
}

func TestBackupCost_NullSize(t *testing.T) {
	now := time.Now()
	c := NewCalculator(2.306, testclock.NewClock(now))

	for _, status := range model.BackupStatuses {
		b := &model.Backup{Status: status, CreatedAt: now.Add(-100 * time.Hour), UpdatedAt: now}
		assert.Equal(t, 0.0, c.BackupCost(b), "status %s", status)
	}
}

func TestBackupCost_DeletedIsFrozen(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted := created.Add(5 * time.Hour)
	clk := testclock.NewClock(deleted.Add(time.Hour))
	c := NewCalculator(2.306, clk)

	b := &model.Backup{
		Status:       model.BackupStatusDeleted,
		StorageBytes: gib(4),
		CreatedAt:    created,
		UpdatedAt:    deleted,
	}

	first := c.BackupCost(b)
	clk.Advance(72 * time.Hour)
	second := c.BackupCost(b)

	assert.Equal(t, first, second)
	assert.InDelta(t, Round2(4*5*2.306), first, 1e-9)
}

func TestBackupCost_GrowsForLiveBackups(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(created.Add(time.Hour))
	c := NewCalculator(1, clk)

	b := &model.Backup{Status: model.BackupStatusCompleted, StorageBytes: gib(1), CreatedAt: created, UpdatedAt: created}
	assert.InDelta(t, 1.0, c.BackupCost(b), 1e-9)

	clk.Advance(time.Hour)
	assert.InDelta(t, 2.0, c.BackupCost(b), 1e-9)
}

func TestBackupCost_FutureCreatedAt(t *testing.T) {
	now := time.Now()
	c := NewCalculator(2.306, testclock.NewClock(now))
	b := &model.Backup{Status: model.BackupStatusCompleted, StorageBytes: gib(10), CreatedAt: now.Add(time.Hour)}
	assert.Equal(t, 0.0, c.BackupCost(b))
}

func TestTotalBackupCost_SumsRoundedCosts(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(created.Add(time.Hour))
	c := NewCalculator(1, clk)

	// Each backup costs 0.004 raw, which rounds to 0.00 individually.
	bpg := float64(BytesPerGB)
	size := int64(0.004 * bpg)
	backups := make([]model.Backup, 3)
	for i := range backups {
		backups[i] = model.Backup{Status: model.BackupStatusCompleted, StorageBytes: &size, CreatedAt: created}
	}

	var sum float64
	for i := range backups {
		sum += c.BackupCost(&backups[i])
	}
	total := c.TotalBackupCost(backups)

	assert.InDelta(t, sum, total, 1e-9)
	assert.Equal(t, 0.0, total)
	assert.NotEqual(t, Round2(3*0.004), total)
}

func TestTotalBackupCost_Additivity(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(created.Add(37 * time.Hour))
	c := NewCalculator(2.306, clk)

	var backups []model.Backup
	var sum float64
	for i := int64(1); i <= 20; i++ {
		size := i * 123456789
		b := model.Backup{Status: model.BackupStatusCompleted, StorageBytes: &size, CreatedAt: created.Add(time.Duration(i) * time.Minute)}
		backups = append(backups, b)
		sum += c.BackupCost(&b)
	}

	total := c.TotalBackupCost(backups)
	require.InDelta(t, sum, total, 0.005)
	assert.True(t, math.Abs(total*100-math.Round(total*100)) < 1e-6)
}

func TestTotalBackupCost_Empty(t *testing.T) {
	c := NewCalculator(1, testclock.NewClock(time.Now()))
	assert.Equal(t, 0.0, c.TotalBackupCost(nil))
}

func TestInstanceCost(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(created.Add(10 * time.Hour))
	c := NewCalculator(1, clk)

	hours, cost := c.InstanceCost(0.333, created, nil)
	assert.InDelta(t, 10.0, hours, 1e-9)
	assert.InDelta(t, 3.33, cost, 1e-9)

	deleted := created.Add(2 * time.Hour)
	hours, cost = c.InstanceCost(0.5, created, &deleted)
	assert.InDelta(t, 2.0, hours, 1e-9)
	assert.InDelta(t, 1.0, cost, 1e-9)

	_, cost = c.InstanceCost(0, created, nil)
	assert.Equal(t, 0.0, cost)
}
