// Package billing computes usage-based costs for backups and instances.
// Every function here is pure apart from reading the injected clock.
package billing

import (
	"math"
	"time"

	"github.com/juju/clock"

	"github.com/edvin/vdesk/internal/model"
)

// BytesPerGB is the divisor used to turn stored bytes into billable GB.
const BytesPerGB = 1 << 30

// DefaultStorageRatePerGBHour is the backup storage price in currency units
// per GB-hour.
const DefaultStorageRatePerGBHour = 2.306

// Round2 rounds v to two decimal places, halves rounding up as written in
// decimal: 2.675 becomes 2.68 even though its float64 value is just below.
// v is first snapped to whole millionths so the half-up step works on an
// exact integer.
func Round2(v float64) float64 {
	micros := math.Round(v * 1e6)
	return math.Floor((micros+5000)/10000) / 100
}

// BytesToGB converts a byte count into GB.
func BytesToGB(b int64) float64 {
	return float64(b) / BytesPerGB
}

// ElapsedHours returns the hours between start and end, never negative.
func ElapsedHours(start, end time.Time) float64 {
	h := end.Sub(start).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// StorageCost is storageGB × hours × rate rounded to two decimals.
// Negative inputs are treated as zero.
func StorageCost(storageGB, hours, rate float64) float64 {
	if storageGB <= 0 || hours <= 0 || rate <= 0 {
		return 0
	}
	return Round2(storageGB * hours * rate)
}

// Calculator prices backups at a fixed storage rate against a clock.
type Calculator struct {
	rate  float64
	clock clock.Clock
}

// NewCalculator returns a Calculator. A non-positive rate selects
// DefaultStorageRatePerGBHour; a nil clock selects the wall clock.
func NewCalculator(rate float64, clk clock.Clock) *Calculator {
	if rate <= 0 {
		rate = DefaultStorageRatePerGBHour
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Calculator{rate: rate, clock: clk}
}

// Rate returns the storage rate per GB-hour.
func (c *Calculator) Rate() float64 {
	return c.rate
}

// AccrualEnd is the instant cost accrual stops for b: the deletion time for
// deleted backups, now for everything else.
func (c *Calculator) AccrualEnd(b *model.Backup) time.Time {
	if b.Status == model.BackupStatusDeleted {
		return b.UpdatedAt
	}
	return c.clock.Now()
}

// BackupCost returns the storage cost accrued by b. Backups without a known
// size cost nothing.
func (c *Calculator) BackupCost(b *model.Backup) float64 {
	if b.StorageBytes == nil {
		return 0
	}
	hours := ElapsedHours(b.CreatedAt, c.AccrualEnd(b))
	return StorageCost(BytesToGB(*b.StorageBytes), hours, c.rate)
}

// TotalBackupCost sums the individually rounded cost of each backup.
func (c *Calculator) TotalBackupCost(backups []model.Backup) float64 {
	var total float64
	for i := range backups {
		total += c.BackupCost(&backups[i])
	}
	// total is a sum of two-decimal values; this only strips float noise.
	return Round2(total)
}

// InstanceCost returns hourlyRate × hours running, rounded to two decimals.
// Accrual stops at deletedAt when set.
func (c *Calculator) InstanceCost(hourlyRate float64, createdAt time.Time, deletedAt *time.Time) (hours, cost float64) {
	end := c.clock.Now()
	if deletedAt != nil {
		end = *deletedAt
	}
	hours = ElapsedHours(createdAt, end)
	if hourlyRate <= 0 {
		return hours, 0
	}
	return hours, Round2(hours * hourlyRate)
}
