package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/vdesk/internal/billing"
	"github.com/edvin/vdesk/internal/model"
)

// InstanceLister lists an owner's instances and prices them.
type InstanceLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Instance, error)
	ComputeCosts(instances []model.Instance) []model.InstanceCost
}

// CostService builds per-owner cost summaries.
type CostService struct {
	backups   BackupRecords
	instances InstanceLister
	costs     *billing.Calculator
}

func NewCostService(backups BackupRecords, instances InstanceLister, costs *billing.Calculator) *CostService {
	return &CostService{backups: backups, instances: instances, costs: costs}
}

// Summary combines the owner's instance compute cost with the storage cost
// of their non-deleted backups. Each subtotal is a sum of per-item rounded
// costs and the total is the plain sum of the two subtotals.
func (s *CostService) Summary(ctx context.Context, ownerID string) (*model.CostSummary, error) {
	var (
		backups   []model.Backup
		instances []model.Instance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		backups, err = s.backups.ListByOwner(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		instances, err = s.instances.ListByOwner(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cost summary for owner %s: %w", ownerID, err)
	}

	summary := &model.CostSummary{
		InstanceCount: len(instances),
		BackupCount:   len(backups),
	}

	var instanceCost float64
	for _, c := range s.instances.ComputeCosts(instances) {
		instanceCost += c.Cost
	}
	summary.InstanceCost = billing.Round2(instanceCost)

	var storageBytes int64
	for _, b := range backups {
		if b.StorageBytes != nil {
			storageBytes += *b.StorageBytes
		}
	}
	summary.BackupStorageGB = billing.Round2(billing.BytesToGB(storageBytes))
	summary.BackupStorageCost = s.costs.TotalBackupCost(backups)

	summary.TotalCost = summary.InstanceCost + summary.BackupStorageCost
	return summary, nil
}
