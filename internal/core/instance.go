package core

import (
	"context"
	"fmt"

	"github.com/edvin/vdesk/internal/billing"
	"github.com/edvin/vdesk/internal/model"
)

const instanceColumns = `id, owner_id, name, zone, provider_instance_id, disk_size_gb, hourly_rate, status, created_at, deleted_at`

// InstanceService reads virtual desktop instances. Instances are managed
// elsewhere; backups only need to look them up and price them.
type InstanceService struct {
	db    DB
	costs *billing.Calculator
}

func NewInstanceService(db DB, costs *billing.Calculator) *InstanceService {
	return &InstanceService{db: db, costs: costs}
}

func (s *InstanceService) GetByID(ctx context.Context, id string) (*model.Instance, error) {
	row := s.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	inst, err := scanInstance(row)
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, classifyDBError(err))
	}
	return inst, nil
}

// ListByOwner returns the owner's instances that have not been deleted.
func (s *InstanceService) ListByOwner(ctx context.Context, ownerID string) ([]model.Instance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE owner_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list instances for owner %s: %w", ownerID, classifyDBError(err))
	}
	defer rows.Close()

	instances := []model.Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", classifyDBError(err))
		}
		instances = append(instances, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", classifyDBError(err))
	}
	return instances, nil
}

// ComputeCosts prices each instance at its hourly rate for the time it has
// existed.
func (s *InstanceService) ComputeCosts(instances []model.Instance) []model.InstanceCost {
	out := make([]model.InstanceCost, 0, len(instances))
	for _, inst := range instances {
		hours, cost := s.costs.InstanceCost(inst.HourlyRate, inst.CreatedAt, inst.DeletedAt)
		out = append(out, model.InstanceCost{
			InstanceID: inst.ID,
			Name:       inst.Name,
			Hours:      hours,
			Cost:       cost,
		})
	}
	return out
}

func scanInstance(row rowScanner) (*model.Instance, error) {
	var inst model.Instance
	err := row.Scan(&inst.ID, &inst.OwnerID, &inst.Name, &inst.Zone, &inst.ProviderInstanceID,
		&inst.DiskSizeGB, &inst.HourlyRate, &inst.Status, &inst.CreatedAt, &inst.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
