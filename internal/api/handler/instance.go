package handler

import (
	"context"
	"net/http"

	"github.com/edvin/vdesk/internal/api/response"
	"github.com/edvin/vdesk/internal/model"
)

type InstanceService interface {
	ListByOwner(ctx context.Context, ownerID string) ([]model.Instance, error)
	ComputeCosts(instances []model.Instance) []model.InstanceCost
}

type InstanceHandler struct {
	svc InstanceService
}

func NewInstanceHandler(svc InstanceService) *InstanceHandler {
	return &InstanceHandler{svc: svc}
}

// instanceWithCost is an instance with the compute cost it has accrued.
type instanceWithCost struct {
	model.Instance
	HoursRunning float64 `json:"hoursRunning"`
	CurrentCost  float64 `json:"currentCost"`
}

// List returns the caller's instances with their compute cost.
//
//	@Summary      List instances
//	@Tags         Instances
//	@Produce      json
//	@Success      200  {object}  response.ListResponse[instanceWithCost]
//	@Failure      503  {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /instances [get]
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	instances, err := h.svc.ListByOwner(r.Context(), identity.UserID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	costs := h.svc.ComputeCosts(instances)
	items := make([]instanceWithCost, 0, len(instances))
	for i, inst := range instances {
		items = append(items, instanceWithCost{Instance: inst, HoursRunning: costs[i].Hours, CurrentCost: costs[i].Cost})
	}

	response.WriteList(w, items)
}
