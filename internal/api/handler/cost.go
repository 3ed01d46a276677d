package handler

import (
	"context"
	"net/http"

	"github.com/edvin/vdesk/internal/api/response"
	"github.com/edvin/vdesk/internal/model"
)

type CostService interface {
	Summary(ctx context.Context, ownerID string) (*model.CostSummary, error)
}

type CostHandler struct {
	svc CostService
}

func NewCostHandler(svc CostService) *CostHandler {
	return &CostHandler{svc: svc}
}

// Summary returns the caller's combined instance and backup costs.
//
//	@Summary      Cost summary
//	@Tags         Costs
//	@Produce      json
//	@Success      200  {object}  model.CostSummary
//	@Failure      503  {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /costs/summary [get]
func (h *CostHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.Summary(r.Context(), identity.UserID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, summary)
}
