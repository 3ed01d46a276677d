package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/vdesk/internal/api/request"
	"github.com/edvin/vdesk/internal/api/response"
	"github.com/edvin/vdesk/internal/model"
)

// BackupService is the part of core.BackupService the HTTP layer uses.
type BackupService interface {
	Create(ctx context.Context, callerID, instanceID, name string) (*model.Backup, error)
	Get(ctx context.Context, callerID, id string) (*model.BackupWithCost, error)
	List(ctx context.Context, callerID string) ([]model.BackupWithCost, error)
	Delete(ctx context.Context, callerID, id string) (*model.Backup, error)
}

type BackupHandler struct {
	svc BackupService
}

func NewBackupHandler(svc BackupService) *BackupHandler {
	return &BackupHandler{svc: svc}
}

// List returns the caller's backups.
//
//	@Summary      List backups
//	@Description  Returns the caller's non-deleted backups, newest first, each with its accrued storage cost
//	@Tags         Backups
//	@Produce      json
//	@Success      200  {object}  response.ListResponse[model.BackupWithCost]
//	@Failure      401  {object}  response.ErrorResponse
//	@Failure      503  {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /backups [get]
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	backups, err := h.svc.List(r.Context(), identity.UserID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteList(w, backups)
}

// Create starts a backup of one of the caller's instances.
//
//	@Summary      Create a backup
//	@Description  Persists a CREATING backup and starts the snapshot in the background. Poll GET /backups/{id} for the outcome.
//	@Tags         Backups
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.CreateBackup  true  "Backup creation payload"
//	@Success      201   {object}  model.Backup
//	@Failure      400   {object}  response.ErrorResponse
//	@Failure      403   {object}  response.ErrorResponse
//	@Failure      404   {object}  response.ErrorResponse
//	@Failure      429   {object}  response.ErrorResponse
//	@Failure      500   {object}  response.ProviderErrorResponse
//	@Failure      503   {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /backups [post]
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup, err := h.svc.Create(r.Context(), identity.UserID, req.InstanceID, req.Name)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, backup)
}

// Get returns one backup with its accrued cost.
//
//	@Summary      Get a backup
//	@Tags         Backups
//	@Produce      json
//	@Param        id   path      string  true  "Backup ID"
//	@Success      200  {object}  model.BackupWithCost
//	@Failure      403  {object}  response.ErrorResponse
//	@Failure      404  {object}  response.ErrorResponse
//	@Failure      503  {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /backups/{id} [get]
func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup, err := h.svc.Get(r.Context(), identity.UserID, id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, backup)
}

// Delete removes the remote snapshot and marks the backup DELETED.
//
//	@Summary      Delete a backup
//	@Description  Deletes the provider snapshot, then marks the backup DELETED. Backups still CREATING are rejected with 409.
//	@Tags         Backups
//	@Produce      json
//	@Param        id   path      string  true  "Backup ID"
//	@Success      200  {object}  model.Backup
//	@Failure      403  {object}  response.ErrorResponse
//	@Failure      404  {object}  response.ErrorResponse
//	@Failure      409  {object}  response.ErrorResponse
//	@Failure      500  {object}  response.ProviderErrorResponse
//	@Failure      503  {object}  response.ErrorResponse
//	@Security     BearerAuth
//	@Router       /backups/{id} [delete]
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup, err := h.svc.Delete(r.Context(), identity.UserID, id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, backup)
}
