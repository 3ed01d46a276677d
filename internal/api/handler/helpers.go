package handler

import (
	"net/http"

	"github.com/edvin/vdesk/internal/api/middleware"
	"github.com/edvin/vdesk/internal/api/response"
	"github.com/edvin/vdesk/internal/model"
)

// requireIdentity returns the authenticated caller or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing identity")
		return nil, false
	}
	return identity, true
}
