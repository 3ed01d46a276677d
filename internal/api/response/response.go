package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edvin/vdesk/internal/core"
	"github.com/edvin/vdesk/internal/snapshot"
)

// RetryAfterSeconds is sent with 503 responses caused by an unavailable store.
const RetryAfterSeconds = "5"

// ErrorResponse is the body of every non-provider error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProviderErrorResponse is the body of a failed snapshot provider call.
type ProviderErrorResponse struct {
	Error     string           `json:"error"`
	ErrorCode snapshot.Code    `json:"errorCode"`
	Details   snapshot.Details `json:"details"`
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteList writes items as {"items": [...]}, never null.
func WriteList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	WriteJSON(w, http.StatusOK, ListResponse[T]{Items: items})
}

// WriteServiceError maps a service error onto an HTTP status.
func WriteServiceError(w http.ResponseWriter, err error) {
	if perr, ok := snapshot.AsError(err); ok {
		WriteJSON(w, http.StatusInternalServerError, ProviderErrorResponse{
			Error:     perr.Message,
			ErrorCode: perr.Code,
			Details:   perr.Details,
		})
		return
	}

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrConstraintViolation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, core.ErrForbidden):
		WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrStoreUnavailable):
		w.Header().Set("Retry-After", RetryAfterSeconds)
		WriteError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
