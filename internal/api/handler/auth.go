package handler

import (
	"context"
	"net/http"

	"github.com/edvin/vdesk/internal/api/request"
	"github.com/edvin/vdesk/internal/api/response"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type Auth struct {
	svc AuthService
}

func NewAuth(svc AuthService) *Auth {
	return &Auth{svc: svc}
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates a user and returns a JWT token.
//
//	@Summary      Authenticate user
//	@Description  Authenticate with email and password to receive a JWT token
//	@Tags         Authentication
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.Login  true  "Login credentials"
//	@Success      200   {object}  loginResponse
//	@Failure      400   {object}  response.ErrorResponse
//	@Failure      401   {object}  response.ErrorResponse
//	@Failure      403   {object}  response.ErrorResponse
//	@Router       /auth/login [post]
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, loginResponse{Token: token})
}
