package handler

import (
	"net/http"

	"github.com/majeland/gatekeep/internal/api/request"
	"github.com/majeland/gatekeep/internal/api/response"
	"github.com/majeland/gatekeep/internal/core"
)

// Auth handles account registration and login.
type Auth struct {
	svc *core.AuthService
}

// NewAuth creates a new Auth handler.
func NewAuth(svc *core.AuthService) *Auth {
	return &Auth{svc: svc}
}

// Register creates an administrator account.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterUser
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		response.WriteError(w, http.StatusConflict, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, user)
}

// Login authenticates and returns a session token.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginUser
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
