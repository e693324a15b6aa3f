package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/majeland/gatekeep/internal/api/middleware"
	"github.com/majeland/gatekeep/internal/api/request"
	"github.com/majeland/gatekeep/internal/api/response"
	"github.com/majeland/gatekeep/internal/core"
	"github.com/majeland/gatekeep/internal/model"
)

// Blacklist handles the owner's blocked-command list.
type Blacklist struct {
	svc *core.BlacklistService
}

// NewBlacklist creates a new Blacklist handler.
func NewBlacklist(svc *core.BlacklistService) *Blacklist {
	return &Blacklist{svc: svc}
}

// List returns the caller's blacklist entries.
func (h *Blacklist) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	entries, err := h.svc.List(r.Context(), claims.Sub)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.BlacklistEntry{}
	}

	response.WriteJSON(w, http.StatusOK, entries)
}

// Add blocks a command for the caller.
func (h *Blacklist) Add(w http.ResponseWriter, r *http.Request) {
	var req request.AddBlacklistEntry
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := middleware.GetClaims(r.Context())
	if err := h.svc.Add(r.Context(), claims.Sub, req.Command); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]string{"command": req.Command})
}

// Remove unblocks a command for the caller.
func (h *Blacklist) Remove(w http.ResponseWriter, r *http.Request) {
	command, err := request.RequireID(chi.URLParam(r, "command"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := middleware.GetClaims(r.Context())
	if err := h.svc.Remove(r.Context(), claims.Sub, command); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "command not blacklisted")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
