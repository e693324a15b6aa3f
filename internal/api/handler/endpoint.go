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

// Endpoint handles the owner's endpoint management routes.
type Endpoint struct {
	svc *core.EndpointService
}

// NewEndpoint creates a new Endpoint handler.
func NewEndpoint(svc *core.EndpointService) *Endpoint {
	return &Endpoint{svc: svc}
}

// List returns the caller's endpoints, newest first.
func (h *Endpoint) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	endpoints, err := h.svc.List(r.Context(), claims.Sub)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if endpoints == nil {
		endpoints = []model.Endpoint{}
	}

	response.WriteJSON(w, http.StatusOK, endpoints)
}

// Activate re-enables an endpoint owned by the caller.
func (h *Endpoint) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate revokes an endpoint owned by the caller. Pending requests stay
// resolvable; the agent sees the revocation on its next admission check.
func (h *Endpoint) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Endpoint) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := middleware.GetClaims(r.Context())
	if err := h.svc.SetActive(r.Context(), id, claims.Sub, active); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]bool{"is_active": active})
}

// Delete hard-deletes an endpoint owned by the caller.
func (h *Endpoint) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := middleware.GetClaims(r.Context())
	if err := h.svc.Delete(r.Context(), id, claims.Sub); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
