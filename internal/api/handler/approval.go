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

// Approval handles the administrator's view of approval requests.
type Approval struct {
	broker *core.ApprovalBroker
}

// NewApproval creates a new Approval handler.
func NewApproval(broker *core.ApprovalBroker) *Approval {
	return &Approval{broker: broker}
}

// ListPending returns the authenticated user's actionable requests, keyed by
// request id. Requests past the 30s window never appear here.
func (h *Approval) ListPending(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	response.WriteJSON(w, http.StatusOK, h.broker.ListPending(claims.Sub))
}

// Approve applies an approve decision to a request owned by the caller.
func (h *Approval) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, model.StatusApproved)
}

// Deny applies a deny decision to a request owned by the caller.
func (h *Approval) Deny(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, model.StatusDenied)
}

func (h *Approval) resolve(w http.ResponseWriter, r *http.Request, decision string) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.broker.Get(id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, "request not found")
		return
	}

	claims := middleware.GetClaims(r.Context())
	if req.OwnerUserID != claims.Sub {
		response.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	outcome, err := h.broker.Resolve(id, decision)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "request not found")
			return
		}
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
