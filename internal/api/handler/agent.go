package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/majeland/gatekeep/internal/api/request"
	"github.com/majeland/gatekeep/internal/api/response"
	"github.com/majeland/gatekeep/internal/core"
)

// Agent handles the unauthenticated endpoints the polling agent calls.
type Agent struct {
	admission *core.AdmissionService
	broker    *core.ApprovalBroker
	endpoints *core.EndpointService
	blacklist *core.BlacklistService
}

// NewAgent creates a new Agent handler.
func NewAgent(admission *core.AdmissionService, broker *core.ApprovalBroker, endpoints *core.EndpointService, blacklist *core.BlacklistService) *Agent {
	return &Agent{admission: admission, broker: broker, endpoints: endpoints, blacklist: blacklist}
}

// CheckCommand runs admission control for one command invocation. A revoked
// endpoint gets 409 so the agent can tell it apart from allow and block.
func (h *Agent) CheckCommand(w http.ResponseWriter, r *http.Request) {
	var req request.CheckCommand
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.admission.Check(r.Context(), req.UserID, req.EndpointID, req.Command)
	if err != nil {
		if errors.Is(err, core.ErrEndpointRevoked) {
			response.WriteError(w, http.StatusConflict, "endpoint revoked")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, decision)
}

// CheckApproval returns the current status of an approval request.
func (h *Agent) CheckApproval(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.broker.Poll(id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, "request not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// Register creates or refreshes an endpoint registration.
func (h *Agent) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterEndpoint
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	endpoint, err := h.endpoints.Register(r.Context(), core.RegisterParams{
		UserID:     req.UserID,
		EndpointID: req.EndpointID,
		Name:       req.Name,
		Hostname:   req.Hostname,
		UserName:   req.UserName,
		IPAddress:  req.IPAddress,
		OSInfo:     req.OSInfo,
	})
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, endpoint)
}

// Deregister deactivates an endpoint from the agent side.
func (h *Agent) Deregister(w http.ResponseWriter, r *http.Request) {
	var req request.DeregisterEndpoint
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.endpoints.Deregister(r.Context(), req.EndpointID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deregistered"})
}

// Blacklist returns the owner's blocked command names. The installer uses
// this to prime the local alias set.
func (h *Agent) Blacklist(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		response.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	commands, err := h.blacklist.Commands(r.Context(), userID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if commands == nil {
		commands = []string{}
	}

	response.WriteJSON(w, http.StatusOK, map[string][]string{"commands": commands})
}
