package model

import "time"

// Approval request status constants. Transitions are one-way: pending may
// move to exactly one of the terminal states, and terminal states never change.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
	StatusExpired  = "expired"
)

// ApprovalRequest is the shared, time-bounded record mediating human
// approval of a blocked command.
type ApprovalRequest struct {
	ID          string    `json:"id"`
	EndpointID  string    `json:"endpoint_id"`
	OwnerUserID string    `json:"owner_user_id"`
	UserName    string    `json:"user_name"`
	Command     string    `json:"command"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether the status is one of the closed end states.
func (r *ApprovalRequest) Terminal() bool {
	return r.Status != StatusPending
}
