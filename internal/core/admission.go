package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Decision is the answer admission control gives the agent for one command.
// RequestID is set exactly when Blocked is true.
type Decision struct {
	Blocked   bool   `json:"blocked"`
	RequestID string `json:"request_id,omitempty"`
}

// AdmissionService decides whether a single command invocation is admissible
// for an endpoint, creating an approval request when it is not.
type AdmissionService struct {
	db     DB
	broker *ApprovalBroker
}

// NewAdmissionService creates a new AdmissionService.
func NewAdmissionService(db DB, broker *ApprovalBroker) *AdmissionService {
	return &AdmissionService{db: db, broker: broker}
}

// Check decides allow/block for a bare command name reported by an endpoint.
// A missing, deleted, deactivated, or wrongly claimed endpoint yields
// ErrEndpointRevoked instead of an allow/block
// answer. On block, the approval request is created before the decision is
// returned, so a blocked answer always carries a retrievable request id.
func (s *AdmissionService) Check(ctx context.Context, userID, endpointID, command string) (*Decision, error) {
	var (
		ownerID  string
		userName string
		isActive bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT user_id, user_name, is_active FROM endpoints WHERE id = $1`, endpointID,
	).Scan(&ownerID, &userName, &isActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			admissionDecisions.WithLabelValues("revoked").Inc()
			return nil, ErrEndpointRevoked
		}
		return nil, fmt.Errorf("get endpoint %s: %w", endpointID, err)
	}
	if !isActive || (userID != "" && userID != ownerID) {
		admissionDecisions.WithLabelValues("revoked").Inc()
		return nil, ErrEndpointRevoked
	}

	// Successful contact; last_seen never decreases.
	_, err = s.db.Exec(ctx,
		`UPDATE endpoints SET last_seen = GREATEST(COALESCE(last_seen, now()), now()) WHERE id = $1`, endpointID,
	)
	if err != nil {
		return nil, fmt.Errorf("touch endpoint %s: %w", endpointID, err)
	}

	var blocked bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklist WHERE user_id = $1 AND command = $2)`, ownerID, command,
	).Scan(&blocked)
	if err != nil {
		return nil, fmt.Errorf("check blacklist for %q: %w", command, err)
	}

	if !blocked {
		admissionDecisions.WithLabelValues("allowed").Inc()
		return &Decision{Blocked: false}, nil
	}

	requestID := s.broker.Create(endpointID, ownerID, userName, command)
	admissionDecisions.WithLabelValues("blocked").Inc()
	return &Decision{Blocked: true, RequestID: requestID}, nil
}
