package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/majeland/gatekeep/internal/model"
	"github.com/majeland/gatekeep/internal/platform"
)

// requestDropper removes broker state referencing a hard-deleted endpoint.
type requestDropper interface {
	DropEndpoint(endpointID string) int
}

// EndpointService manages endpoint registrations for the agent and owner.
type EndpointService struct {
	db     DB
	broker requestDropper
}

// NewEndpointService creates a new EndpointService.
func NewEndpointService(db DB, broker requestDropper) *EndpointService {
	return &EndpointService{db: db, broker: broker}
}

// RegisterParams holds the metadata an agent reports on registration.
type RegisterParams struct {
	UserID     string
	EndpointID string // set when the agent already holds an id
	Name       string
	Hostname   string
	UserName   string
	IPAddress  *string
	OSInfo     string
}

// Register creates an endpoint. When the caller presents an id it already
// holds for this owner, that row is refreshed in place: metadata is updated,
// the endpoint is reactivated, and the same id is returned.
func (s *EndpointService) Register(ctx context.Context, p RegisterParams) (*model.Endpoint, error) {
	if p.Name == "" {
		p.Name = platform.NewName("ep-")
	}

	if p.EndpointID != "" {
		tag, err := s.db.Exec(ctx,
			`UPDATE endpoints
			 SET name = $1, hostname = $2, user_name = $3, ip_address = $4, os_info = $5,
			     is_active = TRUE, last_seen = now()
			 WHERE id = $6 AND user_id = $7`,
			p.Name, p.Hostname, p.UserName, p.IPAddress, p.OSInfo, p.EndpointID, p.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("refresh endpoint %s: %w", p.EndpointID, err)
		}
		if tag.RowsAffected() > 0 {
			return s.GetByID(ctx, p.EndpointID)
		}
		// Stale id; fall through and register a fresh endpoint.
	}

	id := platform.NewID()
	_, err := s.db.Exec(ctx,
		`INSERT INTO endpoints (id, user_id, name, hostname, user_name, ip_address, os_info, is_active, created_at, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, now(), now())`,
		id, p.UserID, p.Name, p.Hostname, p.UserName, p.IPAddress, p.OSInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("insert endpoint: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID retrieves an endpoint by its ID.
func (s *EndpointService) GetByID(ctx context.Context, id string) (*model.Endpoint, error) {
	var e model.Endpoint
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, name, hostname, user_name, ip_address, os_info, is_active, created_at, last_seen
		 FROM endpoints WHERE id = $1`, id,
	).Scan(&e.ID, &e.UserID, &e.Name, &e.Hostname, &e.UserName, &e.IPAddress, &e.OSInfo, &e.IsActive, &e.CreatedAt, &e.LastSeen)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get endpoint %s: %w", id, err)
	}
	return &e, nil
}

// List retrieves all endpoints owned by a user, newest first.
func (s *EndpointService) List(ctx context.Context, userID string) ([]model.Endpoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, name, hostname, user_name, ip_address, os_info, is_active, created_at, last_seen
		 FROM endpoints WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []model.Endpoint
	for rows.Next() {
		var e model.Endpoint
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.Hostname, &e.UserName, &e.IPAddress, &e.OSInfo, &e.IsActive, &e.CreatedAt, &e.LastSeen); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return endpoints, nil
}

// SetActive flips the is_active flag on an endpoint owned by the user.
// Deactivation leaves the endpoint's pending requests resolvable; the agent
// learns of the revocation through its next admission check.
func (s *EndpointService) SetActive(ctx context.Context, id, userID string, active bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE endpoints SET is_active = $1 WHERE id = $2 AND user_id = $3`, active, id, userID,
	)
	if err != nil {
		return fmt.Errorf("set endpoint %s active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes an endpoint owned by the user and drops any approval
// requests still referencing it.
func (s *EndpointService) Delete(ctx context.Context, id, userID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM endpoints WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete endpoint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.broker.DropEndpoint(id)
	return nil
}

// Deregister deactivates an endpoint from the agent side, without requiring
// the owner's session. The row is kept so a later register with the same id
// can reactivate it.
func (s *EndpointService) Deregister(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE endpoints SET is_active = FALSE WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("deregister endpoint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsValidActive reports whether the endpoint exists and is active.
func (s *EndpointService) IsValidActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx,
		`SELECT is_active FROM endpoints WHERE id = $1`, id,
	).Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check endpoint %s: %w", id, err)
	}
	return active, nil
}
