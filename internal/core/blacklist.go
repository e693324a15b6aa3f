package core

import (
	"context"
	"fmt"

	"github.com/majeland/gatekeep/internal/model"
)

// BlacklistService manages each user's set of blocked command names.
type BlacklistService struct {
	db DB
}

// NewBlacklistService creates a new BlacklistService.
func NewBlacklistService(db DB) *BlacklistService {
	return &BlacklistService{db: db}
}

// List retrieves a user's blacklist entries, alphabetically by command.
func (s *BlacklistService) List(ctx context.Context, userID string) ([]model.BlacklistEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id, command, created_at FROM blacklist WHERE user_id = $1 ORDER BY command`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var entries []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		if err := rows.Scan(&e.UserID, &e.Command, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blacklist: %w", err)
	}
	return entries, nil
}

// Commands retrieves only the command names of a user's blacklist. Used by
// the agent installer to prime its local alias set.
func (s *BlacklistService) Commands(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(entries))
	for _, e := range entries {
		commands = append(commands, e.Command)
	}
	return commands, nil
}

// Add inserts a blocked command for a user. Adding a command twice is a no-op.
func (s *BlacklistService) Add(ctx context.Context, userID, command string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO blacklist (user_id, command, created_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id, command) DO NOTHING`,
		userID, command,
	)
	if err != nil {
		return fmt.Errorf("add blacklist entry %q: %w", command, err)
	}
	return nil
}

// Remove deletes a blocked command for a user.
func (s *BlacklistService) Remove(ctx context.Context, userID, command string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM blacklist WHERE user_id = $1 AND command = $2`, userID, command,
	)
	if err != nil {
		return fmt.Errorf("remove blacklist entry %q: %w", command, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Contains reports whether a command is blocked for a user.
func (s *BlacklistService) Contains(ctx context.Context, userID, command string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklist WHERE user_id = $1 AND command = $2)`, userID, command,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blacklist entry %q: %w", command, err)
	}
	return exists, nil
}
