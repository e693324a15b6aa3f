package model

import "time"

// BlacklistEntry is a (user, command) pair; existence means the command is blocked.
type BlacklistEntry struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Command   string    `json:"command" db:"command"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
