package model

import "time"

// Endpoint is a registered protected machine/session under one owning user.
type Endpoint struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Name      string     `json:"name" db:"name"`
	Hostname  string     `json:"hostname" db:"hostname"`
	UserName  string     `json:"user_name" db:"user_name"`
	IPAddress *string    `json:"ip_address,omitempty" db:"ip_address"`
	OSInfo    string     `json:"os_info" db:"os_info"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty" db:"last_seen"`
}
