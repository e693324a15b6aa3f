package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the agent's persisted state. It is written on registration and
// read before every gated command, so a stale endpoint id survives restarts.
type Config struct {
	ServerURL  string `json:"server_url"`
	UserID     string `json:"user_id"`
	EndpointID string `json:"endpoint_id,omitempty"`
}

// DefaultConfigPath returns the per-user agent state file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".gatekeep", "agent.json"), nil
}

// LoadConfig reads the agent state file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("agent config %s: server_url is required", path)
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("agent config %s: user_id is required", path)
	}
	return &cfg, nil
}

// SaveConfig writes the agent state file, creating its directory if needed.
// The file holds the endpoint id, so it is written with owner-only access.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode agent config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write agent config: %w", err)
	}
	return nil
}
