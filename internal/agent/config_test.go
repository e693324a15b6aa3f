package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agent.json")
	cfg := &Config{ServerURL: "http://localhost:8090", UserID: "user-1", EndpointID: "ep-1"}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte("{bad"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingRequiredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"user_id":"user-1"}`), 0o600))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "server_url")

	require.NoError(t, os.WriteFile(path, []byte(`{"server_url":"http://x"}`), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "user_id")
}
