package request

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, body string, v any) error {
	t.Helper()
	r := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	return Decode(r, v)
}

func TestDecode_ValidCheckCommand(t *testing.T) {
	var req CheckCommand
	err := decodeBody(t, `{"command":"rm","user_id":"user-1","endpoint_id":"ep-1"}`, &req)
	require.NoError(t, err)
	assert.Equal(t, "rm", req.Command)
}

func TestDecode_InvalidJSON(t *testing.T) {
	var req CheckCommand
	err := decodeBody(t, `{"command":`, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecode_MissingFields(t *testing.T) {
	var req CheckCommand
	err := decodeBody(t, `{"command":"rm"}`, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestDecode_CommandToken(t *testing.T) {
	valid := []string{"rm", "shutdown", "apt-get", "python3.12", "g++"}
	for _, cmd := range valid {
		var req AddBlacklistEntry
		err := decodeBody(t, `{"command":"`+cmd+`"}`, &req)
		assert.NoError(t, err, "command %q should be accepted", cmd)
	}

	invalid := []string{"/bin/rm", "rm -rf", "a b", "$(reboot)", "", "-rf"}
	for _, cmd := range invalid {
		var req AddBlacklistEntry
		err := decodeBody(t, `{"command":"`+cmd+`"}`, &req)
		assert.Error(t, err, "command %q should be rejected", cmd)
	}
}

func TestRequireID(t *testing.T) {
	id, err := RequireID("r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", id)

	_, err = RequireID("")
	assert.Error(t, err)
}
