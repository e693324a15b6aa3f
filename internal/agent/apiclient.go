package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrEndpointRevoked is returned when the server no longer recognises this
// endpoint as active.
var ErrEndpointRevoked = errors.New("endpoint revoked")

// ErrRequestUnknown is returned when polling an approval request id the
// server has already discarded.
var ErrRequestUnknown = errors.New("approval request unknown")

// Decision is the server's admission verdict for one command invocation.
type Decision struct {
	Blocked   bool   `json:"blocked"`
	RequestID string `json:"request_id,omitempty"`
}

// Registration is the endpoint snapshot the server returns on register.
type Registration struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// RegisterInfo is the metadata the agent reports about its host.
type RegisterInfo struct {
	UserID     string `json:"user_id"`
	EndpointID string `json:"endpoint_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	OSInfo     string `json:"os_info,omitempty"`
}

// APIClient communicates with the broker's agent endpoints.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewAPIClient creates a new API client for the broker server.
func NewAPIClient(baseURL string, logger zerolog.Logger) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "api-client").Logger(),
	}
}

// CheckCommand asks the server whether a command may run.
func (c *APIClient) CheckCommand(ctx context.Context, userID, endpointID, command string) (*Decision, error) {
	payload := map[string]string{
		"user_id":     userID,
		"endpoint_id": endpointID,
		"command":     command,
	}

	resp, err := c.postJSON(ctx, "/api/agent/check_command", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		return nil, ErrEndpointRevoked
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("check_command returned %d: %s", resp.StatusCode, string(body))
	}

	var d Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &d, nil
}

// CheckApproval fetches the current status of an approval request.
func (c *APIClient) CheckApproval(ctx context.Context, requestID string) (string, error) {
	url := fmt.Sprintf("%s/api/agent/check_approval/%s", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("poll approval: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrRequestUnknown
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("check_approval returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode approval status: %w", err)
	}
	return out.Status, nil
}

// Register creates or refreshes this agent's endpoint on the server.
func (c *APIClient) Register(ctx context.Context, info RegisterInfo) (*Registration, error) {
	resp, err := c.postJSON(ctx, "/api/agent/register", info)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("register returned %d: %s", resp.StatusCode, string(body))
	}

	var reg Registration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}
	return &reg, nil
}

// Deregister deactivates this agent's endpoint on the server.
func (c *APIClient) Deregister(ctx context.Context, endpointID string) error {
	resp, err := c.postJSON(ctx, "/api/agent/deregister", map[string]string{"endpoint_id": endpointID})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deregister returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Blacklist fetches the owner's blocked command names.
func (c *APIClient) Blacklist(ctx context.Context, userID string) ([]string, error) {
	url := fmt.Sprintf("%s/api/agent/blacklist?user_id=%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blacklist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("blacklist returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Commands []string `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode blacklist: %w", err)
	}
	return out.Commands, nil
}

func (c *APIClient) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}
