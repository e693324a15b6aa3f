package agent

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/majeland/gatekeep/internal/model"
)

const (
	defaultPollInterval = 1 * time.Second

	// defaultDecisionWindow bounds the wait locally. It matches the server's
	// request TTL, but the agent never trusts the server to end the wait.
	defaultDecisionWindow = 30 * time.Second
)

// Verdict is the agent's final word on one command invocation.
type Verdict string

const (
	VerdictAllowed  Verdict = "allowed"
	VerdictDenied   Verdict = "denied"
	VerdictExpired  Verdict = "expired"
	VerdictTimedOut Verdict = "timed_out"
)

// Runner gates command invocations through the broker server. The server
// being unreachable never blocks the user's shell: admission failures allow
// the command through.
type Runner struct {
	client  *APIClient
	cfg     *Config
	cfgPath string
	logger  zerolog.Logger

	pollInterval   time.Duration
	decisionWindow time.Duration
}

// NewRunner creates a Runner over a loaded agent config. cfgPath is where a
// revocation-triggered cleanup rewrites the state file; it may be empty.
func NewRunner(client *APIClient, cfg *Config, cfgPath string, logger zerolog.Logger) *Runner {
	return &Runner{
		client:         client,
		cfg:            cfg,
		cfgPath:        cfgPath,
		logger:         logger.With().Str("component", "runner").Logger(),
		pollInterval:   defaultPollInterval,
		decisionWindow: defaultDecisionWindow,
	}
}

// Gate runs the admission check for a command and, when the command is
// blocked, waits for the owner's decision.
func (r *Runner) Gate(ctx context.Context, command string) (Verdict, error) {
	decision, err := r.client.CheckCommand(ctx, r.cfg.UserID, r.cfg.EndpointID, command)
	if err != nil {
		if errors.Is(err, ErrEndpointRevoked) {
			r.logger.Warn().Str("endpoint_id", r.cfg.EndpointID).
				Msg("endpoint revoked, clearing local registration")
			r.cleanup()
			return VerdictAllowed, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		r.logger.Warn().Err(err).Msg("admission check failed, allowing command")
		return VerdictAllowed, nil
	}

	if !decision.Blocked {
		return VerdictAllowed, nil
	}

	r.logger.Info().Str("request_id", decision.RequestID).Str("command", command).
		Msg("command blocked, waiting for approval")
	return r.await(ctx, decision.RequestID)
}

// await polls the approval request until it resolves or the local decision
// window closes.
func (r *Runner) await(ctx context.Context, requestID string) (Verdict, error) {
	deadline := time.Now().Add(r.decisionWindow)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return VerdictTimedOut, nil
		}

		status, err := r.client.CheckApproval(ctx, requestID)
		if err != nil {
			if errors.Is(err, ErrRequestUnknown) {
				// The server already forgot the request, so it can never
				// be approved.
				return VerdictExpired, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			r.logger.Warn().Err(err).Msg("approval poll failed, allowing command")
			return VerdictAllowed, nil
		}

		switch status {
		case model.StatusApproved:
			return VerdictAllowed, nil
		case model.StatusDenied:
			return VerdictDenied, nil
		case model.StatusExpired:
			return VerdictExpired, nil
		}
	}
}

// Execute runs the command with the user's stdio attached and returns its
// exit code.
func (r *Runner) Execute(ctx context.Context, command string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// cleanup drops the stale endpoint id from the state file so the next
// register starts fresh.
func (r *Runner) cleanup() {
	r.cfg.EndpointID = ""
	if r.cfgPath == "" {
		return
	}
	if err := SaveConfig(r.cfgPath, r.cfg); err != nil {
		r.logger.Warn().Err(err).Msg("failed to rewrite agent config")
	}
}
