package core

import "errors"

var (
	// ErrNotFound is returned when a request or endpoint id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrEndpointRevoked signals that the reporting endpoint no longer
	// references an active registration. It is distinct from a normal
	// allow/block answer and drives the agent's fail-open cleanup path.
	ErrEndpointRevoked = errors.New("endpoint revoked")

	// ErrInvalidDecision is returned for a resolve decision outside
	// {approved, denied}.
	ErrInvalidDecision = errors.New("invalid decision")
)
