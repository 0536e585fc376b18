package chat

import "errors"

// The pipeline error taxonomy. HTTP and CLI surfaces map these to status
// codes with errors.Is; backend unavailability errors are defined where the
// adapters live (rag.ErrUnavailable, session.ErrUnavailable) and pass through
// the orchestrator unchanged.
var (
	// ErrInvalidRequest marks missing or malformed caller input. Never
	// retried; user-correctable.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSessionNotFound marks a query against an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrGenerationFailed marks a generation call that timed out or
	// exhausted its retry budget.
	ErrGenerationFailed = errors.New("generation failed")
)
