package orchestrator

import "errors"

var (
	// ErrEmptyMessage is returned when a chat or task request has no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUnknownVariant is returned when a request names a variant that does
	// not exist in the registry.
	ErrUnknownVariant = errors.New("unknown agent variant")

	// ErrUpstream wraps failures from the external model, memory, or sandbox
	// services. Handlers map it to 502.
	ErrUpstream = errors.New("upstream service error")
)
