package link

import (
	"errors"
	"fmt"
)

var (
	// ErrOversizedFrame indicates the peer declared a payload larger than
	// the destination buffer.
	ErrOversizedFrame = errors.New("oversized frame")
	// ErrInvalidConfig indicates the protocol configuration is not usable.
	ErrInvalidConfig = errors.New("invalid link config")
)

// TimeoutError reports a phase which didn't complete before its deadline.
type TimeoutError struct {
	Phase    Phase
	Received int
}

// Error implements error.
func (e *TimeoutError) Error() string {
	if e.Phase == PhaseReadPayload {
		return fmt.Sprintf("%s timeout after %d bytes", e.Phase, e.Received)
	}
	return fmt.Sprintf("%s timeout", e.Phase)
}

// TransportError wraps a failure of the underlying transport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
