package link

import (
	"errors"
	"fmt"
)

// Phase identifies a step of one transfer cycle. Phases always execute in
// the declared order.
type Phase int

const (
	// PhaseRequest flushes the input and sends the request.
	PhaseRequest Phase = iota
	// PhaseAwaitAck scans text lines for the acknowledgement.
	PhaseAwaitAck
	// PhaseAwaitSOF scans bytes for the start-of-frame marker.
	PhaseAwaitSOF
	// PhaseReadLength reads the 4-byte length header.
	PhaseReadLength
	// PhaseReadPayload reads the payload.
	PhaseReadPayload
)

var phaseNames = [...]string{
	PhaseRequest:     "request",
	PhaseAwaitAck:    "await-ack",
	PhaseAwaitSOF:    "await-sof",
	PhaseReadLength:  "read-length",
	PhaseReadPayload: "read-payload",
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Kind classifies an Outcome.
type Kind int

const (
	// Success means the whole payload was received.
	Success Kind = iota
	// Fatal means the peer violated the protocol (or the request couldn't
	// be sent). Retrying within the same cycle is pointless.
	Fatal
	// Retryable means a phase timed out.
	Retryable
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Fatal:
		return "fatal"
	case Retryable:
		return "retryable"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the classified result of one transfer cycle.
type Outcome struct {
	Kind Kind
	// Phase is the phase in which the cycle ended.
	Phase Phase
	// Received is the number of payload bytes written to the buffer.
	Received int
	// Err describes the failure, nil on Success.
	Err error
}

// Succeeded creates a Success outcome.
func Succeeded(n int) Outcome {
	return Outcome{Kind: Success, Phase: PhaseReadPayload, Received: n}
}

// Failed creates a Fatal outcome.
func Failed(phase Phase, err error) Outcome {
	return Outcome{Kind: Fatal, Phase: phase, Err: err}
}

// TimedOut creates a Retryable outcome.
func TimedOut(phase Phase, received int) Outcome {
	return Outcome{
		Kind:     Retryable,
		Phase:    phase,
		Received: received,
		Err:      &TimeoutError{Phase: phase, Received: received},
	}
}

// OK indicates the payload is complete.
func (o Outcome) OK() bool {
	return o.Kind == Success
}

// Oversized indicates the cycle was rejected for declaring a payload
// larger than the buffer.
func (o Outcome) Oversized() bool {
	return errors.Is(o.Err, ErrOversizedFrame)
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o.Kind == Success {
		return fmt.Sprintf("success(%d bytes)", o.Received)
	}
	return fmt.Sprintf("%s at %s: %v", o.Kind, o.Phase, o.Err)
}
