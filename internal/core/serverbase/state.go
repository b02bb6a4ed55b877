// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateCreated is the state before Start.
	StateCreated State = iota
	// StateStarting means the listener is being bound.
	StateStarting
	// StateRunning means connections are being accepted.
	StateRunning
	// StateStopping means a graceful shutdown is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: binding or serving failed.
	StateFailed
)

// ErrInvalidState is the sentinel wrapped by InvalidStateError.
var ErrInvalidState = errors.New("invalid server state")

type (
	// State is the lifecycle position of a server.
	State int32

	// InvalidStateError reports an out-of-range State.
	InvalidStateError struct {
		Value State
	}
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Validate returns an *InvalidStateError for values outside the defined range.
func (s State) Validate() error {
	if s < StateCreated || s > StateFailed {
		return &InvalidStateError{Value: s}
	}
	return nil
}

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// Error implements error.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid server state %d (valid: created, starting, running, stopping, stopped, failed)", int32(e.Value))
}

// Unwrap returns ErrInvalidState.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
