// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the session lacks the privilege a
	// command needs.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUsage is the sentinel behind UsageError.
	ErrUsage = errors.New("usage error")
	// ErrUpstream is the sentinel behind UpstreamError.
	ErrUpstream = errors.New("request failed")
	// ErrRateLimited is returned when the session exhausted its network budget.
	ErrRateLimited = errors.New("rate limit exceeded, try again shortly")
)

type (
	// UsageError reports malformed arguments. It renders as "usage: <Usage>".
	UsageError struct {
		Usage string
	}

	// UpstreamError wraps a failure of an external service.
	UpstreamError struct {
		Err error
	}

	// panicError carries a recovered handler panic.
	panicError struct {
		value any
	}
)

// Error implements error.
func (e *UsageError) Error() string { return "usage: " + e.Usage }

// Unwrap returns ErrUsage.
func (e *UsageError) Unwrap() error { return ErrUsage }

// Error implements error.
func (e *UpstreamError) Error() string { return fmt.Sprintf("request failed: %v", e.Err) }

// Unwrap returns both the sentinel and the cause.
func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

func (e *panicError) Error() string { return fmt.Sprintf("internal error: %v", e.value) }

func usage(u string) error { return &UsageError{Usage: u} }

func upstream(err error) error { return &UpstreamError{Err: err} }

// denied returns ErrPermissionDenied with a reason.
func denied(reason string) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, reason)
}
