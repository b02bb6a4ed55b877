// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"time"

	"github.com/charmbracelet/log"
)

// DefaultShutdownTimeout bounds a graceful Stop.
const DefaultShutdownTimeout = 5 * time.Second

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithLogger sets the logger that records start, stop and serve failures.
func WithLogger(l *log.Logger) Option {
	return func(lc *Lifecycle) {
		if l != nil {
			lc.logger = l
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for open connections.
func WithShutdownTimeout(d time.Duration) Option {
	return func(lc *Lifecycle) {
		if d > 0 {
			lc.shutdownTimeout = d
		}
	}
}

// WithClosedErrors registers the errors Serve returns after a clean
// Shutdown, such as http.ErrServerClosed.
func WithClosedErrors(errs ...error) Option {
	return func(lc *Lifecycle) {
		lc.closedErrs = append(lc.closedErrs, errs...)
	}
}
