// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

// ActionableError describes a failure the operator can fix. Build it with
// New and the chained setters:
//
//	return issue.New("open database").
//		On(path).
//		Suggest("Check that the directory is writable").
//		Wrap(err)
type ActionableError struct {
	// Operation is a verb phrase such as "load configuration".
	Operation string
	// Resource names the file, address or account involved, if any.
	Resource string
	// Suggestions are shown under the message, one per line.
	Suggestions []string
	// Cause is the underlying error.
	Cause error
}

// New starts an ActionableError for operation.
func New(operation string) *ActionableError {
	return &ActionableError{Operation: operation}
}

// On sets the resource.
func (e *ActionableError) On(resource string) *ActionableError {
	e.Resource = resource
	return e
}

// Suggest appends fixes to try.
func (e *ActionableError) Suggest(s ...string) *ActionableError {
	e.Suggestions = append(e.Suggestions, s...)
	return e
}

// Wrap sets the cause and returns e as an error. A nil cause yields nil so
// that call sites can wrap unconditionally.
func (e *ActionableError) Wrap(cause error) error {
	if cause == nil {
		return nil
	}
	e.Cause = cause
	return e
}

// Error implements error.
func (e *ActionableError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Resource != "" {
		b.WriteString(" ")
		b.WriteString(e.Resource)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error { return e.Cause }

// Format renders the message followed by the suggestions. verbose adds the
// unwrapped error chain.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())
	for i, s := range e.Suggestions {
		if i == 0 {
			b.WriteString("\n")
		}
		b.WriteString("\n  • ")
		b.WriteString(s)
	}
	if verbose && e.Cause != nil {
		b.WriteString("\n\nCaused by:")
		n := 1
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(&b, "\n  %d. %s", n, err)
			n++
		}
	}
	return b.String()
}

// Describe formats err for the terminal: actionable errors get their
// suggestions, anything else its plain message.
func Describe(err error, verbose bool) string {
	var ae *ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
