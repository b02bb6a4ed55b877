// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SpecialNone means the output is plain lines.
	SpecialNone Special = ""
	// SpecialClear asks the presentation layer to wipe the displayed history.
	SpecialClear Special = "clear"
	// SpecialEnterREPL announces that following lines are evaluated by the
	// calculator REPL.
	SpecialEnterREPL Special = "enter-repl"
	// SpecialFullscreen asks for the fullscreen visual effect.
	SpecialFullscreen Special = "fullscreen-effect"
)

// ErrInvalidSpecial is the sentinel behind InvalidSpecialError.
var ErrInvalidSpecial = errors.New("invalid special token")

type (
	// Special is a control token of the output envelope.
	Special string

	// InvalidSpecialError is returned by Special.Validate.
	InvalidSpecialError struct {
		Value Special
	}

	// Output is the result of one submitted line. Special, when set, is
	// applied before Lines are displayed.
	Output struct {
		Lines   []string `json:"lines"`
		Special Special  `json:"special,omitempty"`
	}
)

// Error implements error.
func (e *InvalidSpecialError) Error() string {
	return fmt.Sprintf("invalid special token %q (valid: clear, enter-repl, fullscreen-effect)", string(e.Value))
}

// Unwrap returns ErrInvalidSpecial.
func (e *InvalidSpecialError) Unwrap() error { return ErrInvalidSpecial }

// String returns the token.
func (s Special) String() string { return string(s) }

// Validate reports whether s is one of the defined tokens or empty.
func (s Special) Validate() error {
	switch s {
	case SpecialNone, SpecialClear, SpecialEnterREPL, SpecialFullscreen:
		return nil
	default:
		return &InvalidSpecialError{Value: s}
	}
}

// Lines builds a plain output.
func Lines(lines ...string) Output {
	return Output{Lines: lines}
}

// Linef builds a single formatted line.
func Linef(format string, args ...any) Output {
	return Output{Lines: []string{fmt.Sprintf(format, args...)}}
}

// Text splits s on newlines into an output.
func Text(s string) Output {
	return Output{Lines: splitLines(s)}
}

// Control builds an output carrying only a special token.
func Control(s Special) Output {
	return Output{Special: s}
}

// IsEmpty reports whether o carries neither lines nor a token.
func (o Output) IsEmpty() bool {
	return len(o.Lines) == 0 && o.Special == SpecialNone
}

// splitLines splits on "\n", dropping one trailing empty line.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
