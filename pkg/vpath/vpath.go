// SPDX-License-Identifier: MPL-2.0

// Package vpath resolves user-supplied path strings against a current
// working path in the virtual filesystem namespace.
//
// The namespace is rooted at "~". Canonical paths are either "~" itself or
// "/seg1/seg2/..." where no segment is empty, "." or "..". Resolution is a
// total function: it never fails and never performs I/O.
package vpath

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Root is the canonical path of the filesystem root (the home directory).
	Root Path = "~"

	separator = "/"
)

// ErrInvalidPath is the sentinel error wrapped by InvalidPathError.
var ErrInvalidPath = errors.New("invalid canonical path")

type (
	// Path is a canonical virtual filesystem path.
	Path string

	// InvalidPathError is returned when a Path is not in canonical form.
	// It wraps ErrInvalidPath for errors.Is() compatibility.
	InvalidPathError struct {
		Value  Path
		Reason string
	}
)

// Resolve maps input against cwd and returns the canonical result.
//
// An empty input yields cwd unchanged; callers that want "go home" semantics
// must pass Root themselves. A leading "/" makes input absolute, and "/" alone
// as well as "~" resolve to Root, and "~/" is an alias for "/". Otherwise the segments of input are appended
// to those of cwd and folded left to right: ".." pops (a no-op at the root),
// "." and empty segments are dropped.
func Resolve(input string, cwd Path) Path {
	if input == "" {
		return cwd
	}
	if input == string(Root) {
		return Root
	}

	var base []string
	rest := input
	switch {
	case strings.HasPrefix(input, separator):
		rest = strings.TrimLeft(input, separator)
	case strings.HasPrefix(input, string(Root)+separator):
		rest = strings.TrimPrefix(input, string(Root)+separator)
	default:
		base = cwd.Segments()
	}

	return FromSegments(fold(base, strings.Split(rest, separator)))
}

// fold applies the relative segments to base and returns the resulting list.
func fold(base, rel []string) []string {
	out := make([]string, 0, len(base)+len(rel))
	out = append(out, base...)
	for _, seg := range rel {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return out
}

// FromSegments builds a canonical path from a list of names.
// An empty list is the root.
func FromSegments(segs []string) Path {
	if len(segs) == 0 {
		return Root
	}
	return Path(separator + strings.Join(segs, separator))
}

// Segments returns the names along p from the root. The root has none.
func (p Path) Segments() []string {
	if p == Root || p == "" {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(string(p), separator) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// IsRoot reports whether p denotes the filesystem root.
func (p Path) IsRoot() bool {
	return len(p.Segments()) == 0
}

// Split returns the parent of p and its final name.
// The root has no name; Split(Root) returns (Root, "").
func (p Path) Split() (Path, string) {
	segs := p.Segments()
	if len(segs) == 0 {
		return Root, ""
	}
	return FromSegments(segs[:len(segs)-1]), segs[len(segs)-1]
}

// Base returns the final name of p, or "~" for the root.
func (p Path) Base() string {
	_, name := p.Split()
	if name == "" {
		return string(Root)
	}
	return name
}

// Join appends a single child name to p.
func (p Path) Join(name string) Path {
	return FromSegments(append(p.Segments(), name))
}

// HasPrefix reports whether p equals ancestor or lies underneath it.
func (p Path) HasPrefix(ancestor Path) bool {
	a, s := ancestor.Segments(), p.Segments()
	if len(a) > len(s) {
		return false
	}
	for i := range a {
		if a[i] != s[i] {
			return false
		}
	}
	return true
}

// String returns the string representation of the Path.
func (p Path) String() string { return string(p) }

// Validate returns nil if p is canonical, or an error wrapping ErrInvalidPath.
func (p Path) Validate() error {
	if p == Root {
		return nil
	}
	s := string(p)
	if !strings.HasPrefix(s, separator) {
		return &InvalidPathError{Value: p, Reason: `must be "~" or start with "/"`}
	}
	for _, seg := range strings.Split(s[1:], separator) {
		switch seg {
		case "":
			return &InvalidPathError{Value: p, Reason: "empty segment"}
		case ".", "..":
			return &InvalidPathError{Value: p, Reason: fmt.Sprintf("relative segment %q", seg)}
		}
	}
	return nil
}

// Error implements the error interface for InvalidPathError.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid canonical path %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidPath for errors.Is() compatibility.
func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }
