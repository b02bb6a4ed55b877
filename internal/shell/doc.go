// SPDX-License-Identifier: MPL-2.0

// Package shell implements the terminal's command interpreter.
//
// An Interpreter owns one Session (identity, working directory, aliases,
// theme, history) and turns each submitted line into an Output: either text
// lines or a Special control token for the presentation layer. Commands are
// looked up in a Registry; the built-in commands register themselves in
// DefaultRegistry from init functions.
//
// Nothing a command does escapes Execute as an error or panic. Failures of
// any kind are rendered as output lines.
package shell
