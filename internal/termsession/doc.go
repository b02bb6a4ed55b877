// SPDX-License-Identifier: MPL-2.0

// Package termsession keeps the live terminal sessions of the server
// transports. Each session owns one shell.Interpreter, buffers the output it
// produces between requests and expires after a period of inactivity.
package termsession
