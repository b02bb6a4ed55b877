// SPDX-License-Identifier: MPL-2.0

// Package httpapi serves the browser terminal: a small JSON API for login
// and command execution plus a websocket that streams command results and
// watch output.
package httpapi
