// SPDX-License-Identifier: MPL-2.0

// Package sshserver exposes the fake terminal over SSH. Every SSH session
// becomes a terminal session: a password login through the account service
// (or "guest" with any password) followed by a prompt loop that runs the
// interpreter.
package sshserver
