// SPDX-License-Identifier: MPL-2.0

// Package serverbase runs a network server through a bind, serve, shutdown
// lifecycle with observable state. The HTTP API and the SSH transport both
// delegate their Start and Stop to a Lifecycle.
package serverbase
