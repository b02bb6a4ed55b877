// SPDX-License-Identifier: MPL-2.0

// Package fetch wraps the third-party HTTP services used by the network
// commands of the terminal: GitHub, npm, weather, DNS-over-HTTPS, IP
// geolocation, URL shortening, iTunes search, YouTube search, the Anthropic
// Messages API and plain URL fetching.
//
// Every outbound request passes through a Guard that refuses loopback,
// private and cloud-metadata destinations, and every response body is read
// through a size cap.
package fetch
