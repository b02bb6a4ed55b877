// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"net"
	"net/url"
	"strconv"
	"testing"
)

func splitHostPort(t *testing.T, raw string) (string, int) {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split %q: %v", u.Host, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port %q: %v", portStr, err)
	}
	return host, port
}
