// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

type (
	// Page is the result of a plain GET.
	Page struct {
		URL         string
		Status      string
		StatusCode  int
		ContentType string
		Body        string
		Truncated   bool
	}

	// Availability is the result of an up/down check.
	Availability struct {
		URL        string
		StatusCode int
		Latency    time.Duration
		Up         bool
	}
)

// Fetch downloads rawURL and returns at most limit bytes of the body. Non-2xx
// responses are returned as pages, not errors.
func (c *Client) Fetch(ctx context.Context, rawURL string, limit int64) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	body, truncated, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, err
	}
	return &Page{
		URL:         resp.Request.URL.String(),
		Status:      resp.Status,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// Check reports whether rawURL answers with a status below 500, and how long
// the response headers took to arrive.
func (c *Client) Check(ctx context.Context, rawURL string) (*Availability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)
	_ = resp.Body.Close()

	return &Availability{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Up:         resp.StatusCode < http.StatusInternalServerError,
	}, nil
}

// Ping measures the time to open a TCP connection to host:port. ICMP needs
// privileges the server does not have, so a connect is the probe.
func (c *Client) Ping(ctx context.Context, host string, port int) (time.Duration, error) {
	if err := c.guard.CheckHost(ctx, host); err != nil {
		return 0, err
	}
	d := net.Dialer{Timeout: c.httpClient.Timeout}
	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return 0, fmt.Errorf("connecting to %s: %w", host, err)
	}
	elapsed := time.Since(start)
	_ = conn.Close()
	return elapsed, nil
}
