// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "fauxterm/dev"
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 15 * time.Second

	// maxJSONResponseBytes caps decoded JSON bodies (10 MB).
	maxJSONResponseBytes = 10 << 20
	// maxTextResponseBytes caps bodies returned as text to the terminal.
	maxTextResponseBytes = 64 << 10
)

type (
	// StatusError is returned when an upstream answers with a non-2xx status.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// Client performs guarded HTTP requests on behalf of the service wrappers.
	Client struct {
		httpClient *http.Client
		guard      *Guard
		userAgent  string
		logger     *slog.Logger
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", redactURL(e.URL), e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a StatusError carrying 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithGuard replaces the outbound destination guard.
func WithGuard(g *Guard) ClientOption {
	return func(cl *Client) { cl.guard = g }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a Client. Without options it uses a default guard that
// blocks private destinations and a client with DefaultTimeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		guard:      NewGuard(GuardConfig{}),
		userAgent:  DefaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Guard returns the destination guard used by c.
func (c *Client) Guard() *Guard {
	return c.guard
}

// Do validates the destination of req and sends it. Redirects are validated
// hop by hop.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.guard.CheckURL(req.Context(), req.URL.String()); err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	hc := *c.httpClient
	next := hc.CheckRedirect
	hc.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if err := c.guard.CheckURL(r.Context(), r.URL.String()); err != nil {
			return err
		}
		if next != nil {
			return next(r, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	c.logger.Debug("upstream request", "method", req.Method, "url", redactURL(req.URL.String()),
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// doNoRedirect is Do without following redirects.
func (c *Client) doNoRedirect(req *http.Request) (*http.Response, error) {
	if err := c.guard.CheckURL(req.Context(), req.URL.String()); err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	resp, err := c.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", redactURL(rawURL), err)
	}
	return nil
}

// GetText fetches rawURL and returns at most limit bytes of the body. The
// second result reports whether the body was cut.
func (c *Client) GetText(ctx context.Context, rawURL string, header http.Header, limit int64) (string, bool, error) {
	resp, err := c.get(ctx, rawURL, header)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkStatus(resp); err != nil {
		return "", false, err
	}
	return readLimited(resp.Body, limit)
}

func (c *Client) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
}

func readLimited(r io.Reader, limit int64) (string, bool, error) {
	if limit <= 0 {
		limit = maxTextResponseBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", false, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(data)) > limit {
		return string(data[:limit]), true, nil
	}
	return string(data), false, nil
}

// redactURL strips the query and fragment, which may carry API keys.
func redactURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}
