// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const maxRedirectHops = 10

// ErrTooManyRedirects is returned when a redirect chain does not settle.
var ErrTooManyRedirects = errors.New("too many redirects")

// Shortener creates and expands short links.
type Shortener struct {
	client  *Client
	baseURL string
}

// Shorten returns a short link for longURL.
func (s *Shortener) Shorten(ctx context.Context, longURL string) (string, error) {
	u, err := url.Parse(longURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("shorten: %q is not an http(s) URL", longURL)
	}
	q := url.Values{}
	q.Set("format", "simple")
	q.Set("url", longURL)
	body, _, err := s.client.GetText(ctx, s.baseURL+"/create.php?"+q.Encode(), nil, 1024)
	if err != nil {
		return "", fmt.Errorf("shorten: %w", err)
	}
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "Error") {
		return "", fmt.Errorf("shorten: %s", body)
	}
	return body, nil
}

// Expand follows the redirect chain of shortURL without downloading the
// final page and returns every hop, starting with shortURL itself.
func (s *Shortener) Expand(ctx context.Context, shortURL string) ([]string, error) {
	chain := []string{shortURL}
	current := shortURL
	for range maxRedirectHops {
		next, err := s.hop(ctx, current)
		if err != nil {
			return chain, fmt.Errorf("unshorten: %w", err)
		}
		if next == "" {
			return chain, nil
		}
		chain = append(chain, next)
		current = next
	}
	return chain, fmt.Errorf("unshorten: %w", ErrTooManyRedirects)
}

// hop issues one HEAD request and returns the resolved Location, or "" when
// the response is not a redirect.
func (s *Shortener) hop(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.doNoRedirect(req)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", nil
	}
	next, err := req.URL.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("bad Location %q: %w", loc, err)
	}
	return next.String(), nil
}
