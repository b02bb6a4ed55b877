// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultDNSCacheTTL = time.Minute

// ErrBlockedDestination is returned when a request targets an address the
// guard refuses.
var ErrBlockedDestination = errors.New("destination not allowed")

// metadataAddr is the cloud instance metadata endpoint (AWS, GCP, Azure).
var metadataAddr = netip.MustParseAddr("169.254.169.254")

type (
	// GuardConfig selects which destinations are refused.
	GuardConfig struct {
		// AllowPrivate permits loopback, private and link-local addresses.
		// The metadata endpoint stays blocked regardless.
		AllowPrivate bool
		// AllowedHosts bypass every check. A subdomain of an allowed host is
		// also allowed.
		AllowedHosts []string
		// DNSCacheTTL bounds how long resolutions are reused.
		DNSCacheTTL time.Duration
	}

	// Resolver looks up the addresses of a host.
	Resolver interface {
		LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
	}

	// Guard validates outbound URLs and hosts.
	Guard struct {
		cfg      GuardConfig
		resolver Resolver
		now      func() time.Time

		mu    sync.Mutex
		cache map[string]dnsCacheEntry
	}

	// BlockedError describes a refused destination.
	BlockedError struct {
		Reason string
		Target string
	}

	dnsCacheEntry struct {
		addrs     []netip.Addr
		expiresAt time.Time
	}
)

// Error implements error.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Target)
}

// Unwrap returns ErrBlockedDestination.
func (e *BlockedError) Unwrap() error { return ErrBlockedDestination }

// NewGuard creates a Guard that resolves hosts with net.DefaultResolver.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.DNSCacheTTL <= 0 {
		cfg.DNSCacheTTL = defaultDNSCacheTTL
	}
	return &Guard{
		cfg:      cfg,
		resolver: net.DefaultResolver,
		now:      time.Now,
		cache:    make(map[string]dnsCacheEntry),
	}
}

// CheckURL validates the scheme and host of rawURL.
func (g *Guard) CheckURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &BlockedError{Reason: "invalid URL", Target: rawURL}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &BlockedError{Reason: "only http and https are allowed", Target: rawURL}
	}
	if u.Hostname() == "" {
		return &BlockedError{Reason: "missing host", Target: rawURL}
	}
	return g.CheckHost(ctx, u.Hostname())
}

// CheckHost resolves host and validates every address it maps to.
func (g *Guard) CheckHost(ctx context.Context, host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, allowed := range g.cfg.AllowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}

	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, addr := range addrs {
		if reason := g.blockReason(addr); reason != "" {
			return &BlockedError{Reason: reason, Target: host}
		}
	}
	return nil
}

func (g *Guard) blockReason(addr netip.Addr) string {
	addr = addr.Unmap()
	if addr == metadataAddr {
		return "cloud metadata endpoint blocked"
	}
	if g.cfg.AllowPrivate {
		return ""
	}
	switch {
	case addr.IsLoopback():
		return "loopback address blocked"
	case addr.IsPrivate():
		return "private address blocked"
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return "link-local address blocked"
	case addr.IsUnspecified():
		return "unspecified address blocked"
	}
	return ""
}

func (g *Guard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}
	if host == "localhost" {
		return []netip.Addr{netip.IPv6Loopback(), netip.MustParseAddr("127.0.0.1")}, nil
	}

	g.mu.Lock()
	entry, ok := g.cache[host]
	g.mu.Unlock()
	if ok && g.now().Before(entry.expiresAt) {
		return entry.addrs, nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}

	g.mu.Lock()
	g.cache[host] = dnsCacheEntry{addrs: addrs, expiresAt: g.now().Add(g.cfg.DNSCacheTTL)}
	g.mu.Unlock()
	return addrs, nil
}
