// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fauxterm/fauxterm/internal/clock"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the per-IP limiter table. Idle entries are pruned
// when it fills up.
const maxTrackedClients = 4096

type (
	// ipLimiter keeps one token bucket per client address.
	ipLimiter struct {
		limit rate.Limit
		burst int
		clock clock.Clock

		mu      sync.Mutex
		clients map[string]*clientBucket
	}

	clientBucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
)

func newIPLimiter(perMinute, burst int, clk clock.Clock) *ipLimiter {
	return &ipLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		clock:   clk,
		clients: make(map[string]*clientBucket),
	}
}

// allow consumes one token for the client of r.
func (l *ipLimiter) allow(r *http.Request) bool {
	key := clientIP(r)
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.prune(now)
		}
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// prune drops buckets that have refilled completely.
func (l *ipLimiter) prune(now time.Time) {
	full := time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
	for k, b := range l.clients {
		if now.Sub(b.lastSeen) > full {
			delete(l.clients, k)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
