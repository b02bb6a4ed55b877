// SPDX-License-Identifier: MPL-2.0

package termsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/shell"

	"github.com/google/uuid"
)

const (
	// DefaultIdleTTL expires sessions unused for this long.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxSessions bounds the registry size.
	DefaultMaxSessions = 1000
)

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("session not found")
	// ErrTooManySessions is returned by Create when the registry is full.
	ErrTooManySessions = errors.New("too many open sessions")
)

type (
	// Option configures a Manager.
	Option func(*Manager)

	// Manager is the registry of live sessions.
	Manager struct {
		cfg    shell.Config
		clock  clock.Clock
		logger *slog.Logger
		ttl    time.Duration
		max    int

		mu       sync.Mutex
		sessions map[string]*Session
	}
)

// WithIdleTTL sets how long an unused session survives.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithMaxSessions bounds the number of concurrent sessions.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithClock replaces the time source of expiry.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager whose sessions run interpreters built from
// cfg. The Sink of cfg is replaced per session.
func NewManager(cfg shell.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		clock:    clock.Real{},
		logger:   slog.Default(),
		ttl:      DefaultIdleTTL,
		max:      DefaultMaxSessions,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.Clock == nil {
		m.cfg.Clock = m.clock
	}
	if m.cfg.Logger == nil {
		m.cfg.Logger = m.logger
	}
	return m
}

// IdleTTL returns the expiry period.
func (m *Manager) IdleTTL() time.Duration { return m.ttl }

// Create registers a new session acting as id. The zero Identity creates a
// guest session.
func (m *Manager) Create(ctx context.Context, id shell.Identity) (*Session, error) {
	m.mu.Lock()
	full := len(m.sessions) >= m.max
	m.mu.Unlock()
	if full {
		return nil, ErrTooManySessions
	}

	now := m.clock.Now()
	s := &Session{id: uuid.NewString(), created: now, lastUsed: now}
	cfg := m.cfg
	cfg.Sink = s.deliver
	cfg.Logger = m.cfg.Logger.With("session", s.id)
	s.interp = shell.New(cfg)

	if !id.IsGuest() {
		if err := s.interp.Attach(ctx, id); err != nil {
			s.interp.Close()
			return nil, fmt.Errorf("attach %s: %w", id.Username, err)
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.logger.Debug("session created", "session", s.id, "user", id.Name())
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.clock.Now())
	return s, nil
}

// Close removes a session, cancelling its watch and waiting for its pending
// filesystem saves.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	m.logger.Debug("session closed", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs returns the live session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Sweep closes every session idle for longer than the TTL and returns how
// many it closed. A session with a running watch counts as in use.
func (m *Manager) Sweep() int {
	now := m.clock.Now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.interp.Watching() {
			continue
		}
		if now.Sub(s.LastUsed()) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	interval := max(m.ttl/4, time.Second)
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case <-m.clock.After(interval):
			m.Sweep()
		}
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	clear(m.sessions)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Go(s.close)
	}
	wg.Wait()
}
