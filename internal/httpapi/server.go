// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/core/serverbase"
	"github.com/fauxterm/fauxterm/internal/termsession"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8080"

	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 64 << 10
	// maxLineLen caps one submitted command line.
	maxLineLen = 4096
)

type (
	// TokenService issues and verifies session tokens. *auth.Service
	// implements it.
	TokenService interface {
		Login(ctx context.Context, username, password string) (string, auth.Claims, error)
		Authenticate(ctx context.Context, token string) (auth.Claims, error)
	}

	// Config holds the HTTP transport settings.
	Config struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ShutdownTimeout   time.Duration
		// LoginPerMinute and LoginBurst shape the per-IP login limiter.
		LoginPerMinute int
		LoginBurst     int
		// AllowedOrigins lists the origins accepted for websocket upgrades.
		// Empty accepts same-host requests only.
		AllowedOrigins []string
	}

	// Option configures a Server.
	Option func(*Server)

	// Server is the HTTP transport.
	Server struct {
		cfg      Config
		sessions *termsession.Manager
		tokens   TokenService
		logger   *log.Logger
		clock    clock.Clock
		limiter  *ipLimiter
		upgrader websocket.Upgrader
		srv      *http.Server
		lc       *serverbase.Lifecycle
	}
)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock replaces the time source of the login limiter.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// New builds a Server. tokens may be nil, which disables login and bearer
// authentication.
func New(cfg Config, sessions *termsession.Manager, tokens TokenService, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.LoginPerMinute <= 0 {
		cfg.LoginPerMinute = 10
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 5
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		tokens:   tokens,
		logger:   log.New(io.Discard),
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = newIPLimiter(cfg.LoginPerMinute, cfg.LoginBurst, s.clock)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	s.lc = serverbase.New("http-api", s.srv,
		serverbase.WithLogger(s.logger),
		serverbase.WithShutdownTimeout(cfg.ShutdownTimeout),
		serverbase.WithClosedErrors(http.ErrServerClosed),
	)
	s.srv.RegisterOnShutdown(s.sessions.CloseAll)
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("POST /api/sessions/{id}/exec", s.handleExec)
	mux.HandleFunc("POST /api/sessions/{id}/interrupt", s.handleInterrupt)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleWebsocket)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error { return s.lc.Start(ctx, s.cfg.Addr) }

// Stop shuts the server down and closes every terminal session.
func (s *Server) Stop() error { return s.lc.Stop() }

// Addr returns the bound address.
func (s *Server) Addr() string { return s.lc.Addr() }

// Err reports serve failures after Start.
func (s *Server) Err() <-chan error { return s.lc.Err() }

// State returns the lifecycle state.
func (s *Server) State() serverbase.State { return s.lc.State() }

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
