// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/core/serverbase"
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

type (
	// Authenticator checks SSH passwords. *auth.Service implements it.
	Authenticator interface {
		Login(ctx context.Context, username, password string) (string, auth.Claims, error)
	}

	// Option configures a Server.
	Option func(*Server)

	// Server is the SSH transport.
	Server struct {
		cfg      Config
		sessions *termsession.Manager
		auth     Authenticator
		logger   *log.Logger
		clock    clock.Clock
		srv      *ssh.Server
		lc       *serverbase.Lifecycle
	}
)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock replaces the time source of the login banner and effects.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// New builds a Server. authn may be nil, in which case only guest logins
// are accepted.
func New(cfg Config, sessions *termsession.Manager, authn Authenticator, opts ...Option) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Hostname == "" {
		cfg.Hostname = shell.DefaultHostname
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		auth:     authn,
		logger:   log.New(io.Discard),
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}

	sshOpts := []ssh.Option{
		wish.WithAddress(cfg.Addr.String()),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(
			s.terminalMiddleware(),
			s.logMiddleware(),
		),
	}
	if cfg.HostKeyPath != "" {
		sshOpts = append(sshOpts, wish.WithHostKeyPath(cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(sshOpts...)
	if err != nil {
		return nil, fmt.Errorf("create SSH server: %w", err)
	}
	s.srv = srv
	s.lc = serverbase.New("ssh-server", srv,
		serverbase.WithLogger(s.logger),
		serverbase.WithShutdownTimeout(cfg.ShutdownTimeout),
		serverbase.WithClosedErrors(ssh.ErrServerClosed),
	)
	return s, nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error { return s.lc.Start(ctx, s.cfg.Addr.String()) }

// Stop closes the listener and every open SSH connection.
func (s *Server) Stop() error { return s.lc.Stop() }

// Addr returns the bound address.
func (s *Server) Addr() string { return s.lc.Addr() }

// Err reports serve failures after Start.
func (s *Server) Err() <-chan error { return s.lc.Err() }

// State returns the lifecycle state.
func (s *Server) State() serverbase.State { return s.lc.State() }

// logMiddleware records connects and disconnects.
func (s *Server) logMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			s.logger.Info("connect", "user", sess.User(), "remote", sess.RemoteAddr().String(),
				"command", strings.Join(sess.Command(), " "))
			next(sess)
			s.logger.Info("disconnect", "user", sess.User(), "remote", sess.RemoteAddr().String())
		}
	}
}

// terminalMiddleware runs the terminal for sessions that passed
// authentication.
func (s *Server) terminalMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			id, ok := identityFrom(sess.Context())
			if !ok {
				wish.Fatalln(sess, "not authenticated")
				return
			}
			ts, err := s.sessions.Create(sess.Context(), id)
			if err != nil {
				s.logger.Error("create terminal session", "user", id.Name(), "error", err)
				wish.Fatalln(sess, "could not start a terminal session:", err)
				return
			}
			defer func() { _ = s.sessions.Close(ts.ID()) }()

			if cmd := sess.Command(); len(cmd) > 0 {
				s.runCommand(sess, ts, strings.Join(cmd, " "))
			} else {
				s.runTerminal(sess, ts)
			}
			next(sess)
		}
	}
}

// runCommand executes "ssh host <line>" and exits.
func (s *Server) runCommand(sess ssh.Session, ts *termsession.Session, line string) {
	out := ts.Execute(sess.Context(), line)
	for _, l := range out.Lines {
		wish.Println(sess, l)
	}
	_ = sess.Exit(0)
}
