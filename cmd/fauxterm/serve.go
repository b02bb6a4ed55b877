// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/fauxterm/fauxterm/internal/config"
	"github.com/fauxterm/fauxterm/internal/httpapi"
	"github.com/fauxterm/fauxterm/internal/issue"
	"github.com/fauxterm/fauxterm/internal/sshserver"
	"github.com/fauxterm/fauxterm/internal/termsession"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type (
	// transport is a server started and stopped by serve.
	transport interface {
		Start(ctx context.Context) error
		Stop() error
		Addr() string
		Err() <-chan error
	}

	namedTransport struct {
		name string
		transport
	}
)

func newServeCommand(app *App) *cobra.Command {
	var (
		httpAddr string
		sshAddr  string
		noHTTP   bool
		noSSH    bool
	)
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the SSH server",
		Long: `Run the browser terminal API and the SSH terminal until interrupted.

Both transports share one session registry, one database and one account
store. Flags override the matching config values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.HTTP.Address = httpAddr
			}
			if sshAddr != "" {
				cfg.SSH.Address = sshAddr
			}
			cfg.HTTP.Enabled = cfg.HTTP.Enabled && !noHTTP
			cfg.SSH.Enabled = cfg.SSH.Enabled && !noSSH
			if err := cfg.Validate(); err != nil {
				return err
			}
			return app.serve(cmd.Context(), cfg, nil)
		},
	}
	c.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides http.address)")
	c.Flags().StringVar(&sshAddr, "ssh", "", "SSH listen address (overrides ssh.address)")
	c.Flags().BoolVar(&noHTTP, "no-http", false, "do not start the HTTP API")
	c.Flags().BoolVar(&noSSH, "no-ssh", false, "do not start the SSH server")
	return c
}

// serve runs until ctx is done or a transport fails. ready, when not nil,
// receives the bound addresses once every transport listens.
func (a *App) serve(ctx context.Context, cfg *config.Config, ready func(map[string]string)) error {
	logger := a.newLogger(cfg)

	be, err := a.openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = be.Close() }()
	if be.ephemeralSecret {
		logger.Warn("auth.jwt_secret is not set; using a random secret, so tokens end with this process")
	}
	if err := be.ensureAdmin(ctx, cfg, logger); err != nil {
		return err
	}

	sessions := be.sessionManager(cfg, Version)
	transports, err := a.buildTransports(cfg, sessions, be, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sessions.Run(gctx) })

	started := make([]namedTransport, 0, len(transports))
	stopAll := func() {
		for _, t := range started {
			if err := t.Stop(); err != nil {
				logger.Error("stop failed", "transport", t.name, "error", err)
			}
		}
	}
	addrs := map[string]string{}
	for _, t := range transports {
		if err := t.Start(gctx); err != nil {
			stopAll()
			cancel()
			_ = g.Wait()
			return issue.New("start "+t.name).
				Suggest("Check that the address is free, or pick another with --" + t.name).
				Wrap(err)
		}
		started = append(started, t)
		addrs[t.name] = t.Addr()
		logger.Info("listening", "transport", t.name, "addr", t.Addr())
	}
	if ready != nil {
		ready(addrs)
	}

	for _, t := range started {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-t.Err():
				if ok && err != nil {
					return fmt.Errorf("%s: %w", t.name, err)
				}
				return nil
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		stopAll()
		return nil
	})
	return g.Wait()
}

func (a *App) buildTransports(cfg *config.Config, sessions *termsession.Manager, be *backend, logger *log.Logger) ([]namedTransport, error) {
	var out []namedTransport
	if cfg.HTTP.Enabled {
		srv := httpapi.New(httpapi.Config{
			Addr:              cfg.HTTP.Address,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
			LoginPerMinute:    cfg.RateLimit.LoginPerMinute,
			LoginBurst:        cfg.RateLimit.LoginBurst,
			AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		}, sessions, be.auth, httpapi.WithLogger(logger.WithPrefix("http-api")))
		out = append(out, namedTransport{name: "http", transport: srv})
	}
	if cfg.SSH.Enabled {
		keyPath, err := cfg.HostKeyPath()
		if err != nil {
			return nil, err
		}
		srv, err := sshserver.New(sshserver.Config{
			Addr:        sshserver.ListenAddress(cfg.SSH.Address),
			HostKeyPath: keyPath,
			Hostname:    cfg.Shell.Hostname,
			IdleTimeout: cfg.SSH.IdleTimeout,
		}, sessions, be.auth, sshserver.WithLogger(logger.WithPrefix("ssh-server")))
		if err != nil {
			return nil, issue.New("configure SSH server").
				Suggest("Check ssh.address and ssh.host_key_path").
				Wrap(err)
		}
		out = append(out, namedTransport{name: "ssh", transport: srv})
	}
	return out, nil
}
