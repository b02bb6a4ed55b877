// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/config"
	"github.com/fauxterm/fauxterm/internal/database"
	"github.com/fauxterm/fauxterm/internal/fetch"
	"github.com/fauxterm/fauxterm/internal/issue"
	"github.com/fauxterm/fauxterm/internal/kvstore"
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"
	"github.com/fauxterm/fauxterm/internal/userstore"
	"github.com/fauxterm/fauxterm/internal/vfs"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

type (
	// ConfigProvider loads configuration. Tests replace it to point the
	// commands at temporary storage.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// App is the composition root of the CLI: every command reaches its
	// dependencies through it.
	App struct {
		Config ConfigProvider
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		cfgFile string
		verbose bool
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config ConfigProvider
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// backend is the storage and account layer shared by serve, repl and
	// the user commands.
	backend struct {
		db    *sql.DB
		users *userstore.SQLite
		kv    *kvstore.SQLite
		auth  *auth.Service
		// ephemeralSecret is set when no JWT secret was configured.
		ephemeralSecret bool
	}
)

// NewApp builds an App.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig applies --config and --verbose on top of the loaded file.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		return nil, err
	}
	if a.verbose {
		cfg.UI.Verbose = true
	}
	return cfg, nil
}

// newLogger returns the process logger and installs it as the slog default
// so library packages log through it.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	level := log.InfoLevel
	if cfg.UI.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
	})
	slog.SetDefault(slog.New(logger))
	return logger
}

func (a *App) openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, path)
	if err != nil {
		return nil, issue.New("open database").On(path).
			Suggest(
				"Check that the directory exists and is writable",
				"Set storage.database_path or FAUXTERM_STORAGE_DATABASE_PATH to another location",
			).
			Wrap(err)
	}
	b := &backend{db: db}
	if err := b.init(ctx, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *backend) init(ctx context.Context, cfg *config.Config) error {
	var err error
	if b.users, err = userstore.NewSQLite(ctx, b.db); err != nil {
		return fmt.Errorf("preparing user table: %w", err)
	}
	if b.kv, err = kvstore.NewSQLite(ctx, b.db); err != nil {
		return fmt.Errorf("preparing key-value table: %w", err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generating token secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		b.ephemeralSecret = true
	}
	b.auth, err = auth.New(b.users, auth.Config{
		Secret:     secret,
		TokenTTL:   cfg.Auth.TokenTTL,
		Issuer:     cfg.Auth.Issuer,
		BcryptCost: cfg.Auth.BcryptCost,
	}, auth.WithLogger(slog.Default()))
	if err != nil {
		return issue.New("configure authentication").
			Suggest("Set auth.jwt_secret to at least 16 random bytes").
			Wrap(err)
	}
	return nil
}

// ensureAdmin creates the configured bootstrap admin when no admin exists.
func (b *backend) ensureAdmin(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	admin := cfg.Auth.BootstrapAdmin
	if admin.Username == "" {
		return nil
	}
	created, err := b.auth.EnsureAdmin(ctx, admin.Username, admin.Password)
	if err != nil {
		return issue.New("create bootstrap admin").On(admin.Username).
			Suggest("Check auth.bootstrap_admin: usernames are lowercase and passwords need at least 4 characters").
			Wrap(err)
	}
	if created {
		logger.Info("created bootstrap admin", "user", admin.Username)
	}
	return nil
}

// deleteAccount removes the account together with its files and prefs.
func (b *backend) deleteAccount(ctx context.Context, username string) error {
	if err := b.auth.DeleteUser(ctx, username); err != nil {
		return err
	}
	var errs []error
	for _, key := range []string{vfs.Key(username), shell.PrefsKey(username)} {
		errs = append(errs, b.kv.Delete(ctx, key))
	}
	return errors.Join(errs...)
}

func (b *backend) Close() error {
	return b.db.Close()
}

// shellConfig maps the configuration onto the interpreter settings shared
// by every terminal session.
func (b *backend) shellConfig(cfg *config.Config, version string) shell.Config {
	guard := fetch.NewGuard(fetch.GuardConfig{
		AllowPrivate: cfg.Services.AllowPrivateDestinations,
		AllowedHosts: cfg.Services.AllowedHosts,
	})
	client := fetch.NewClient(
		fetch.WithGuard(guard),
		fetch.WithUserAgent(cfg.Services.UserAgent),
		fetch.WithTimeout(cfg.Services.RequestTimeout),
		fetch.WithLogger(slog.Default()),
	)
	services := fetch.NewServices(client, fetch.Config{
		GitHubToken:     cfg.Services.GitHubToken,
		YouTubeAPIKey:   cfg.Services.YouTubeAPIKey,
		AnthropicAPIKey: cfg.Services.AnthropicAPIKey,
		AnthropicModel:  cfg.Services.AnthropicModel,
		AIMaxTokens:     cfg.Services.AIMaxTokens,
	})
	return shell.Config{
		KV:       b.kv,
		Auth:     b.auth,
		Services: services,
		Logger:   slog.Default(),
		Limits: shell.Limits{
			MaxAliasDepth:        cfg.Shell.MaxAliasDepth,
			HistoryLimit:         cfg.Shell.HistoryLimit,
			WatchDefaultInterval: cfg.Shell.WatchDefaultInterval,
			WatchMinInterval:     cfg.Shell.WatchMinInterval,
			WatchMaxCount:        cfg.Shell.WatchMaxCount,
			NetRate:              rate.Limit(float64(cfg.RateLimit.NetPerMinute) / 60),
			NetBurst:             cfg.RateLimit.NetBurst,
		},
		Hostname:     cfg.Shell.Hostname,
		Version:      version,
		DefaultTheme: cfg.Shell.DefaultTheme,
	}
}

func (b *backend) sessionManager(cfg *config.Config, version string) *termsession.Manager {
	return termsession.NewManager(b.shellConfig(cfg, version),
		termsession.WithIdleTTL(cfg.Session.IdleTTL),
		termsession.WithMaxSessions(cfg.Session.MaxSessions),
		termsession.WithLogger(slog.Default().With("component", "sessions")),
	)
}
