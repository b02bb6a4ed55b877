// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fauxterm/fauxterm/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

const (
	// AppName names the config directory.
	AppName = "fauxterm"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: FAUXTERM_HTTP_ADDRESS sets
	// http.address.
	EnvPrefix = "FAUXTERM"

	// DatabaseFileName is used when storage.database_path is empty.
	DatabaseFileName = "fauxterm.db"
	// HostKeyFileName is used when ssh.host_key_path is empty.
	HostKeyFileName = "ssh_host_ed25519"

	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the fauxterm configuration directory under the user
// config directory.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// DatabasePath returns storage.database_path, or the default location in
// the config directory.
func (c *Config) DatabasePath() (string, error) {
	return c.inConfigDir(c.Storage.DatabasePath, DatabaseFileName)
}

// HostKeyPath returns ssh.host_key_path, or the default location in the
// config directory.
func (c *Config) HostKeyPath() (string, error) {
	return c.inConfigDir(c.SSH.HostKeyPath, HostKeyFileName)
}

func (c *Config) inConfigDir(path, fallback string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fallback), nil
}

// setDefaults registers every leaf key. Viper only consults the environment
// for keys it knows, so a key missing here cannot be overridden by env.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("http.enabled", d.HTTP.Enabled)
	v.SetDefault("http.address", d.HTTP.Address)
	v.SetDefault("http.read_header_timeout", d.HTTP.ReadHeaderTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("http.allowed_origins", d.HTTP.AllowedOrigins)

	v.SetDefault("ssh.enabled", d.SSH.Enabled)
	v.SetDefault("ssh.address", d.SSH.Address)
	v.SetDefault("ssh.host_key_path", d.SSH.HostKeyPath)
	v.SetDefault("ssh.idle_timeout", d.SSH.IdleTimeout)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("auth.bootstrap_admin.username", d.Auth.BootstrapAdmin.Username)
	v.SetDefault("auth.bootstrap_admin.password", d.Auth.BootstrapAdmin.Password)

	v.SetDefault("storage.database_path", d.Storage.DatabasePath)

	v.SetDefault("shell.hostname", d.Shell.Hostname)
	v.SetDefault("shell.max_alias_depth", d.Shell.MaxAliasDepth)
	v.SetDefault("shell.history_limit", d.Shell.HistoryLimit)
	v.SetDefault("shell.watch_default_interval", d.Shell.WatchDefaultInterval)
	v.SetDefault("shell.watch_min_interval", d.Shell.WatchMinInterval)
	v.SetDefault("shell.watch_max_count", d.Shell.WatchMaxCount)
	v.SetDefault("shell.default_theme", d.Shell.DefaultTheme)

	v.SetDefault("services.user_agent", d.Services.UserAgent)
	v.SetDefault("services.request_timeout", d.Services.RequestTimeout)
	v.SetDefault("services.allow_private_destinations", d.Services.AllowPrivateDestinations)
	v.SetDefault("services.allowed_hosts", d.Services.AllowedHosts)
	v.SetDefault("services.github_token", d.Services.GitHubToken)
	v.SetDefault("services.youtube_api_key", d.Services.YouTubeAPIKey)
	v.SetDefault("services.anthropic_api_key", d.Services.AnthropicAPIKey)
	v.SetDefault("services.anthropic_model", d.Services.AnthropicModel)
	v.SetDefault("services.ai_max_tokens", d.Services.AIMaxTokens)

	v.SetDefault("ratelimit.login_per_minute", d.RateLimit.LoginPerMinute)
	v.SetDefault("ratelimit.login_burst", d.RateLimit.LoginBurst)
	v.SetDefault("ratelimit.net_per_minute", d.RateLimit.NetPerMinute)
	v.SetDefault("ratelimit.net_burst", d.RateLimit.NetBurst)

	v.SetDefault("session.idle_ttl", d.Session.IdleTTL)
	v.SetDefault("session.max_sessions", d.Session.MaxSessions)

	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadWithOptions performs option-driven config loading without touching
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.New("load configuration").On(path).
				Suggest(
					"Check that the file contains valid CUE syntax",
					"Compare it with the output of 'fauxterm config show --defaults'",
				).
				Wrap(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		op := issue.New("validate configuration")
		if path != "" {
			op.On(path)
		}
		return nil, "", op.
			Suggest("Fix the listed settings in the file or the matching " + prefix + "_* environment variables").
			Wrap(err)
	}
	return &cfg, path, nil
}

// findConfigFile returns the file to load: the explicit path, then the
// config directory, then the working directory. It returns "" when no file
// exists and none was requested.
func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.New("load configuration").On(opts.ConfigFilePath).
				Suggest(
					"Verify the file path is correct",
					"Run 'fauxterm config init' to write a default file",
				).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath))
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(dir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// The file decodes to a map rather than a struct so Viper keeps its defaults
// for omitted fields.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError flattens CUE's error list into "path: message" lines.
func formatCUEError(err error, file string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}
	lines := make([]string, 0, len(list))
	for _, e := range list {
		msg := e.Error()
		if p := strings.Join(e.Path(), "."); p != "" && !strings.HasPrefix(msg, p) {
			msg = p + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", file, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", file, strings.Join(lines, "\n  "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ErrConfigExists is returned by CreateDefaultConfig when the file exists
// and overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// CreateDefaultConfig writes the default configuration to path, or to the
// default location when path is empty, and returns the path written.
func CreateDefaultConfig(path string, overwrite bool) (string, error) {
	if path == "" {
		var err error
		if path, err = ConfigFilePath(); err != nil {
			return "", err
		}
	}
	if !overwrite && fileExists(path) {
		return path, fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	return path, Save(DefaultConfig(), path)
}

// Save writes cfg to path as CUE, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// 0600: the file may hold the JWT secret and API keys.
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
