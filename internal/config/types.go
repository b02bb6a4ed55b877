// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// minJWTSecretLen matches the shortest signing secret auth accepts.
	minJWTSecretLen = 16

	redacted = "<redacted>"
)

// ErrInvalidConfig is wrapped by ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

type (
	// Config is the complete fauxterm configuration.
	Config struct {
		HTTP      HTTPConfig      `json:"http" mapstructure:"http"`
		SSH       SSHConfig       `json:"ssh" mapstructure:"ssh"`
		Auth      AuthConfig      `json:"auth" mapstructure:"auth"`
		Storage   StorageConfig   `json:"storage" mapstructure:"storage"`
		Shell     ShellConfig     `json:"shell" mapstructure:"shell"`
		Services  ServicesConfig  `json:"services" mapstructure:"services"`
		RateLimit RateLimitConfig `json:"ratelimit" mapstructure:"ratelimit"`
		Session   SessionConfig   `json:"session" mapstructure:"session"`
		UI        UIConfig        `json:"ui" mapstructure:"ui"`
	}

	// HTTPConfig configures the browser terminal API.
	HTTPConfig struct {
		Enabled           bool          `json:"enabled" mapstructure:"enabled"`
		Address           string        `json:"address" mapstructure:"address"`
		ReadHeaderTimeout time.Duration `json:"read_header_timeout" mapstructure:"read_header_timeout"`
		ShutdownTimeout   time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
		// AllowedOrigins lists extra websocket origins besides the API's own host.
		AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	}

	// SSHConfig configures the SSH terminal.
	SSHConfig struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Address string `json:"address" mapstructure:"address"`
		// HostKeyPath defaults to ssh_host_ed25519 in the config directory.
		// The key is generated on first start.
		HostKeyPath string        `json:"host_key_path" mapstructure:"host_key_path"`
		IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	}

	// AuthConfig configures accounts and session tokens.
	AuthConfig struct {
		// JWTSecret signs session tokens. When empty, serve generates a
		// random secret and tokens do not survive a restart.
		JWTSecret      string               `json:"jwt_secret" mapstructure:"jwt_secret"`
		TokenTTL       time.Duration        `json:"token_ttl" mapstructure:"token_ttl"`
		Issuer         string               `json:"issuer" mapstructure:"issuer"`
		BcryptCost     int                  `json:"bcrypt_cost" mapstructure:"bcrypt_cost"`
		BootstrapAdmin BootstrapAdminConfig `json:"bootstrap_admin" mapstructure:"bootstrap_admin"`
	}

	// BootstrapAdminConfig is created at startup when no admin exists.
	BootstrapAdminConfig struct {
		Username string `json:"username" mapstructure:"username"`
		Password string `json:"password" mapstructure:"password"`
	}

	// StorageConfig locates persistent data.
	StorageConfig struct {
		// DatabasePath defaults to fauxterm.db in the config directory.
		DatabasePath string `json:"database_path" mapstructure:"database_path"`
	}

	// ShellConfig bounds the interpreter.
	ShellConfig struct {
		Hostname             string        `json:"hostname" mapstructure:"hostname"`
		MaxAliasDepth        int           `json:"max_alias_depth" mapstructure:"max_alias_depth"`
		HistoryLimit         int           `json:"history_limit" mapstructure:"history_limit"`
		WatchDefaultInterval time.Duration `json:"watch_default_interval" mapstructure:"watch_default_interval"`
		WatchMinInterval     time.Duration `json:"watch_min_interval" mapstructure:"watch_min_interval"`
		// WatchMaxCount caps watch iterations; 0 means unbounded.
		WatchMaxCount int    `json:"watch_max_count" mapstructure:"watch_max_count"`
		DefaultTheme  string `json:"default_theme" mapstructure:"default_theme"`
	}

	// ServicesConfig configures the upstream APIs behind network commands.
	ServicesConfig struct {
		UserAgent      string        `json:"user_agent" mapstructure:"user_agent"`
		RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
		// AllowPrivateDestinations lets curl and friends reach loopback and
		// private networks. The cloud metadata address stays blocked.
		AllowPrivateDestinations bool     `json:"allow_private_destinations" mapstructure:"allow_private_destinations"`
		AllowedHosts             []string `json:"allowed_hosts" mapstructure:"allowed_hosts"`
		GitHubToken              string   `json:"github_token" mapstructure:"github_token"`
		YouTubeAPIKey            string   `json:"youtube_api_key" mapstructure:"youtube_api_key"`
		AnthropicAPIKey          string   `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
		AnthropicModel           string   `json:"anthropic_model" mapstructure:"anthropic_model"`
		AIMaxTokens              int64    `json:"ai_max_tokens" mapstructure:"ai_max_tokens"`
	}

	// RateLimitConfig throttles logins per client IP and network commands
	// per session.
	RateLimitConfig struct {
		LoginPerMinute int `json:"login_per_minute" mapstructure:"login_per_minute"`
		LoginBurst     int `json:"login_burst" mapstructure:"login_burst"`
		NetPerMinute   int `json:"net_per_minute" mapstructure:"net_per_minute"`
		NetBurst       int `json:"net_burst" mapstructure:"net_burst"`
	}

	// SessionConfig configures the terminal session registry.
	SessionConfig struct {
		IdleTTL     time.Duration `json:"idle_ttl" mapstructure:"idle_ttl"`
		MaxSessions int           `json:"max_sessions" mapstructure:"max_sessions"`
	}

	// UIConfig configures the CLI itself.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// ValidationError lists every rule a loaded Config breaks.
	ValidationError struct {
		Problems []string
	}
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Enabled:           true,
			Address:           "127.0.0.1:8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			AllowedOrigins:    []string{},
		},
		SSH: SSHConfig{
			Enabled:     true,
			Address:     "127.0.0.1:2222",
			IdleTimeout: 30 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			Issuer:     "fauxterm",
			BcryptCost: 10,
		},
		Shell: ShellConfig{
			Hostname:             "fauxterm",
			MaxAliasDepth:        8,
			HistoryLimit:         500,
			WatchDefaultInterval: 2 * time.Second,
			WatchMinInterval:     time.Second,
			DefaultTheme:         "default",
		},
		Services: ServicesConfig{
			UserAgent:      "fauxterm/dev",
			RequestTimeout: 15 * time.Second,
			AllowedHosts:   []string{},
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 10,
			LoginBurst:     5,
			NetPerMinute:   30,
			NetBurst:       10,
		},
		Session: SessionConfig{
			IdleTTL:     30 * time.Minute,
			MaxSessions: 1000,
		},
	}
}

// Validate checks the rules the CUE schema cannot express.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !c.HTTP.Enabled && !c.SSH.Enabled {
		add("http and ssh are both disabled; enable at least one transport")
	}
	if s := c.Auth.JWTSecret; s != "" && len(s) < minJWTSecretLen {
		add("auth.jwt_secret must be at least %d bytes", minJWTSecretLen)
	}
	if a := c.Auth.BootstrapAdmin; (a.Username == "") != (a.Password == "") {
		add("auth.bootstrap_admin needs both username and password")
	}
	if c.Shell.WatchMinInterval > c.Shell.WatchDefaultInterval {
		add("shell.watch_min_interval (%s) exceeds shell.watch_default_interval (%s)",
			c.Shell.WatchMinInterval, c.Shell.WatchDefaultInterval)
	}
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"auth.token_ttl", c.Auth.TokenTTL},
		{"services.request_timeout", c.Services.RequestTimeout},
		{"session.idle_ttl", c.Session.IdleTTL},
	}
	for _, p := range positive {
		if p.d <= 0 {
			add("%s must be positive", p.name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.Auth.JWTSecret)
	mask(&out.Auth.BootstrapAdmin.Password)
	mask(&out.Services.GitHubToken)
	mask(&out.Services.YouTubeAPIKey)
	mask(&out.Services.AnthropicAPIKey)
	return &out
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return "invalid configuration:\n  " + strings.Join(e.Problems, "\n  ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }
