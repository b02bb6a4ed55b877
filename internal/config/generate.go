// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cueWriter emits indented CUE fields.
type cueWriter struct {
	sb    strings.Builder
	depth int
}

func (w *cueWriter) line(format string, args ...any) {
	w.sb.WriteString(strings.Repeat("\t", w.depth))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *cueWriter) open(name string) {
	w.sb.WriteByte('\n')
	w.line("%s: {", name)
	w.depth++
}

func (w *cueWriter) close() {
	w.depth--
	w.line("}")
}

func (w *cueWriter) str(name, v string)               { w.line("%s: %s", name, strconv.Quote(v)) }
func (w *cueWriter) boolean(name string, v bool)      { w.line("%s: %t", name, v) }
func (w *cueWriter) integer(name string, v int64)     { w.line("%s: %d", name, v) }
func (w *cueWriter) dur(name string, v time.Duration) { w.str(name, v.String()) }

func (w *cueWriter) list(name string, vs []string) {
	quoted := make([]string, len(vs))
	for i, v := range vs {
		quoted[i] = strconv.Quote(v)
	}
	w.line("%s: [%s]", name, strings.Join(quoted, ", "))
}

// GenerateCUE renders cfg as a config file that loads back to cfg.
func GenerateCUE(cfg *Config) string {
	w := &cueWriter{}
	w.line("// fauxterm configuration file.")
	w.line("// Every field is optional. Environment variables such as %s_HTTP_ADDRESS", EnvPrefix)
	w.line("// override the values below.")

	w.open("http")
	w.boolean("enabled", cfg.HTTP.Enabled)
	w.str("address", cfg.HTTP.Address)
	w.dur("read_header_timeout", cfg.HTTP.ReadHeaderTimeout)
	w.dur("shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	w.list("allowed_origins", cfg.HTTP.AllowedOrigins)
	w.close()

	w.open("ssh")
	w.boolean("enabled", cfg.SSH.Enabled)
	w.str("address", cfg.SSH.Address)
	if cfg.SSH.HostKeyPath != "" {
		w.str("host_key_path", cfg.SSH.HostKeyPath)
	}
	w.dur("idle_timeout", cfg.SSH.IdleTimeout)
	w.close()

	w.open("auth")
	if cfg.Auth.JWTSecret != "" {
		w.str("jwt_secret", cfg.Auth.JWTSecret)
	}
	w.dur("token_ttl", cfg.Auth.TokenTTL)
	w.str("issuer", cfg.Auth.Issuer)
	w.integer("bcrypt_cost", int64(cfg.Auth.BcryptCost))
	if a := cfg.Auth.BootstrapAdmin; a.Username != "" {
		w.line("bootstrap_admin: {")
		w.depth++
		w.str("username", a.Username)
		w.str("password", a.Password)
		w.close()
	}
	w.close()

	if cfg.Storage.DatabasePath != "" {
		w.open("storage")
		w.str("database_path", cfg.Storage.DatabasePath)
		w.close()
	}

	w.open("shell")
	w.str("hostname", cfg.Shell.Hostname)
	w.integer("max_alias_depth", int64(cfg.Shell.MaxAliasDepth))
	w.integer("history_limit", int64(cfg.Shell.HistoryLimit))
	w.dur("watch_default_interval", cfg.Shell.WatchDefaultInterval)
	w.dur("watch_min_interval", cfg.Shell.WatchMinInterval)
	w.integer("watch_max_count", int64(cfg.Shell.WatchMaxCount))
	w.str("default_theme", cfg.Shell.DefaultTheme)
	w.close()

	w.open("services")
	w.str("user_agent", cfg.Services.UserAgent)
	w.dur("request_timeout", cfg.Services.RequestTimeout)
	w.boolean("allow_private_destinations", cfg.Services.AllowPrivateDestinations)
	w.list("allowed_hosts", cfg.Services.AllowedHosts)
	for _, kv := range [][2]string{
		{"github_token", cfg.Services.GitHubToken},
		{"youtube_api_key", cfg.Services.YouTubeAPIKey},
		{"anthropic_api_key", cfg.Services.AnthropicAPIKey},
		{"anthropic_model", cfg.Services.AnthropicModel},
	} {
		if kv[1] != "" {
			w.str(kv[0], kv[1])
		}
	}
	if cfg.Services.AIMaxTokens > 0 {
		w.integer("ai_max_tokens", cfg.Services.AIMaxTokens)
	}
	w.close()

	w.open("ratelimit")
	w.integer("login_per_minute", int64(cfg.RateLimit.LoginPerMinute))
	w.integer("login_burst", int64(cfg.RateLimit.LoginBurst))
	w.integer("net_per_minute", int64(cfg.RateLimit.NetPerMinute))
	w.integer("net_burst", int64(cfg.RateLimit.NetBurst))
	w.close()

	w.open("session")
	w.dur("idle_ttl", cfg.Session.IdleTTL)
	w.integer("max_sessions", int64(cfg.Session.MaxSessions))
	w.close()

	w.open("ui")
	w.boolean("verbose", cfg.UI.Verbose)
	w.close()

	return w.sb.String()
}
