// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"defaults", func(*Config) {}, nil},
		{"secret long enough", func(c *Config) { c.Auth.JWTSecret = strings.Repeat("k", 16) }, nil},
		{"complete admin", func(c *Config) {
			c.Auth.BootstrapAdmin = BootstrapAdminConfig{Username: "admin", Password: "pw"}
		}, nil},
		{"ssh only", func(c *Config) { c.HTTP.Enabled = false }, nil},
		{"no transports", func(c *Config) { c.HTTP.Enabled, c.SSH.Enabled = false, false }, []string{"enable at least one"}},
		{"admin password only", func(c *Config) { c.Auth.BootstrapAdmin.Password = "pw" }, []string{"bootstrap_admin"}},
		{"zero durations", func(c *Config) {
			c.Auth.TokenTTL = 0
			c.Session.IdleTTL = -time.Second
		}, []string{"auth.token_ttl must be positive", "session.idle_ttl must be positive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if len(ve.Problems) != len(tt.want) {
				t.Errorf("problems = %q, want %d", ve.Problems, len(tt.want))
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("Validate() = %q, missing %q", err, w)
				}
			}
		})
	}
}
