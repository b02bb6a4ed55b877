// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"testing"
	"time"
)

func TestListenAddressValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr    ListenAddress
		wantErr bool
	}{
		{"127.0.0.1:2222", false},
		{":22", false},
		{"[::1]:0", false},
		{"localhost:ssh", false},
		{"", true},
		{"   ", true},
		{"no-port", true},
		{"host:notaport", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.addr), func(t *testing.T) {
			t.Parallel()

			err := tt.addr.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidListenAddress) {
				t.Errorf("error does not wrap ErrInvalidListenAddress: %v", err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}

	bad := Config{Addr: "nope", IdleTimeout: -time.Second, ShutdownTimeout: -time.Second}
	err := bad.Validate()
	var cfgErr *InvalidSSHConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() = %v, want *InvalidSSHConfigError", err)
	}
	if len(cfgErr.FieldErrors) != 3 {
		t.Errorf("FieldErrors = %v, want 3 entries", cfgErr.FieldErrors)
	}

	filled := Config{}.withDefaults()
	if filled.Addr != DefaultAddr || filled.ShutdownTimeout != 5*time.Second {
		t.Errorf("withDefaults() = %+v", filled)
	}
}
