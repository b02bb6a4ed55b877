// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:2222"

var (
	// ErrInvalidListenAddress is the sentinel wrapped by InvalidListenAddressError.
	ErrInvalidListenAddress = errors.New("invalid listen address")
	// ErrInvalidSSHConfig is the sentinel wrapped by InvalidSSHConfigError.
	ErrInvalidSSHConfig = errors.New("invalid SSH server config")
)

type (
	// ListenAddress is a host:port pair the server binds to.
	ListenAddress string

	// InvalidListenAddressError is returned when a ListenAddress is not a
	// host:port pair.
	InvalidListenAddressError struct {
		Value ListenAddress
		Err   error
	}

	// InvalidSSHConfigError collects the field errors of a Config.
	InvalidSSHConfigError struct {
		FieldErrors []error
	}

	// Config holds the SSH transport settings.
	Config struct {
		Addr ListenAddress
		// HostKeyPath is created with a fresh ed25519 key when missing.
		HostKeyPath string
		// Hostname appears in prompts.
		Hostname        string
		IdleTimeout     time.Duration
		ShutdownTimeout time.Duration
	}
)

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		HostKeyPath:     "fauxterm_host_ed25519",
		IdleTimeout:     30 * time.Minute,
		ShutdownTimeout: 5 * time.Second,
	}
}

// String implements fmt.Stringer.
func (a ListenAddress) String() string { return string(a) }

// Validate checks that a is a host:port pair with a numeric port.
func (a ListenAddress) Validate() error {
	if strings.TrimSpace(string(a)) == "" {
		return &InvalidListenAddressError{Value: a, Err: errors.New("empty")}
	}
	_, port, err := net.SplitHostPort(string(a))
	if err != nil {
		return &InvalidListenAddressError{Value: a, Err: err}
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return &InvalidListenAddressError{Value: a, Err: err}
	}
	return nil
}

// Validate reports every invalid field of c.
func (c Config) Validate() error {
	var errs []error
	if err := c.Addr.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle timeout %s is negative", c.IdleTimeout))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout %s is negative", c.ShutdownTimeout))
	}
	if len(errs) > 0 {
		return &InvalidSSHConfigError{FieldErrors: errs}
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Error implements error.
func (e *InvalidListenAddressError) Error() string {
	return fmt.Sprintf("invalid listen address %q: %v", string(e.Value), e.Err)
}

// Unwrap returns ErrInvalidListenAddress.
func (e *InvalidListenAddressError) Unwrap() error { return ErrInvalidListenAddress }

// Error implements error.
func (e *InvalidSSHConfigError) Error() string {
	return fmt.Sprintf("invalid SSH server config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidSSHConfig followed by the field errors.
func (e *InvalidSSHConfigError) Unwrap() []error {
	return append([]error{ErrInvalidSSHConfig}, e.FieldErrors...)
}
