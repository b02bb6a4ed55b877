// SPDX-License-Identifier: MPL-2.0

package userstore

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	// RoleUser is an ordinary account with access to its own filesystem.
	RoleUser Role = "user"
	// RoleAdmin may manage accounts and run commands through sudo.
	RoleAdmin Role = "admin"

	// GuestName is the display name of an anonymous session. It can never be registered.
	GuestName = "guest"
	// RootName is shown by whoami under sudo. It can never be registered.
	RootName = "root"

	maxUsernameLen = 32
)

var (
	// ErrUserNotFound is returned when no account has the requested username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when inserting a username that is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is the sentinel error wrapped by InvalidUsernameError.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidRole is the sentinel error wrapped by InvalidRoleError.
	ErrInvalidRole = errors.New("invalid role")

	usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

type (
	// Username identifies an account: lowercase, starting with a letter,
	// at most 32 characters of [a-z0-9_-].
	Username string

	// Role is the privilege level of an account.
	Role string

	// User is a stored account.
	User struct {
		Username     Username
		PasswordHash string
		Role         Role
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// InvalidUsernameError is returned when a Username fails validation.
	// It wraps ErrInvalidUsername for errors.Is() compatibility.
	InvalidUsernameError struct {
		Value  Username
		Reason string
	}

	// InvalidRoleError is returned when a Role is not recognized.
	// It wraps ErrInvalidRole for errors.Is() compatibility.
	InvalidRoleError struct {
		Value Role
	}
)

// String returns the string representation of the Username.
func (u Username) String() string { return string(u) }

// Validate returns nil if the Username may be registered.
func (u Username) Validate() error {
	switch {
	case u == "":
		return &InvalidUsernameError{Value: u, Reason: "must not be empty"}
	case len(u) > maxUsernameLen:
		return &InvalidUsernameError{Value: u, Reason: fmt.Sprintf("must be at most %d characters", maxUsernameLen)}
	case !usernamePattern.MatchString(string(u)):
		return &InvalidUsernameError{Value: u, Reason: "must start with a letter and use only a-z, 0-9, _ and -"}
	case u == GuestName || u == RootName:
		return &InvalidUsernameError{Value: u, Reason: "is reserved"}
	}
	return nil
}

// String returns the string representation of the Role.
func (r Role) String() string { return string(r) }

// Validate returns nil if the Role is recognized.
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAdmin:
		return nil
	default:
		return &InvalidRoleError{Value: r}
	}
}

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Error implements the error interface for InvalidUsernameError.
func (e *InvalidUsernameError) Error() string {
	return fmt.Sprintf("invalid username %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidUsername for errors.Is() compatibility.
func (e *InvalidUsernameError) Unwrap() error { return ErrInvalidUsername }

// Error implements the error interface for InvalidRoleError.
func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q (valid: user, admin)", e.Value)
}

// Unwrap returns ErrInvalidRole for errors.Is() compatibility.
func (e *InvalidRoleError) Unwrap() error { return ErrInvalidRole }
