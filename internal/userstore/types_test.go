// SPDX-License-Identifier: MPL-2.0

package userstore

import (
	"errors"
	"strings"
	"testing"
)

func TestUsername_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username Username
		wantErr  bool
	}{
		{name: "simple", username: "alice", wantErr: false},
		{name: "digits and symbols", username: "dev_ops-2", wantErr: false},
		{name: "empty", username: "", wantErr: true},
		{name: "uppercase", username: "Alice", wantErr: true},
		{name: "leading digit", username: "1alice", wantErr: true},
		{name: "space", username: "al ice", wantErr: true},
		{name: "too long", username: Username(strings.Repeat("a", 33)), wantErr: true},
		{name: "guest reserved", username: "guest", wantErr: true},
		{name: "root reserved", username: "root", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.username.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Username(%q).Validate() error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
			if err != nil {
				var uErr *InvalidUsernameError
				if !errors.As(err, &uErr) || !errors.Is(err, ErrInvalidUsername) {
					t.Errorf("error %v should be an *InvalidUsernameError wrapping ErrInvalidUsername", err)
				}
			}
		})
	}
}

func TestRole_Validate(t *testing.T) {
	t.Parallel()

	for _, r := range []Role{RoleUser, RoleAdmin} {
		if err := r.Validate(); err != nil {
			t.Errorf("Role(%q).Validate() = %v", r, err)
		}
	}
	if err := Role("root").Validate(); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Role(root).Validate() = %v, want ErrInvalidRole", err)
	}
	if !RoleAdmin.IsAdmin() || RoleUser.IsAdmin() {
		t.Error("IsAdmin() mismatch")
	}
}
