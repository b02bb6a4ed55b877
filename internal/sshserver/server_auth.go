// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/userstore"

	"github.com/charmbracelet/ssh"
)

type identityKey struct{}

// passwordHandler authenticates through the account service. The guest
// account accepts any password.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	user := ctx.User()
	if user == userstore.GuestName {
		ctx.SetValue(identityKey{}, shell.Identity{})
		return true
	}
	if s.auth == nil {
		s.logger.Warn("password login rejected, accounts disabled", "user", user)
		return false
	}

	token, claims, err := s.auth.Login(ctx, user, password)
	if err != nil {
		s.logger.Warn("password login rejected", "user", user, "remote", ctx.RemoteAddr().String(), "error", err)
		return false
	}
	ctx.SetValue(identityKey{}, shell.Identity{
		Username: claims.Username.String(),
		Role:     claims.Role,
		Token:    token,
	})
	s.logger.Debug("password login accepted", "user", user)
	return true
}

// publicKeyHandler rejects every key: accounts only have passwords.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}

func identityFrom(ctx ssh.Context) (shell.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(shell.Identity)
	return id, ok
}
