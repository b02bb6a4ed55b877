// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fauxterm/fauxterm/internal/userstore"
	"github.com/fauxterm/fauxterm/internal/vfs"
)

func init() {
	RegisterDefault(NewCommand("login", Spec{
		Category: CategoryUsers,
		Usage:    "<username> <password>",
		Summary:  "sign in to your account",
	}, runLogin))
	RegisterDefault(NewCommand("logout", Spec{
		Category: CategoryUsers,
		Summary:  "sign out",
	}, runLogout))
	RegisterDefault(NewCommand("whoami", Spec{
		Category: CategoryUsers,
		Summary:  "print the current user",
	}, runWhoami))
	RegisterDefault(NewCommand("passwd", Spec{
		Category:  CategoryUsers,
		Privilege: PrivilegeUser,
		Usage:     "[username] <new-password>",
		Summary:   "change a password",
	}, runPasswd))
	RegisterDefault(NewCommand("sudo", Spec{
		Category:  CategoryUsers,
		Privilege: PrivilegeUser,
		Usage:     "<command...>",
		Summary:   "run a command as root",
	}, runSudo))
	RegisterDefault(NewCommand("useradd", Spec{
		Category:  CategoryUsers,
		Privilege: PrivilegeAdmin,
		Usage:     "<username> <password> [user|admin]",
		Summary:   "create an account",
	}, runUseradd))
	RegisterDefault(NewCommand("userdel", Spec{
		Category:  CategoryUsers,
		Privilege: PrivilegeAdmin,
		Usage:     "<username>",
		Summary:   "delete an account and its files",
	}, runUserdel))
	RegisterDefault(NewCommand("users", Spec{
		Category:  CategoryUsers,
		Privilege: PrivilegeAdmin,
		Summary:   "list accounts",
	}, runUsers))
}

func runLogin(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 3 {
		return Output{}, env.Usage()
	}
	svc, err := env.Auth()
	if err != nil {
		return Output{}, err
	}
	token, claims, err := svc.Login(ctx, args[1], args[2])
	if err != nil {
		return Output{}, err
	}
	id := Identity{Username: claims.Username.String(), Role: claims.Role, Token: token}
	if err := env.interp.attach(ctx, id); err != nil {
		env.interp.logger.Error("loading session failed", "user", claims.Username, "error", err)
		return Output{}, fmt.Errorf("could not load your files: %w", err)
	}
	env.interp.logger.Info("user logged in", "user", claims.Username, "role", claims.Role)
	return Linef("Welcome, %s! Type 'help' to see what you can do.", claims.Username), nil
}

func runLogout(_ context.Context, env *Env, _ []string) (Output, error) {
	id := env.Identity()
	if id.IsGuest() {
		return Lines("You are not logged in."), nil
	}
	env.interp.logout()
	env.interp.logger.Info("user logged out", "user", id.Username)
	return Linef("Goodbye, %s.", id.Username), nil
}

func runWhoami(_ context.Context, env *Env, _ []string) (Output, error) {
	if env.Elevated {
		return Lines(userstore.RootName), nil
	}
	return Lines(env.Identity().Name()), nil
}

// runPasswd lets anyone change their own password; changing another
// account's password needs the admin role or sudo.
func runPasswd(ctx context.Context, env *Env, args []string) (Output, error) {
	id := env.Identity()
	var target, password string
	switch len(args) {
	case 2:
		target, password = id.Username, args[1]
	case 3:
		target, password = args[1], args[2]
	default:
		return Output{}, env.Usage()
	}
	if target != id.Username && !id.IsAdmin() && !env.Elevated {
		return Output{}, denied("only an admin can change another user's password")
	}
	svc, err := env.Auth()
	if err != nil {
		return Output{}, err
	}
	if err := svc.ChangePassword(ctx, target, password); err != nil {
		return Output{}, err
	}
	return Linef("password updated for %s", target), nil
}

func runSudo(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	id := env.Identity()
	if !id.IsAdmin() {
		env.interp.logger.Warn("sudo refused", "user", id.Username, "command", args[1])
		return Linef("%s is not in the sudoers file. This incident will be reported.", id.Username), nil
	}
	return env.Run(ctx, args[1:], true), nil
}

func runUseradd(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 3 || len(args) > 4 {
		return Output{}, env.Usage()
	}
	role := userstore.RoleUser
	if len(args) == 4 {
		role = userstore.Role(args[3])
		if err := role.Validate(); err != nil {
			return Output{}, err
		}
	}
	svc, err := env.Auth()
	if err != nil {
		return Output{}, err
	}
	if err := svc.Register(ctx, args[1], args[2], role); err != nil {
		return Output{}, err
	}
	return Linef("user %s created with role %s", args[1], role), nil
}

func runUserdel(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{}, env.Usage()
	}
	name := args[1]
	if name == env.Identity().Username {
		return Output{}, errors.New("you cannot delete your own account")
	}
	svc, err := env.Auth()
	if err != nil {
		return Output{}, err
	}
	if err := svc.DeleteUser(ctx, name); err != nil {
		return Output{}, err
	}

	lines := []string{fmt.Sprintf("user %s deleted", name)}
	kv := env.interp.cfg.KV
	for _, key := range []string{vfs.Key(name), PrefsKey(name)} {
		if err := kv.Delete(ctx, key); err != nil {
			env.interp.logger.Warn("removing user data failed", "user", name, "key", key, "error", err)
			lines = append(lines, fmt.Sprintf("warning: could not remove %s: %v", key, err))
		}
	}
	return Output{Lines: lines}, nil
}

func runUsers(ctx context.Context, env *Env, _ []string) (Output, error) {
	svc, err := env.Auth()
	if err != nil {
		return Output{}, err
	}
	users, err := svc.Users(ctx)
	if err != nil {
		return Output{}, err
	}
	lines := make([]string, 0, len(users)+1)
	lines = append(lines, fmt.Sprintf("%-20s %-6s %s", "USERNAME", "ROLE", "CREATED"))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("%-20s %-6s %s", u.Username, u.Role, u.CreatedAt.UTC().Format(time.DateOnly)))
	}
	return Output{Lines: lines}, nil
}
