// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fauxterm/fauxterm/internal/userstore"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newUserCommand(app *App) *cobra.Command {
	c := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
		Long: `Manage accounts in the local database.

The same operations are available to admins inside the terminal
through useradd, userdel and users.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var (
		admin         bool
		password      string
		passwordStdin bool
	)
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := app.readPassword(password, passwordStdin, args[0])
			if err != nil {
				return err
			}
			role := userstore.RoleUser
			if admin {
				role = userstore.RoleAdmin
			}
			return app.withBackend(cmd.Context(), func(ctx context.Context, b *backend) error {
				if err := b.auth.Register(ctx, args[0], pw, role); err != nil {
					return err
				}
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓"), "created", role.String(), args[0])
				return nil
			})
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	add.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	add.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withBackend(cmd.Context(), func(ctx context.Context, b *backend) error {
				users, err := b.auth.Users(ctx)
				if err != nil {
					return err
				}
				if len(users) == 0 {
					fmt.Fprintln(app.stdout, SubtitleStyle.Render("no accounts"))
					return nil
				}
				tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USERNAME\tROLE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, u.Role, u.CreatedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:     "delete <username>",
		Aliases: []string{"rm"},
		Short:   "Delete an account with its files and settings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBackend(cmd.Context(), func(ctx context.Context, b *backend) error {
				if err := b.deleteAccount(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓"), "deleted", args[0])
				return nil
			})
		},
	}

	c.AddCommand(add, list, del)
	return c
}

func (a *App) withBackend(ctx context.Context, fn func(context.Context, *backend) error) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	a.newLogger(cfg)
	b, err := a.openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()
	return fn(ctx, b)
}

// readPassword takes the password from the flag, from stdin, or from an
// interactive prompt, in that order.
func (a *App) readPassword(flagValue string, fromStdin bool, username string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if f, ok := a.stdin.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(a.stderr, "Password for %s: ", username)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("no password given: use --password, --password-stdin or a terminal")
	}
	return pw, nil
}
