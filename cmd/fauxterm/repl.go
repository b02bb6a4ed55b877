// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/issue"
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"
	"github.com/fauxterm/fauxterm/internal/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const clearScreen = "\x1b[H\x1b[2J"

type (
	// lineReader is the part of *readline.Instance the REPL loop uses.
	lineReader interface {
		Readline() (string, error)
		SetPrompt(prompt string)
	}

	// replView prints interpreter output. Watch ticks arrive from another
	// goroutine, so writes are serialized.
	replView struct {
		mu       sync.Mutex
		out      io.Writer
		renderer *lipgloss.Renderer
		hostname string
	}
)

func newREPLCommand(app *App) *cobra.Command {
	var username string
	c := &cobra.Command{
		Use:   "repl",
		Short: "Open a terminal session in this shell",
		Long: `Open a terminal session on the local database without starting a server.

Without --user the session is a guest. Ctrl-C stops a running watch,
Ctrl-D or 'exit' leaves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runREPL(cmd.Context(), username)
		},
	}
	c.Flags().StringVarP(&username, "user", "u", "", "log in as this account")
	return c
}

func (a *App) runREPL(ctx context.Context, username string) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := a.newLogger(cfg)
	be, err := a.openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = be.Close() }()
	if err := be.ensureAdmin(ctx, cfg, logger); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		Stdin:           io.NopCloser(a.stdin),
		Stdout:          a.stdout,
		Stderr:          a.stderr,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting line editor: %w", err)
	}
	defer func() { _ = rl.Close() }()

	id := shell.Identity{}
	if username != "" {
		if id, err = replLogin(ctx, rl, be.auth, username); err != nil {
			return err
		}
	}

	sessions := be.sessionManager(cfg, Version)
	defer sessions.CloseAll()
	ts, err := sessions.Create(ctx, id)
	if err != nil {
		return err
	}
	view := &replView{out: rl.Stdout(), renderer: lipgloss.DefaultRenderer(), hostname: cfg.Shell.Hostname}
	return replLoop(ctx, rl, view, ts)
}

func replLogin(ctx context.Context, rl *readline.Instance, authn *auth.Service, username string) (shell.Identity, error) {
	pw, err := rl.ReadPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return shell.Identity{}, fmt.Errorf("reading password: %w", err)
	}
	token, claims, err := authn.Login(ctx, username, string(pw))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return shell.Identity{}, issue.New("log in").On(username).
				Suggest("Create the account with 'fauxterm user add " + username + "'").
				Wrap(err)
		}
		return shell.Identity{}, err
	}
	return shell.Identity{Username: string(claims.Username), Role: claims.Role, Token: token}, nil
}

// replLoop reads lines until EOF or exit. An interrupt cancels the running
// watch.
func replLoop(ctx context.Context, rl lineReader, v *replView, ts *termsession.Session) error {
	v.banner(ts.State())

	async, unsubscribe := ts.Subscribe()
	asyncDone := make(chan struct{})
	go func() {
		defer close(asyncDone)
		for o := range async {
			v.render(o)
		}
	}()
	defer func() {
		unsubscribe()
		<-asyncDone
	}()

	for {
		rl.SetPrompt(v.prompt(ts.State()))
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			ts.Interrupt()
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}
		if ts.Interrupt() && strings.TrimSpace(line) == "" {
			continue
		}
		v.render(ts.Execute(ctx, line))
		if ts.State().Closed {
			return nil
		}
	}
}

func (v *replView) styles(st shell.State) theme.Styles {
	return theme.Get(st.Theme).Styles(v.renderer)
}

func (v *replView) prompt(st shell.State) string {
	styles := v.styles(st)
	if st.Mode == shell.ModeREPL {
		return styles.Accent.Render(">") + " "
	}
	return styles.Prompt(st.User, v.hostname, st.Cwd.String())
}

func (v *replView) banner(st shell.State) {
	styles := v.styles(st)
	v.write("Logged in as " + styles.User.Render(st.User) + ". Type 'help' to see what you can do.")
}

func (v *replView) render(o shell.Output) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if o.Special == shell.SpecialClear || o.Special == shell.SpecialFullscreen {
		_, _ = io.WriteString(v.out, clearScreen)
	}
	v.writeLocked(o.Lines...)
}

func (v *replView) write(lines ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writeLocked(lines...)
}

func (v *replView) writeLocked(lines ...string) {
	for _, l := range lines {
		_, _ = io.WriteString(v.out, l+"\n")
	}
}
