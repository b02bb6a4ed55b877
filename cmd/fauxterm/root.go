// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the fauxterm command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fauxterm/fauxterm/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// versionString returns a formatted version string for display.
func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "fauxterm",
		Short: "A fake Unix terminal served over HTTP and SSH",
		Long: TitleStyle.Render("fauxterm") + SubtitleStyle.Render(" - a fake Unix terminal for the browser and SSH") + `

fauxterm runs a small interpreter with a per-user virtual filesystem,
a handful of Unix-like commands and wrappers around public web APIs.
Guests can try every command except the filesystem ones; accounts keep
their files and preferences between sessions.

` + SubtitleStyle.Render("Examples:") + `
  fauxterm serve                   Start the HTTP API and the SSH server
  fauxterm repl                    Open a guest terminal right here
  fauxterm user add alice          Create an account
  fauxterm config init             Write a default config file`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is <user config dir>/fauxterm/config.cue)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(app),
		newREPLCommand(app),
		newUserCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	return root
}

// Execute runs the CLI. It is called by main.main.
func Execute() {
	app := NewApp(Dependencies{})
	root := NewRootCommand(app)
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			fmt.Fprintln(w, ErrorStyle.Render("Error:"), issue.Describe(err, app.verbose))
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
