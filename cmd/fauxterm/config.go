// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/fauxterm/fauxterm/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fauxterm configuration",
		Long: `Manage fauxterm configuration.

Configuration is read from config.cue in the user config directory
(~/.config/fauxterm on Linux), then the working directory, and can be
overridden with FAUXTERM_* environment variables, for example
FAUXTERM_AUTH_JWT_SECRET or FAUXTERM_HTTP_ADDRESS.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var defaults, showSecrets bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultConfig()
			if !defaults {
				var err error
				if cfg, err = app.loadConfig(cmd.Context()); err != nil {
					return err
				}
			}
			if !showSecrets {
				cfg = cfg.Redacted()
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	}
	show.Flags().BoolVar(&defaults, "defaults", false, "print the built-in defaults instead")
	show.Flags().BoolVar(&showSecrets, "show-secrets", false, "do not mask secrets and API keys")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig(app.cfgFile, force)
			if errors.Is(err, config.ErrConfigExists) {
				fmt.Fprintln(app.stderr, WarningStyle.Render("config file already exists:"), path)
				fmt.Fprintln(app.stderr, SubtitleStyle.Render("use --force to overwrite it"))
				return &ExitError{Code: 1, Err: err}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓"), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p := app.cfgFile
			if p == "" {
				var err error
				if p, err = config.ConfigFilePath(); err != nil {
					return err
				}
			}
			fmt.Fprintln(app.stdout, p)
			return nil
		},
	}

	cfgCmd.AddCommand(show, initCmd, path)
	return cfgCmd
}
