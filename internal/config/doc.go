// SPDX-License-Identifier: MPL-2.0

// Package config loads fauxterm's settings with Viper, using CUE as the file
// format.
//
// Values come from, in increasing priority: built-in defaults, a config.cue
// file (validated against the embedded #Config schema in config_schema.cue),
// and FAUXTERM_* environment variables such as FAUXTERM_AUTH_JWT_SECRET.
// The file is looked up in the user config directory (for example
// ~/.config/fauxterm/config.cue on Linux) and then in the working directory.
package config
