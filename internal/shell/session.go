// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"maps"
	"slices"

	"github.com/fauxterm/fauxterm/internal/calc"
	"github.com/fauxterm/fauxterm/internal/fetch"
	"github.com/fauxterm/fauxterm/internal/theme"
	"github.com/fauxterm/fauxterm/internal/userstore"
	"github.com/fauxterm/fauxterm/pkg/vpath"
)

const (
	// ModeShell dispatches lines as commands.
	ModeShell Mode = iota
	// ModeREPL evaluates lines with the calculator until ".exit".
	ModeREPL
)

type (
	// Mode selects how submitted lines are interpreted.
	Mode int

	// Identity is who a session acts as. The zero value is the guest.
	Identity struct {
		Username string
		Role     userstore.Role
		// Token is the signed session token issued at login, if any.
		Token string
	}

	// Prefs are the per-account settings persisted across sessions.
	Prefs struct {
		Aliases map[string]string `json:"aliases"`
		Theme   string            `json:"theme"`
	}

	// Session is the per-connection state of an Interpreter. It is only
	// touched while the Interpreter holds its lock.
	Session struct {
		identity     Identity
		cwd          vpath.Path
		prefs        Prefs
		history      []string
		historyLimit int
		mode         Mode
		repl         *calc.Env
		aiTurns      []fetch.Turn
		tracks       []fetch.Track
		playing      string
		closed       bool
		defaultTheme string
	}

	// State is a read-only snapshot of a Session for presentation layers.
	State struct {
		User  string
		Role  userstore.Role
		Cwd   vpath.Path
		Theme string
		Mode  Mode
		// Closed is set once the user ran exit.
		Closed bool
	}
)

// IsGuest reports whether id is the anonymous identity.
func (id Identity) IsGuest() bool { return id.Username == "" }

// IsAdmin reports whether id holds the admin role.
func (id Identity) IsAdmin() bool { return !id.IsGuest() && id.Role.IsAdmin() }

// Name returns the username, or "guest".
func (id Identity) Name() string {
	if id.IsGuest() {
		return userstore.GuestName
	}
	return id.Username
}

// DefaultPrefs returns the settings of a fresh account.
func DefaultPrefs() Prefs {
	return Prefs{Aliases: map[string]string{}, Theme: theme.DefaultName}
}

func (p Prefs) clone() Prefs {
	out := Prefs{Aliases: maps.Clone(p.Aliases), Theme: p.Theme}
	if out.Aliases == nil {
		out.Aliases = map[string]string{}
	}
	if out.Theme == "" {
		out.Theme = theme.DefaultName
	}
	return out
}

func newSession(historyLimit int, defaultTheme string) *Session {
	s := &Session{
		cwd:          vpath.Root,
		historyLimit: historyLimit,
		defaultTheme: defaultTheme,
	}
	s.prefs = s.freshPrefs()
	return s
}

// freshPrefs returns the prefs of an account that never saved any.
func (s *Session) freshPrefs() Prefs {
	p := DefaultPrefs()
	if _, ok := theme.Lookup(s.defaultTheme); ok {
		p.Theme = s.defaultTheme
	}
	return p
}

// Identity returns who the session acts as.
func (s *Session) Identity() Identity { return s.identity }

// Cwd returns the current directory.
func (s *Session) Cwd() vpath.Path { return s.cwd }

// Alias returns the expansion of name.
func (s *Session) Alias(name string) (string, bool) {
	exp, ok := s.prefs.Aliases[name]
	return exp, ok
}

// AliasNames returns the alias names in sorted order.
func (s *Session) AliasNames() []string {
	return slices.Sorted(maps.Keys(s.prefs.Aliases))
}

// History returns a copy of the command history, oldest first.
func (s *Session) History() []string { return slices.Clone(s.history) }

func (s *Session) addHistory(line string) {
	s.history = append(s.history, line)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = slices.Delete(s.history, 0, len(s.history)-s.historyLimit)
	}
}

// reset returns the session to the guest state, keeping history.
func (s *Session) reset() {
	s.identity = Identity{}
	s.cwd = vpath.Root
	s.prefs = s.freshPrefs()
	s.mode = ModeShell
	s.repl = nil
	s.aiTurns = nil
	s.tracks = nil
	s.playing = ""
}

func (s *Session) state() State {
	return State{
		User:   s.identity.Name(),
		Role:   s.identity.Role,
		Cwd:    s.cwd,
		Theme:  s.prefs.Theme,
		Mode:   s.mode,
		Closed: s.closed,
	}
}

// HasRole reports whether id is logged in with role r.
func (id Identity) HasRole(r userstore.Role) bool { return !id.IsGuest() && id.Role == r }
