// SPDX-License-Identifier: MPL-2.0

// Package theme defines the colour palettes selectable with the theme
// command and renders prompts and output lines with them.
package theme

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultName is the theme of new sessions.
const DefaultName = "default"

type (
	// Theme is a named palette.
	Theme struct {
		Name        string
		Description string
		User        lipgloss.Color
		Path        lipgloss.Color
		Text        lipgloss.Color
		Error       lipgloss.Color
		Accent      lipgloss.Color
	}

	// Styles are the lipgloss styles of a theme bound to one renderer.
	Styles struct {
		User   lipgloss.Style
		Path   lipgloss.Style
		Text   lipgloss.Style
		Error  lipgloss.Style
		Accent lipgloss.Style
	}
)

var themes = []Theme{
	{
		Name:        DefaultName,
		Description: "purple prompt on a dark background",
		User:        lipgloss.Color("#7C3AED"),
		Path:        lipgloss.Color("#3B82F6"),
		Text:        lipgloss.Color("#E5E7EB"),
		Error:       lipgloss.Color("#EF4444"),
		Accent:      lipgloss.Color("#10B981"),
	},
	{
		Name:        "matrix",
		Description: "green phosphor",
		User:        lipgloss.Color("#00FF41"),
		Path:        lipgloss.Color("#008F11"),
		Text:        lipgloss.Color("#00FF41"),
		Error:       lipgloss.Color("#FF3131"),
		Accent:      lipgloss.Color("#39FF14"),
	},
	{
		Name:        "amber",
		Description: "amber monochrome monitor",
		User:        lipgloss.Color("#FFB000"),
		Path:        lipgloss.Color("#FFCC00"),
		Text:        lipgloss.Color("#FFB000"),
		Error:       lipgloss.Color("#FF5F00"),
		Accent:      lipgloss.Color("#FFD75F"),
	},
	{
		Name:        "dracula",
		Description: "dracula palette",
		User:        lipgloss.Color("#FF79C6"),
		Path:        lipgloss.Color("#8BE9FD"),
		Text:        lipgloss.Color("#F8F8F2"),
		Error:       lipgloss.Color("#FF5555"),
		Accent:      lipgloss.Color("#50FA7B"),
	},
	{
		Name:        "solarized",
		Description: "solarized dark",
		User:        lipgloss.Color("#B58900"),
		Path:        lipgloss.Color("#268BD2"),
		Text:        lipgloss.Color("#93A1A1"),
		Error:       lipgloss.Color("#DC322F"),
		Accent:      lipgloss.Color("#2AA198"),
	},
	{
		Name:        "nord",
		Description: "arctic blues",
		User:        lipgloss.Color("#88C0D0"),
		Path:        lipgloss.Color("#81A1C1"),
		Text:        lipgloss.Color("#ECEFF4"),
		Error:       lipgloss.Color("#BF616A"),
		Accent:      lipgloss.Color("#A3BE8C"),
	},
}

// Names returns the theme names in sorted order.
func Names() []string {
	names := make([]string, 0, len(themes))
	for _, t := range themes {
		names = append(names, t.Name)
	}
	slices.Sort(names)
	return names
}

// All returns every theme in sorted name order.
func All() []Theme {
	out := slices.Clone(themes)
	slices.SortFunc(out, func(a, b Theme) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Lookup returns the theme called name.
func Lookup(name string) (Theme, bool) {
	for _, t := range themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// Get returns the theme called name, or the default theme.
func Get(name string) Theme {
	if t, ok := Lookup(name); ok {
		return t
	}
	t, _ := Lookup(DefaultName)
	return t
}

// Styles builds the theme's styles on r. A nil r uses the default renderer.
func (t Theme) Styles(r *lipgloss.Renderer) Styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Styles{
		User:   r.NewStyle().Bold(true).Foreground(t.User),
		Path:   r.NewStyle().Foreground(t.Path),
		Text:   r.NewStyle().Foreground(t.Text),
		Error:  r.NewStyle().Foreground(t.Error),
		Accent: r.NewStyle().Foreground(t.Accent),
	}
}

// Prompt renders "user@host:cwd$ ".
func (s Styles) Prompt(user, host, cwd string) string {
	sigil := "$"
	if user == "root" {
		sigil = "#"
	}
	return s.User.Render(user+"@"+host) + ":" + s.Path.Render(cwd) + sigil + " "
}
