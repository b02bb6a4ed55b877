// SPDX-License-Identifier: MPL-2.0

package theme

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestNamesAndLookup(t *testing.T) {
	t.Parallel()

	names := Names()
	if len(names) != len(themes) {
		t.Fatalf("Names() = %v, want %d themes", names, len(themes))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names() not sorted: %v", names)
		}
	}
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			t.Errorf("Lookup(%q) failed", n)
		}
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup(nope) should fail")
	}
	if got := Get("nope").Name; got != DefaultName {
		t.Errorf("Get(nope).Name = %q, want %q", got, DefaultName)
	}
	if all := All(); all[0].Name != names[0] {
		t.Errorf("All()[0] = %q, want %q", all[0].Name, names[0])
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)

	s := Get("matrix").Styles(r)
	if got := s.Prompt("alice", "fauxterm", "/notes"); got != "alice@fauxterm:/notes$ " {
		t.Errorf("Prompt() = %q", got)
	}
	if got := s.Prompt("root", "fauxterm", "~"); !strings.HasSuffix(got, "# ") {
		t.Errorf("root prompt = %q, want # sigil", got)
	}

	r256 := lipgloss.NewRenderer(io.Discard)
	r256.SetColorProfile(termenv.TrueColor)
	if got := Get("matrix").Styles(r256).Prompt("a", "h", "~"); !strings.Contains(got, "\x1b[") {
		t.Errorf("colour prompt has no escape sequences: %q", got)
	}
}
