// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/fauxterm/fauxterm/internal/theme"
)

func TestDateUsesInterpreterClock(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expect(t, "date", "Mon Jan  1 00:00:00 UTC 2024")
	h.clock.Advance(36 * time.Hour)
	h.expect(t, "date -u", "Tue Jan  2 12:00:00 UTC 2024")
	h.expect(t, "date now", "usage: date [-u]")
}

func TestUnameAndEnv(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expect(t, "uname", "Fauxterm")
	h.expect(t, "uname -a", "Fauxterm testhost v0.0.0-test "+runtime.GOOS+"/"+runtime.GOARCH+" "+runtime.Version())

	h.login(t, "alice")
	h.expect(t, "env",
		"HOME=~",
		"HOSTNAME=testhost",
		"PWD=~",
		"ROLE=user",
		"SHELL=/bin/fauxsh",
		"TERM=xterm-256color",
		"THEME=default",
		"USER=alice",
	)
}

func TestSpecialOutputs(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	tests := []struct {
		line string
		want Special
	}{
		{"clear", SpecialClear},
		{"matrix", SpecialFullscreen},
		{"reboot", SpecialClear},
		{"js", SpecialEnterREPL},
	}
	for _, tt := range tests {
		if got := h.interp.Execute(t.Context(), tt.line).Special; got != tt.want {
			t.Errorf("%s Special = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestTheme(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out := h.run(t, "theme")
	if len(out) != len(theme.Names())+1 || out[0] != "Available themes:" {
		t.Fatalf("theme listing = %q", out)
	}
	if got := markedTheme(t, out[1:]); got != "default" {
		t.Errorf("marked theme = %q, want default", got)
	}

	// Guests may switch themes; the choice is kept in memory only.
	h.expect(t, "theme AMBER", "Theme set to amber.")
	if got := h.interp.State().Theme; got != "amber" {
		t.Errorf("Theme = %q, want amber", got)
	}
	if got := markedTheme(t, h.run(t, "theme")[1:]); got != "amber" {
		t.Errorf("marked theme after switch = %q, want amber", got)
	}
	out = h.run(t, "theme neon")
	if len(out) != 1 || !strings.HasPrefix(out[0], `theme: unknown theme "neon" (available: `) {
		t.Errorf("theme neon = %q", out)
	}
}

// markedTheme returns the name on the single listing line starting with "* ".
func markedTheme(t *testing.T, listing []string) string {
	t.Helper()
	var marked []string
	for _, l := range listing {
		if rest, ok := strings.CutPrefix(l, "* "); ok {
			marked = append(marked, strings.Fields(rest)[0])
		}
	}
	if len(marked) != 1 {
		t.Fatalf("want exactly one marked theme, got %q in %q", marked, listing)
	}
	return marked[0]
}

func TestHelp(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out := h.run(t, "help")
	if len(out) != len(Categories())+1 {
		t.Fatalf("help listed %d lines: %q", len(out), out)
	}
	if !strings.Contains(out[1], "files") || !strings.Contains(out[1], " ls ") {
		t.Errorf("files row = %q", out[1])
	}

	h.expect(t, "help rm",
		"usage: rm [-r] [-f] <path...>",
		"  remove files or directories",
		"  requires: user",
		"  -r             remove directories and their contents",
		"  -f             ignore missing paths",
	)
	h.expect(t, "help pwd", "usage: pwd", "  print the current directory")
	h.expect(t, "help nope", `help: no help for "nope"`)

	out = h.run(t, "help users")
	if len(out) == 0 || !strings.Contains(strings.Join(out, "\n"), "sudo") {
		t.Errorf("help users = %q", out)
	}
}

func TestTopAndNetstat(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.clock.Advance(90 * time.Second)
	out := h.run(t, "top")
	if len(out) == 0 || out[0] != "session uptime: 1m30s" {
		t.Errorf("top = %q", out)
	}

	out = h.run(t, "netstat")
	if len(out) != 5 || !strings.Contains(out[2], "UNAVAILABLE") || out[4] != "network commands available now: 10 of 10" {
		t.Errorf("netstat = %q", out)
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	for in, want := range map[uint64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
		3 << 30: "3.0 GiB",
	} {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
