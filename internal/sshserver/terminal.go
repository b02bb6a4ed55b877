// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"
	"github.com/fauxterm/fauxterm/internal/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	clearScreen = "\x1b[H\x1b[2J"

	effectFrames   = 12
	effectInterval = 60 * time.Millisecond
	effectGlyphs   = "01アイウエオカキクケコサシスセソ$#%&*"
)

type (
	// view draws interpreter output on one SSH terminal. Writes from the
	// prompt loop and from asynchronous watch output are serialized.
	view struct {
		mu       sync.Mutex
		t        *term.Terminal
		renderer *lipgloss.Renderer
		hostname string
		clock    clock.Clock
		width    int
		height   int
	}

	// sessionEnviron feeds the client's environment to termenv so colour
	// support is detected from the remote terminal rather than the server.
	sessionEnviron struct {
		env []string
	}
)

func (e sessionEnviron) Environ() []string { return e.env }

func (e sessionEnviron) Getenv(key string) string {
	for _, kv := range e.env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func newRenderer(sess ssh.Session, termName string) *lipgloss.Renderer {
	env := append(sess.Environ(), "TERM="+termName)
	return lipgloss.NewRenderer(sess,
		termenv.WithEnvironment(sessionEnviron{env: env}),
		termenv.WithUnsafe(),
		termenv.WithColorCache(true),
	)
}

// runTerminal is the interactive prompt loop of one SSH session.
func (s *Server) runTerminal(sess ssh.Session, ts *termsession.Session) {
	ptyReq, winCh, isPty := sess.Pty()
	if !isPty {
		wish.Fatalln(sess, "interactive sessions need a terminal, try: ssh -t")
		return
	}

	ctx, cancel := context.WithCancel(sess.Context())
	defer cancel()

	v := &view{
		t:        term.NewTerminal(sess, ""),
		renderer: newRenderer(sess, ptyReq.Term),
		hostname: s.cfg.Hostname,
		clock:    s.clock,
	}
	v.resize(ptyReq.Window.Width, ptyReq.Window.Height)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case w, ok := <-winCh:
				if !ok {
					return
				}
				v.resize(w.Width, w.Height)
			}
		}
	}()

	v.banner(ts.State())

	async, unsubscribe := ts.Subscribe()
	asyncDone := make(chan struct{})
	go func() {
		defer close(asyncDone)
		for o := range async {
			v.render(ctx, o)
		}
	}()

	for {
		v.t.SetPrompt(v.prompt(ts.State()))
		line, err := v.t.ReadLine()
		if err != nil {
			break
		}
		if ts.Interrupt() && strings.TrimSpace(line) == "" {
			continue
		}
		v.render(ctx, ts.Execute(ctx, line))
		if ts.State().Closed {
			break
		}
	}

	unsubscribe()
	<-asyncDone
	_ = sess.Exit(0)
}

func (v *view) resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.width, v.height = width, height
	_ = v.t.SetSize(width, height)
}

func (v *view) styles(st shell.State) theme.Styles {
	return theme.Get(st.Theme).Styles(v.renderer)
}

func (v *view) prompt(st shell.State) string {
	styles := v.styles(st)
	if st.Mode == shell.ModeREPL {
		return styles.Accent.Render(">") + " "
	}
	return styles.Prompt(st.User, v.hostname, st.Cwd.String())
}

func (v *view) banner(st shell.State) {
	styles := v.styles(st)
	v.write(
		styles.Accent.Render("fauxterm")+" on "+v.hostname,
		"Logged in as "+styles.User.Render(st.User)+". Type 'help' to see what you can do.",
		"",
	)
}

// render applies o.Special, then prints o.Lines.
func (v *view) render(ctx context.Context, o shell.Output) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch o.Special {
	case shell.SpecialClear:
		_, _ = v.t.Write([]byte(clearScreen))
	case shell.SpecialFullscreen:
		v.effect(ctx)
	}
	v.writeLocked(o.Lines...)
}

func (v *view) write(lines ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writeLocked(lines...)
}

func (v *view) writeLocked(lines ...string) {
	if len(lines) == 0 {
		return
	}
	_, _ = v.t.Write([]byte(strings.Join(lines, "\n") + "\n"))
}

// effect plays a short falling-glyph animation and clears the screen.
func (v *view) effect(ctx context.Context) {
	width, height := v.width, v.height
	if width <= 0 || height <= 0 {
		width, height = 80, 24
	}
	glyphs := []rune(effectGlyphs)
	style := v.renderer.NewStyle().Foreground(lipgloss.Color("#00FF41"))

	var b strings.Builder
	for range effectFrames {
		b.Reset()
		b.WriteString(clearScreen)
		for row := range height - 1 {
			var line strings.Builder
			for range width / 2 {
				if rand.IntN(4) == 0 {
					line.WriteRune(glyphs[rand.IntN(len(glyphs))])
				} else {
					line.WriteRune(' ')
				}
				line.WriteRune(' ')
			}
			b.WriteString(style.Render(line.String()))
			if row < height-2 {
				b.WriteString("\n")
			}
		}
		_, _ = v.t.Write([]byte(b.String()))
		select {
		case <-ctx.Done():
			return
		case <-v.clock.After(effectInterval):
		}
	}
	_, _ = v.t.Write([]byte(clearScreen))
}
