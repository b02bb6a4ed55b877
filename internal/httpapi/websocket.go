// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = maxLineLen + 256
)

type (
	// clientFrame is a message from the browser.
	clientFrame struct {
		Type string `json:"type"`
		Line string `json:"line,omitempty"`
	}

	// serverFrame is a message to the browser. Output frames answer exec
	// requests and carry watch ticks; result frames also carry the session
	// state.
	serverFrame struct {
		Type    string        `json:"type"`
		Lines   []string      `json:"lines"`
		Special shell.Special `json:"special,omitempty"`
		Cwd     string        `json:"cwd,omitempty"`
		User    string        `json:"user,omitempty"`
		REPL    bool          `json:"repl,omitempty"`
		Closed  bool          `json:"closed,omitempty"`
		Error   string        `json:"error,omitempty"`
	}
)

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "session", sess.ID(), "error", err)
		return
	}
	s.logger.Debug("websocket attached", "session", sess.ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	async, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	results := make(chan serverFrame, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeFrames(ctx, conn, async, results)
	}()

	s.readFrames(ctx, conn, sess, results)
	cancel()
	<-writerDone
	_ = conn.Close()
	s.logger.Debug("websocket detached", "session", sess.ID())
}

// readFrames handles client frames until the connection fails.
func (s *Server) readFrames(ctx context.Context, conn *websocket.Conn, sess *termsession.Session, results chan<- serverFrame) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if _, err := s.sessions.Get(sess.ID()); err != nil {
			s.send(ctx, results, serverFrame{Type: "error", Error: err.Error()})
			return
		}

		var reply serverFrame
		switch f.Type {
		case "exec":
			out := sess.Execute(ctx, f.Line)
			st := sess.State()
			reply = serverFrame{
				Type:    "output",
				Lines:   normalize(out).Lines,
				Special: out.Special,
				Cwd:     st.Cwd.String(),
				User:    st.User,
				REPL:    st.Mode == shell.ModeREPL,
				Closed:  st.Closed,
			}
		case "interrupt":
			sess.Interrupt()
			continue
		default:
			reply = serverFrame{Type: "error", Error: "unknown frame type " + f.Type}
		}
		if !s.send(ctx, results, reply) {
			return
		}
	}
}

func (s *Server) send(ctx context.Context, results chan<- serverFrame, f serverFrame) bool {
	select {
	case results <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// writeFrames is the only writer of conn. It returns when ctx is done, the
// session's output stream closes or a write fails; in the last two cases it
// closes conn so the reader unblocks.
func (s *Server) writeFrames(ctx context.Context, conn *websocket.Conn, async <-chan shell.Output, results <-chan serverFrame) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(f serverFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(f) == nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-results:
			if !write(f) {
				_ = conn.Close()
				return
			}
		case o, ok := <-async:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteWait))
				_ = conn.Close()
				return
			}
			if !write(serverFrame{Type: "output", Lines: normalize(o).Lines, Special: o.Special}) {
				_ = conn.Close()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
