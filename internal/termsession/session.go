// SPDX-License-Identifier: MPL-2.0

package termsession

import (
	"context"
	"sync"
	"time"

	"github.com/fauxterm/fauxterm/internal/shell"
)

// outboxSize bounds the output kept for a session nobody is listening to.
const outboxSize = 64

// Session is one registered terminal.
type Session struct {
	id      string
	interp  *shell.Interpreter
	created time.Time

	mu       sync.Mutex
	lastUsed time.Time
	outbox   []shell.Output
	sub      chan shell.Output
	closed   bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Created returns the creation time.
func (s *Session) Created() time.Time { return s.created }

// LastUsed returns the time of the last lookup or command.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// Execute runs one line on the session's interpreter.
func (s *Session) Execute(ctx context.Context, line string) shell.Output {
	return s.interp.Execute(ctx, line)
}

// Interrupt cancels the active watch.
func (s *Session) Interrupt() bool { return s.interp.Interrupt() }

// State returns a snapshot of the interpreter session.
func (s *Session) State() shell.State { return s.interp.State() }

// deliver is the interpreter sink.
func (s *Session) deliver(o shell.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.sub != nil {
		select {
		case s.sub <- o:
			return
		default:
		}
	}
	if len(s.outbox) == outboxSize {
		s.outbox = s.outbox[1:]
	}
	s.outbox = append(s.outbox, o)
}

// Drain returns and clears the output buffered since the last Drain.
func (s *Session) Drain() []shell.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outbox
	s.outbox = nil
	return out
}

// Subscribe streams asynchronous output to the returned channel. Buffered
// output is flushed into it first. A new subscription replaces the previous
// one, whose channel is closed. cancel ends the subscription.
func (s *Session) Subscribe() (<-chan shell.Output, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan shell.Output, outboxSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.sub != nil {
		close(s.sub)
	}
	for _, o := range s.outbox {
		ch <- o
	}
	s.outbox = nil
	s.sub = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sub == ch {
			close(ch)
			s.sub = nil
		}
	}
	return ch, cancel
}

func (s *Session) close() {
	s.interp.Close()
	s.mu.Lock()
	s.closed = true
	if s.sub != nil {
		close(s.sub)
		s.sub = nil
	}
	s.outbox = nil
	s.mu.Unlock()
}
