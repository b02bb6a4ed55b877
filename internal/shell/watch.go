// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// watchRun is the handle of the one active watch of an Interpreter.
type watchRun struct {
	cancel context.CancelFunc
}

// Interrupt cancels the active watch. It reports whether one was running.
func (i *Interpreter) Interrupt() bool {
	return i.stopWatch()
}

// Watching reports whether a watch is active.
func (i *Interpreter) Watching() bool {
	i.watchMu.Lock()
	defer i.watchMu.Unlock()
	return i.watch != nil
}

func (i *Interpreter) stopWatch() bool {
	i.watchMu.Lock()
	w := i.watch
	i.watch = nil
	i.watchMu.Unlock()

	if w == nil {
		return false
	}
	w.cancel()
	return true
}

// startWatch replaces any active watch with one running line every interval,
// count times (0 = until interrupted). The first run happens as soon as the
// current Execute returns. An elevated watch keeps sudo rights while the
// session identity is still an admin.
func (i *Interpreter) startWatch(line string, interval time.Duration, count int, elevated bool) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watchRun{cancel: cancel}

	i.watchMu.Lock()
	prev := i.watch
	i.watch = w
	i.watchMu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	i.watchWG.Add(1)
	go i.runWatch(ctx, w, line, interval, count, elevated)
}

func (i *Interpreter) runWatch(ctx context.Context, w *watchRun, line string, interval time.Duration, count int, elevated bool) {
	defer i.watchWG.Done()
	defer func() {
		i.watchMu.Lock()
		if i.watch == w {
			i.watch = nil
		}
		i.watchMu.Unlock()
		w.cancel()
	}()

	for n := 0; count <= 0 || n < count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return
			case <-i.cfg.Clock.After(interval):
			}
		}
		out, state := i.watchTick(ctx, line, elevated)
		if state == tickCancelled {
			return
		}
		header := "Every " + formatSeconds(interval) + ": " + line
		tick := Output{Lines: append([]string{header, ""}, out.Lines...)}
		if out.Special != SpecialClear {
			tick.Special = out.Special
		}
		i.emit(Control(SpecialClear))
		i.emit(tick)
		if state == tickFinal {
			return
		}
	}
}

type tickState int

const (
	tickOK tickState = iota
	// tickFinal ends the watch after this tick's output.
	tickFinal
	// tickCancelled means the watch stopped while waiting for the lock.
	tickCancelled
)

// watchTick runs one iteration under the interpreter lock. A watched command
// that switches the session into the calculator is undone and ends the watch.
func (i *Interpreter) watchTick(ctx context.Context, line string, elevated bool) (Output, tickState) {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := i.session
	if ctx.Err() != nil || s.closed {
		return Output{}, tickCancelled
	}
	i.ticking = true
	defer func() { i.ticking = false }()

	mode, repl := s.mode, s.repl
	fields := strings.Fields(line)
	out := i.dispatch(ctx, fields, elevated && s.identity.IsAdmin(), 0, "")
	if out.Special == SpecialEnterREPL {
		s.mode, s.repl = mode, repl
		return Linef("watch: %s: interactive commands cannot be watched", fields[0]), tickFinal
	}
	return out, tickOK
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}
