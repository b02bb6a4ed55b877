// SPDX-License-Identifier: MPL-2.0

// Package clock abstracts wall-clock time so schedulers such as the watch
// loop and session expiry can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

type (
	// Clock is the time source used by schedulers.
	Clock interface {
		// Now returns the current time.
		Now() time.Time

		// After delivers the current time on the returned channel once d has elapsed.
		After(d time.Duration) <-chan time.Time

		// Since returns the time elapsed since t.
		Since(t time.Time) time.Duration
	}

	// Real implements Clock with the system clock.
	Real struct{}

	// Fake implements Clock with manually controlled time.
	// Time only moves when Advance or Set is called.
	Fake struct {
		mu      sync.Mutex
		cond    *sync.Cond
		current time.Time
		waiters []waiter
	}

	waiter struct {
		target time.Time
		ch     chan time.Time
	}
)

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// After wraps time.After.
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Since wraps time.Since.
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

// NewFake creates a Fake clock set to initial, or to a fixed reference
// instant when initial is zero.
func NewFake(initial time.Time) *Fake {
	if initial.IsZero() {
		initial = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	f := &Fake{current: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// After returns a channel that fires once the fake time reaches now+d.
// A non-positive d fires immediately.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.current
		return ch
	}
	f.waiters = append(f.waiters, waiter{target: f.current.Add(d), ch: ch})
	f.cond.Broadcast()
	return ch
}

// Since returns the fake time elapsed since t.
func (f *Fake) Since(t time.Time) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.Sub(t)
}

// Advance moves the fake time forward by d and fires due waiters.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	f.fire()
}

// Set moves the fake time to t and fires due waiters.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
	f.fire()
}

// BlockUntil waits until at least n After calls are pending.
// Tests use it to know a scheduler goroutine is parked before advancing time.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.waiters) < n {
		f.cond.Wait()
	}
}

// Pending returns the number of After calls that have not fired yet.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// fire must be called with mu held.
func (f *Fake) fire() {
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if f.current.Before(w.target) {
			remaining = append(remaining, w)
			continue
		}
		select {
		case w.ch <- f.current:
		default:
		}
	}
	f.waiters = remaining
}
