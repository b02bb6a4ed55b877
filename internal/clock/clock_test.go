// SPDX-License-Identifier: MPL-2.0

package clock

import (
	"testing"
	"time"
)

func TestFake_AfterFiresOnAdvance(t *testing.T) {
	t.Parallel()

	f := NewFake(time.Time{})
	ch := f.After(2 * time.Second)

	f.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	f.Advance(time.Second)
	select {
	case got := <-ch:
		if want := f.Now(); !got.Equal(want) {
			t.Errorf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if f.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", f.Pending())
	}
}

func TestFake_AfterNonPositiveFiresImmediately(t *testing.T) {
	t.Parallel()

	f := NewFake(time.Time{})
	select {
	case <-f.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFake_SetAndSince(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)
	f.Set(start.Add(90 * time.Minute))

	if got := f.Since(start); got != 90*time.Minute {
		t.Errorf("Since() = %v, want %v", got, 90*time.Minute)
	}
}

func TestFake_BlockUntil(t *testing.T) {
	t.Parallel()

	f := NewFake(time.Time{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-f.After(time.Minute)
	}()

	f.BlockUntil(1)
	f.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine was not released by Advance")
	}
}

func TestReal(t *testing.T) {
	t.Parallel()

	var c Clock = Real{}
	before := c.Now()
	<-c.After(time.Millisecond)
	if c.Since(before) <= 0 {
		t.Error("Since() should be positive after After fired")
	}
}
