// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type failingServer struct {
	err      error
	mu       sync.Mutex
	shutdown bool
}

func (f *failingServer) Serve(ln net.Listener) error {
	_ = ln.Close()
	return f.err
}

func (f *failingServer) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdown = true
	f.mu.Unlock()
	return nil
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLifecycleHTTP(t *testing.T) {
	t.Parallel()

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
		ReadHeaderTimeout: time.Second,
	}
	lc := New("test-http", srv, WithClosedErrors(http.ErrServerClosed), WithShutdownTimeout(time.Second))

	if got := lc.State(); got != StateCreated {
		t.Fatalf("State() = %s, want created", got)
	}
	if err := lc.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !lc.IsRunning() {
		t.Fatalf("State() = %s, want running", lc.State())
	}
	if lc.Addr() == "" {
		t.Fatal("Addr() is empty after Start")
	}

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + lc.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	if err := lc.Start(context.Background(), "127.0.0.1:0"); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	if err := lc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := lc.State(); got != StateStopped {
		t.Errorf("State() after Stop = %s, want stopped", got)
	}
	if err := lc.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	select {
	case <-lc.Done():
	default:
		t.Error("Done() not closed after Stop")
	}
	if _, ok := <-lc.Err(); ok {
		t.Error("Err() delivered an error after a clean stop")
	}
}

func TestLifecycleStopBeforeStart(t *testing.T) {
	t.Parallel()

	lc := New("idle", &failingServer{})
	if err := lc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := lc.State(); got != StateStopped {
		t.Errorf("State() = %s, want stopped", got)
	}
	if err := lc.Start(context.Background(), "127.0.0.1:0"); err == nil {
		t.Error("Start() after Stop succeeded, want error")
	}
}

func TestLifecycleStartCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lc := New("cancelled", &failingServer{})
	err := lc.Start(ctx, "127.0.0.1:0")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want context.Canceled", err)
	}
	if got := lc.State(); got != StateCreated {
		t.Errorf("State() = %s, want created", got)
	}
	if err := lc.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestLifecycleListenFailure(t *testing.T) {
	t.Parallel()

	lc := New("bad-addr", &failingServer{})
	if err := lc.Start(context.Background(), "256.0.0.1:bad"); err == nil {
		t.Fatal("Start() succeeded on an invalid address")
	}
	if got := lc.State(); got != StateFailed {
		t.Errorf("State() = %s, want failed", got)
	}
	if lc.LastError() == nil {
		t.Error("LastError() = nil after a listen failure")
	}
	if err := lc.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestLifecycleServeFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fs := &failingServer{err: boom}
	lc := New("flaky", fs)
	if err := lc.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case err := <-lc.Err():
		if !errors.Is(err, boom) {
			t.Errorf("Err() = %v, want %v", err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error delivered")
	}
	<-lc.Done()
	if got := lc.State(); got != StateFailed {
		t.Errorf("State() = %s, want failed", got)
	}

	if err := lc.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if got := lc.State(); got != StateFailed {
		t.Errorf("State() after Stop = %s, want failed", got)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.shutdown {
		t.Error("Shutdown was not called")
	}
}

func TestStateValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state   State
		want    string
		wantErr bool
	}{
		{StateCreated, "created", false},
		{StateRunning, "running", false},
		{StateFailed, "failed", false},
		{State(-1), "state(-1)", true},
		{State(42), "state(42)", true},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("Validate() error does not wrap ErrInvalidState: %v", err)
			}
		})
	}
	if !StateStopped.IsTerminal() || StateRunning.IsTerminal() {
		t.Error("IsTerminal() mismatch")
	}
}
