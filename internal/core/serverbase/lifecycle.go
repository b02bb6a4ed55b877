// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type (
	// Server is what a Lifecycle drives. *http.Server and *ssh.Server
	// satisfy it.
	Server interface {
		Serve(l net.Listener) error
		Shutdown(ctx context.Context) error
	}

	// Lifecycle binds a listener, serves on it in a goroutine and shuts the
	// server down gracefully. A Lifecycle is single use.
	Lifecycle struct {
		name            string
		srv             Server
		logger          *log.Logger
		shutdownTimeout time.Duration
		closedErrs      []error

		state atomic.Int32

		mu      sync.Mutex
		addr    string
		ln      net.Listener
		lastErr error

		wg       sync.WaitGroup
		errs     chan error
		errsOnce sync.Once
		done     chan struct{}
		stopOnce sync.Once
		stopErr  error
	}
)

// New returns a Lifecycle for srv. name labels log records.
func New(name string, srv Server, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		name:            name,
		srv:             srv,
		logger:          log.New(io.Discard),
		shutdownTimeout: DefaultShutdownTimeout,
		errs:            make(chan error, 1),
		done:            make(chan struct{}),
	}
	lc.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// State returns the current state without locking.
func (lc *Lifecycle) State() State { return State(lc.state.Load()) }

// IsRunning reports whether the server accepts connections.
func (lc *Lifecycle) IsRunning() bool { return lc.State() == StateRunning }

// Addr returns the bound address, which differs from the configured one
// when port 0 was requested. It is empty before Start.
func (lc *Lifecycle) Addr() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.addr
}

// Err delivers a serve failure that happened after Start returned. It is
// closed once the Lifecycle reaches a terminal state.
func (lc *Lifecycle) Err() <-chan error { return lc.errs }

// Done is closed when the serve goroutine has exited.
func (lc *Lifecycle) Done() <-chan struct{} { return lc.done }

// LastError returns the failure that moved the Lifecycle to StateFailed.
func (lc *Lifecycle) LastError() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.lastErr
}

// Start binds addr and begins serving. It returns once the listener is
// bound, so Addr is valid as soon as Start returns nil.
func (lc *Lifecycle) Start(ctx context.Context, addr string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: not started: %w", lc.name, err)
	}
	if !lc.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("%s: cannot start in state %s", lc.name, lc.State())
	}

	var cfg net.ListenConfig
	ln, err := cfg.Listen(ctx, "tcp", addr)
	if err != nil {
		err = fmt.Errorf("%s: listen on %s: %w", lc.name, addr, err)
		lc.fail(err)
		close(lc.done)
		lc.closeErrs()
		return err
	}

	lc.mu.Lock()
	lc.ln = ln
	lc.addr = ln.Addr().String()
	lc.mu.Unlock()

	lc.state.Store(int32(StateRunning))
	lc.wg.Add(1)
	go lc.serve(ln)

	lc.logger.Info("listening", "server", lc.name, "address", lc.Addr())
	return nil
}

func (lc *Lifecycle) serve(ln net.Listener) {
	defer lc.wg.Done()
	defer close(lc.done)

	err := lc.srv.Serve(ln)
	if err == nil || lc.isClosed(err) {
		return
	}
	if lc.State() == StateStopping {
		return
	}
	err = fmt.Errorf("%s: serve: %w", lc.name, err)
	lc.logger.Error("server failed", "server", lc.name, "error", err)
	lc.fail(err)
}

func (lc *Lifecycle) isClosed(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	for _, c := range lc.closedErrs {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

func (lc *Lifecycle) fail(err error) {
	lc.mu.Lock()
	lc.lastErr = err
	lc.mu.Unlock()
	lc.state.Store(int32(StateFailed))
	select {
	case lc.errs <- err:
	default:
	}
}

// Stop shuts the server down, waiting up to the shutdown timeout for open
// connections. It is safe to call Stop more than once, or before Start. Stop
// must not race with Start.
func (lc *Lifecycle) Stop() error {
	lc.stopOnce.Do(func() { lc.stopErr = lc.stop() })
	return lc.stopErr
}

func (lc *Lifecycle) stop() error {
	lc.mu.Lock()
	ln := lc.ln
	lc.mu.Unlock()
	if ln == nil {
		if lc.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
			close(lc.done)
			lc.closeErrs()
		}
		return nil
	}

	failed := lc.State() == StateFailed
	lc.state.Store(int32(StateStopping))

	ctx, cancel := context.WithTimeout(context.Background(), lc.shutdownTimeout)
	defer cancel()
	err := lc.srv.Shutdown(ctx)
	if err != nil && lc.isClosed(err) {
		err = nil
	}
	_ = ln.Close() // usually already closed by Shutdown
	lc.wg.Wait()

	if failed {
		lc.state.Store(int32(StateFailed))
	} else {
		lc.state.Store(int32(StateStopped))
	}
	lc.closeErrs()
	lc.logger.Info("stopped", "server", lc.name)
	if err != nil {
		return fmt.Errorf("%s: shutdown: %w", lc.name, err)
	}
	return nil
}

func (lc *Lifecycle) closeErrs() {
	lc.errsOnce.Do(func() { close(lc.errs) })
}
