// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/fetch"
	"github.com/fauxterm/fauxterm/internal/kvstore"
	"github.com/fauxterm/fauxterm/internal/userstore"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type (
	fakeAccount struct {
		password string
		role     userstore.Role
	}

	// fakeAuth is an in-memory Authenticator that records mutating calls.
	fakeAuth struct {
		mu         sync.Mutex
		accounts   map[string]fakeAccount
		registered []string
		deleted    []string
		changed    []string
	}

	// recorder collects everything an Interpreter emits through its sink.
	recorder struct {
		mu      sync.Mutex
		outputs []Output
		notify  chan struct{}
	}

	// flakyKV fails every Put while failPuts is set.
	flakyKV struct {
		kvstore.Store
		mu       sync.Mutex
		failPuts bool
	}

	harness struct {
		interp *Interpreter
		kv     *flakyKV
		auth   *fakeAuth
		clock  *clock.Fake
		sink   *recorder
	}

	harnessOption func(*Config)
)

func newFakeAuth() *fakeAuth {
	return &fakeAuth{accounts: map[string]fakeAccount{
		"alice": {password: "alicepw", role: userstore.RoleUser},
		"carol": {password: "carolpw", role: userstore.RoleUser},
		"admin": {password: "adminpw", role: userstore.RoleAdmin},
	}}
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (string, auth.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[username]
	if !ok || acct.password != password {
		return "", auth.Claims{}, auth.ErrInvalidCredentials
	}
	return "token-" + username, auth.Claims{Username: userstore.Username(username), Role: acct.role}, nil
}

func (f *fakeAuth) ChangePassword(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[username]
	if !ok {
		return fmt.Errorf("%w: %s", userstore.ErrUserNotFound, username)
	}
	acct.password = password
	f.accounts[username] = acct
	f.changed = append(f.changed, username)
	return nil
}

func (f *fakeAuth) Register(_ context.Context, username, password string, role userstore.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[username]; ok {
		return fmt.Errorf("%w: %s", userstore.ErrUserExists, username)
	}
	f.accounts[username] = fakeAccount{password: password, role: role}
	f.registered = append(f.registered, username)
	return nil
}

func (f *fakeAuth) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[username]; !ok {
		return fmt.Errorf("%w: %s", userstore.ErrUserNotFound, username)
	}
	delete(f.accounts, username)
	f.deleted = append(f.deleted, username)
	return nil
}

func (f *fakeAuth) Users(context.Context) ([]userstore.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []userstore.User
	for name, acct := range f.accounts {
		out = append(out, userstore.User{
			Username:  userstore.Username(name),
			Role:      acct.role,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	slices.SortFunc(out, func(a, b userstore.User) int {
		return strings.Compare(string(a.Username), string(b.Username))
	})
	return out, nil
}

func (f *fakeAuth) registeredUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.registered)
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) sink(o Output) {
	r.mu.Lock()
	r.outputs = append(r.outputs, o)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) snapshot() []Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outputs)
}

// waitFor blocks until at least n outputs were recorded.
func (r *recorder) waitFor(t *testing.T, n int) []Output {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d sink outputs, got %d", n, len(r.snapshot()))
		}
	}
}

func newFlakyKV() *flakyKV {
	return &flakyKV{Store: kvstore.NewMemory()}
}

func (k *flakyKV) Put(ctx context.Context, key string, value json.RawMessage) error {
	k.mu.Lock()
	fail := k.failPuts
	k.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return k.Store.Put(ctx, key, value)
}

func (k *flakyKV) setFailing(v bool) {
	k.mu.Lock()
	k.failPuts = v
	k.mu.Unlock()
}

func withServices(s *fetch.Services) harnessOption {
	return func(c *Config) { c.Services = s }
}

func withLimits(l Limits) harnessOption {
	return func(c *Config) { c.Limits = l }
}

func withRegistry(r *Registry) harnessOption {
	return func(c *Config) { c.Registry = r }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		kv:    newFlakyKV(),
		auth:  newFakeAuth(),
		clock: clock.NewFake(time.Time{}),
		sink:  newRecorder(),
	}
	cfg := Config{
		KV:       h.kv,
		Auth:     h.auth,
		Clock:    h.clock,
		Sink:     h.sink.sink,
		Hostname: "testhost",
		Version:  "v0.0.0-test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.interp = New(cfg)
	t.Cleanup(h.interp.Close)
	return h
}

// run executes line and returns its lines.
func (h *harness) run(t *testing.T, line string) []string {
	t.Helper()
	return h.interp.Execute(t.Context(), line).Lines
}

// login logs in as user with its fake password.
func (h *harness) login(t *testing.T, user string) {
	t.Helper()
	h.auth.mu.Lock()
	pw := h.auth.accounts[user].password
	h.auth.mu.Unlock()
	out := h.run(t, "login "+user+" "+pw)
	if len(out) != 1 || out[0] != fmt.Sprintf("Welcome, %s! Type 'help' to see what you can do.", user) {
		t.Fatalf("login %s = %q", user, out)
	}
}

// expect runs line and compares its lines with want.
func (h *harness) expect(t *testing.T, line string, want ...string) {
	t.Helper()
	got := h.run(t, line)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("%q output mismatch (-want +got):\n%s", line, diff)
	}
}
