// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/database"
	"github.com/fauxterm/fauxterm/internal/kvstore"
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"
	"github.com/fauxterm/fauxterm/internal/userstore"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv      *Server
	ts       *httptest.Server
	client   *http.Client
	sessions *termsession.Manager
	auth     *auth.Service
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	db, err := database.Open(t.Context(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	users, err := userstore.NewSQLite(t.Context(), db)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := auth.New(users, auth.Config{Secret: testSecret, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Register(t.Context(), "alice", "alicepw", userstore.RoleUser); err != nil {
		t.Fatal(err)
	}

	sessions := termsession.NewManager(shell.Config{KV: kvstore.NewMemory(), Auth: svc})
	srv := New(cfg, sessions, svc)
	ts := httptest.NewServer(srv.Handler())
	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	t.Cleanup(func() {
		ts.Close()
		sessions.CloseAll()
	})
	return &testEnv{srv: srv, ts: ts, client: client, sessions: sessions, auth: svc}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequestWithContext(t.Context(), method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	var lr loginResponse
	if code := e.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "alicepw"}, &lr); code != http.StatusOK {
		t.Fatalf("login status = %d", code)
	}
	return lr.Token
}

func (e *testEnv) session(t *testing.T, token string) sessionResponse {
	t.Helper()
	var sr sessionResponse
	if code := e.do(t, http.MethodPost, "/api/sessions", token, nil, &sr); code != http.StatusCreated {
		t.Fatalf("create session status = %d", code)
	}
	return sr
}

func (e *testEnv) exec(t *testing.T, id, line string) execResponse {
	t.Helper()
	var er execResponse
	if code := e.do(t, http.MethodPost, "/api/sessions/"+id+"/exec", "", execRequest{Line: line}, &er); code != http.StatusOK {
		t.Fatalf("exec %q status = %d", line, code)
	}
	return er
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	var got map[string]string
	if code := e.do(t, http.MethodGet, "/api/health", "", nil, &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{LoginPerMinute: 1, LoginBurst: 3})

	var lr loginResponse
	if code := e.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "alicepw"}, &lr); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if lr.Token == "" || lr.Username != "alice" || lr.Role != "user" || lr.ExpiresAt.IsZero() {
		t.Errorf("login response = %+v", lr)
	}

	var er errorResponse
	if code := e.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "nope"}, &er); code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", code)
	}
	if er.Error != auth.ErrInvalidCredentials.Error() {
		t.Errorf("error = %q", er.Error)
	}

	if code := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"user": "x"}, &er); code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", code)
	}

	if code := e.do(t, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "alicepw"}, &er); code != http.StatusTooManyRequests {
		t.Errorf("fourth attempt status = %d, want 429", code)
	}
}

func TestGuestSession(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	sr := e.session(t, "")
	if sr.User != userstore.GuestName || sr.Cwd != "~" {
		t.Errorf("session = %+v", sr)
	}

	got := e.exec(t, sr.ID, "echo hello world")
	if diff := cmp.Diff([]string{"hello world"}, got.Lines); diff != "" {
		t.Errorf("echo mismatch (-want +got):\n%s", diff)
	}
	got = e.exec(t, sr.ID, "ls")
	if diff := cmp.Diff([]string{"ls: permission denied: login required"}, got.Lines); diff != "" {
		t.Errorf("ls mismatch (-want +got):\n%s", diff)
	}
	got = e.exec(t, sr.ID, "clear")
	if got.Special != shell.SpecialClear || got.Lines == nil {
		t.Errorf("clear = %+v, want clear special with empty lines", got)
	}
}

func TestAuthenticatedSession(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	sr := e.session(t, e.login(t))
	if sr.User != "alice" {
		t.Fatalf("session user = %q, want alice", sr.User)
	}

	e.exec(t, sr.ID, "mkdir notes")
	got := e.exec(t, sr.ID, "cd notes")
	if got.Cwd != "/notes" || got.User != "alice" {
		t.Errorf("after cd: cwd=%q user=%q", got.Cwd, got.User)
	}
	got = e.exec(t, sr.ID, "js")
	if !got.REPL || got.Special != shell.SpecialEnterREPL {
		t.Errorf("js = %+v, want REPL mode", got)
	}
	got = e.exec(t, sr.ID, ".exit")
	if got.REPL {
		t.Error("still in REPL after .exit")
	}
	got = e.exec(t, sr.ID, "exit")
	if !got.Closed {
		t.Errorf("exit = %+v, want closed", got)
	}

	var er errorResponse
	if code := e.do(t, http.MethodPost, "/api/sessions", "not-a-token", nil, &er); code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", code)
	}
}

func TestDeletedAccountTokenRejected(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	token := e.login(t)
	if err := e.auth.DeleteUser(t.Context(), "alice"); err != nil {
		t.Fatal(err)
	}

	var er errorResponse
	if code := e.do(t, http.MethodPost, "/api/sessions", token, nil, &er); code != http.StatusUnauthorized {
		t.Errorf("create session with a deleted account's token: status = %d, want 401", code)
	}
	if n := e.sessions.Len(); n != 0 {
		t.Errorf("%d sessions created for a deleted account", n)
	}
}

func TestSessionNotFoundAndDelete(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})

	var er errorResponse
	if code := e.do(t, http.MethodPost, "/api/sessions/nope/exec", "", execRequest{Line: "echo"}, &er); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
	if er.Error != termsession.ErrNotFound.Error() {
		t.Errorf("error = %q", er.Error)
	}

	sr := e.session(t, "")
	if code := e.do(t, http.MethodDelete, "/api/sessions/"+sr.ID, "", nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", code)
	}
	if code := e.do(t, http.MethodDelete, "/api/sessions/"+sr.ID, "", nil, &er); code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", code)
	}
	if e.sessions.Len() != 0 {
		t.Errorf("Len() = %d after delete", e.sessions.Len())
	}
}

func TestExecRejectsLongLines(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	sr := e.session(t, "")
	var er errorResponse
	code := e.do(t, http.MethodPost, "/api/sessions/"+sr.ID+"/exec", "", execRequest{Line: strings.Repeat("x", maxLineLen+1)}, &er)
	if code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", code)
	}
}

func TestWatchOverHTTP(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	sr := e.session(t, "")

	var ir interruptResponse
	e.do(t, http.MethodPost, "/api/sessions/"+sr.ID+"/interrupt", "", nil, &ir)
	if ir.Interrupted {
		t.Error("interrupt without a watch reported true")
	}

	e.exec(t, sr.ID, "watch -c 1 echo tick")
	var pending []shell.Output
	deadline := time.Now().Add(5 * time.Second)
	for len(pending) < 2 && time.Now().Before(deadline) {
		pending = append(pending, e.exec(t, sr.ID, "echo poll").Pending...)
		time.Sleep(10 * time.Millisecond)
	}
	want := []shell.Output{
		{Special: shell.SpecialClear},
		{Lines: []string{"Every 2s: echo tick", "", "tick"}},
	}
	if diff := cmp.Diff(want, pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	e.exec(t, sr.ID, "watch -n 60 echo forever")
	e.do(t, http.MethodPost, "/api/sessions/"+sr.ID+"/interrupt", "", nil, &ir)
	if !ir.Interrupted {
		t.Error("interrupt during a watch reported false")
	}
}

func TestWebsocket(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, Config{})
	sr := e.session(t, "")

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/api/sessions/" + sr.ID + "/ws"
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = resp.Body.Close()
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(clientFrame{Type: "exec", Line: "echo hi"}); err != nil {
		t.Fatal(err)
	}
	var f serverFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(serverFrame{Type: "output", Lines: []string{"hi"}, Cwd: "~", User: "guest"}, f); diff != "" {
		t.Errorf("echo frame mismatch (-want +got):\n%s", diff)
	}

	if err := conn.WriteJSON(clientFrame{Type: "exec", Line: "watch -c 1 echo tick"}); err != nil {
		t.Fatal(err)
	}
	var sawClear, sawTick, sawResult bool
	for range 3 {
		var f serverFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatal(err)
		}
		switch {
		case f.Special == shell.SpecialClear:
			sawClear = true
		case len(f.Lines) == 3 && f.Lines[2] == "tick":
			sawTick = true
		case len(f.Lines) == 0 && f.User == "guest":
			sawResult = true
		}
	}
	if !sawClear || !sawTick || !sawResult {
		t.Errorf("frames: clear=%v tick=%v result=%v", sawClear, sawTick, sawResult)
	}

	if err := conn.WriteJSON(clientFrame{Type: "bogus"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "error" {
		t.Errorf("bogus frame reply = %+v, want error", f)
	}

	if err := e.sessions.Close(sr.ID); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&f); err == nil {
		t.Error("connection still open after the session closed")
	}
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()

	s := &Server{cfg: Config{AllowedOrigins: []string{"https://term.example"}}}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://api.local", true},
		{"https://term.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://api.local/api/sessions/x/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	sessions := termsession.NewManager(shell.Config{KV: kvstore.NewMemory()})
	srv := New(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, sessions, nil)
	if err := srv.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := sessions.Create(t.Context(), shell.Identity{}); err != nil {
		t.Fatal(err)
	}

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp, err = client.Post("http://"+srv.Addr()+"/api/login", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("login without accounts status = %d, want 404", resp.StatusCode)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sessions.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := sessions.Len(); n != 0 {
		t.Errorf("sessions after Stop = %d, want 0", n)
	}
}
