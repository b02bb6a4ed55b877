// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/shell"
	"github.com/fauxterm/fauxterm/internal/termsession"
)

type (
	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Token     string    `json:"token"`
		Username  string    `json:"username"`
		Role      string    `json:"role"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	sessionResponse struct {
		ID   string `json:"id"`
		User string `json:"user"`
		Cwd  string `json:"cwd"`
	}

	execRequest struct {
		Line string `json:"line"`
	}

	// execResponse is the output envelope plus the session state after the
	// command. Pending carries asynchronous output produced since the last
	// request when no websocket is attached.
	execResponse struct {
		shell.Output
		Cwd     string         `json:"cwd"`
		User    string         `json:"user"`
		REPL    bool           `json:"repl,omitempty"`
		Closed  bool           `json:"closed,omitempty"`
		Pending []shell.Output `json:"pending,omitempty"`
	}

	interruptResponse struct {
		Interrupted bool `json:"interrupted"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, http.StatusNotFound, "accounts are disabled")
		return
	}
	if !s.limiter.allow(r) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, claims, err := s.tokens.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		s.logger.Error("login failed", "user", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Username:  claims.Username.String(),
		Role:      claims.Role.String(),
		ExpiresAt: claims.ExpiresAt,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.identity(r)
	switch {
	case errors.Is(err, errIdentityUnavailable):
		s.logger.Error("resolve identity", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	sess, err := s.sessions.Create(r.Context(), id)
	switch {
	case errors.Is(err, termsession.ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("create session", "user", id.Name(), "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	st := sess.State()
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID(), User: st.User, Cwd: st.Cwd.String()})
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req execRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Line) > maxLineLen {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("line exceeds %d bytes", maxLineLen))
		return
	}

	out := sess.Execute(r.Context(), req.Line)
	st := sess.State()
	writeJSON(w, http.StatusOK, execResponse{
		Output:  normalize(out),
		Cwd:     st.Cwd.String(),
		User:    st.User,
		REPL:    st.Mode == shell.ModeREPL,
		Closed:  st.Closed,
		Pending: sess.Drain(),
	})
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, interruptResponse{Interrupted: sess.Interrupt()})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errIdentityUnavailable is returned when the account store cannot confirm a
// token.
var errIdentityUnavailable = errors.New("account lookup failed")

// identity resolves the optional bearer token of r. No header means guest.
func (s *Server) identity(r *http.Request) (shell.Identity, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return shell.Identity{}, nil
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return shell.Identity{}, errors.New("malformed authorization header")
	}
	if s.tokens == nil {
		return shell.Identity{}, errors.New("accounts are disabled")
	}
	claims, err := s.tokens.Authenticate(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return shell.Identity{}, auth.ErrInvalidToken
	case err != nil:
		return shell.Identity{}, errIdentityUnavailable
	}
	return shell.Identity{Username: claims.Username.String(), Role: claims.Role, Token: token}, nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*termsession.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

// normalize makes Lines encode as [] rather than null.
func normalize(o shell.Output) shell.Output {
	if o.Lines == nil {
		o.Lines = []string{}
	}
	return o
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // client gone; nothing to do
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
