// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/fauxterm/fauxterm/internal/auth"
	"github.com/fauxterm/fauxterm/internal/calc"
	"github.com/fauxterm/fauxterm/internal/clock"
	"github.com/fauxterm/fauxterm/internal/fetch"
	"github.com/fauxterm/fauxterm/internal/kvstore"
	"github.com/fauxterm/fauxterm/internal/userstore"
	"github.com/fauxterm/fauxterm/internal/vfs"
	"github.com/fauxterm/fauxterm/pkg/vpath"

	"golang.org/x/time/rate"
)

// DefaultHostname appears in prompts and uname output.
const DefaultHostname = "fauxterm"

type (
	// Authenticator is the account service the user commands need.
	// *auth.Service implements it.
	Authenticator interface {
		Login(ctx context.Context, username, password string) (string, auth.Claims, error)
		ChangePassword(ctx context.Context, username, password string) error
		Register(ctx context.Context, username, password string, role userstore.Role) error
		DeleteUser(ctx context.Context, username string) error
		Users(ctx context.Context) ([]userstore.User, error)
	}

	// Sink receives output produced outside of Execute: watch ticks and
	// save-failure notices. It may be called from any goroutine and must
	// not call back into the Interpreter.
	Sink func(Output)

	// Limits bounds the resources one session may use.
	Limits struct {
		MaxAliasDepth        int
		HistoryLimit         int
		WatchDefaultInterval time.Duration
		WatchMinInterval     time.Duration
		// WatchMaxCount caps watch iterations; 0 means unbounded.
		WatchMaxCount int
		// NetRate is the sustained rate of network commands per second.
		NetRate  rate.Limit
		NetBurst int
	}

	// Config wires an Interpreter to its collaborators.
	Config struct {
		// KV stores filesystem trees and prefs. Required.
		KV kvstore.Store
		// Auth backs the user commands. Nil disables them.
		Auth Authenticator
		// Services backs the network commands. Nil disables them.
		Services *fetch.Services
		// Registry defaults to DefaultRegistry.
		Registry *Registry
		Clock    clock.Clock
		Logger   *slog.Logger
		Sink     Sink
		Limits   Limits
		Hostname string
		Version  string
		// DefaultTheme applies to guests and accounts without saved prefs.
		DefaultTheme string
	}

	// Interpreter executes command lines for one session. Execute calls are
	// serialized; Interrupt, State and Close may be called concurrently.
	Interpreter struct {
		mu        sync.Mutex
		cfg       Config
		session   *Session
		fs        *vfs.Store
		limiter   *rate.Limiter
		logger    *slog.Logger
		startedAt time.Time
		ticking   bool

		sinkMu sync.RWMutex
		sink   Sink

		watchMu sync.Mutex
		watch   *watchRun
		watchWG sync.WaitGroup
	}

	// Env is what a command sees of the interpreter during one invocation.
	Env struct {
		Session *Session
		FS      *vfs.Store
		// Elevated is set when the command runs under sudo.
		Elevated bool

		verb   string
		spec   Spec
		interp *Interpreter
	}
)

// DefaultLimits returns the limits used for unset fields of Config.Limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAliasDepth:        8,
		HistoryLimit:         500,
		WatchDefaultInterval: 2 * time.Second,
		WatchMinInterval:     time.Second,
		WatchMaxCount:        0,
		NetRate:              rate.Every(2 * time.Second),
		NetBurst:             10,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxAliasDepth <= 0 {
		l.MaxAliasDepth = d.MaxAliasDepth
	}
	if l.HistoryLimit <= 0 {
		l.HistoryLimit = d.HistoryLimit
	}
	if l.WatchDefaultInterval <= 0 {
		l.WatchDefaultInterval = d.WatchDefaultInterval
	}
	if l.WatchMinInterval <= 0 {
		l.WatchMinInterval = d.WatchMinInterval
	}
	if l.NetRate <= 0 {
		l.NetRate = d.NetRate
	}
	if l.NetBurst <= 0 {
		l.NetBurst = d.NetBurst
	}
	return l
}

// New creates an Interpreter with a guest session.
func New(cfg Config) *Interpreter {
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultHostname
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	cfg.Limits = cfg.Limits.withDefaults()

	i := &Interpreter{
		cfg:       cfg,
		session:   newSession(cfg.Limits.HistoryLimit, cfg.DefaultTheme),
		limiter:   rate.NewLimiter(cfg.Limits.NetRate, cfg.Limits.NetBurst),
		logger:    cfg.Logger,
		startedAt: cfg.Clock.Now(),
		sink:      cfg.Sink,
	}
	i.fs = vfs.NewStore(cfg.KV,
		vfs.WithLogger(cfg.Logger),
		vfs.WithPersistErrorHandler(func(owner string, err error) {
			i.emit(Linef("warning: could not save files of %s: %v", owner, err))
		}),
	)
	return i
}

// SetSink replaces the asynchronous output sink.
func (i *Interpreter) SetSink(s Sink) {
	i.sinkMu.Lock()
	i.sink = s
	i.sinkMu.Unlock()
}

func (i *Interpreter) emit(o Output) {
	i.sinkMu.RLock()
	s := i.sink
	i.sinkMu.RUnlock()
	if s != nil {
		s(o)
	}
}

// Attach switches the session to id, loading its filesystem and prefs. The
// zero Identity logs out. Transports call it for sessions that authenticated
// before the first command.
func (i *Interpreter) Attach(ctx context.Context, id Identity) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attach(ctx, id)
}

func (i *Interpreter) attach(ctx context.Context, id Identity) error {
	if id.IsGuest() {
		i.logout()
		return nil
	}
	i.stopWatch()
	i.fs.Wait()
	if err := i.fs.Load(ctx, id.Username); err != nil {
		return err
	}
	prefs, err := LoadPrefs(ctx, i.cfg.KV, id.Username, i.session.freshPrefs())
	if err != nil {
		i.logger.Warn("prefs unavailable, using defaults", "user", id.Username, "error", err)
	}
	i.session.reset()
	i.session.identity = id
	i.session.prefs = prefs
	return nil
}

func (i *Interpreter) logout() {
	i.stopWatch()
	i.fs.Wait()
	i.fs.Unload()
	i.session.reset()
}

func (i *Interpreter) savePrefs(ctx context.Context) error {
	id := i.session.identity
	if id.IsGuest() {
		return nil
	}
	return SavePrefs(ctx, i.cfg.KV, id.Username, i.session.prefs)
}

// State returns a snapshot of the session.
func (i *Interpreter) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.session.state()
}

// Execute runs one submitted line and returns its output. It never panics
// and never returns an error: every failure is rendered as a line.
func (i *Interpreter) Execute(ctx context.Context, line string) Output {
	i.mu.Lock()
	defer i.mu.Unlock()

	line = strings.TrimSpace(line)
	if line == "" {
		return Output{}
	}
	i.session.addHistory(line)

	if i.session.mode == ModeREPL {
		return i.evalREPL(line)
	}
	return i.dispatch(ctx, strings.Fields(line), false, 0, "")
}

// Run executes fields as a nested command line, as sudo does.
func (e *Env) Run(ctx context.Context, fields []string, elevated bool) Output {
	return e.interp.dispatch(ctx, fields, elevated, 0, "")
}

// dispatch resolves aliases, checks privilege and runs the command. skip
// names an alias that must not be expanded again, so that an alias may wrap
// the builtin of the same name.
func (i *Interpreter) dispatch(ctx context.Context, fields []string, elevated bool, depth int, skip string) Output {
	if len(fields) == 0 {
		return Output{}
	}
	verb := strings.ToLower(fields[0])

	if !elevated && verb != skip {
		if exp, ok := i.session.Alias(verb); ok {
			if depth >= i.cfg.Limits.MaxAliasDepth {
				return Linef("alias: expansion too deep (possible cycle): %s", verb)
			}
			expanded := append(strings.Fields(exp), fields[1:]...)
			next := ""
			if len(expanded) > 0 && strings.ToLower(expanded[0]) == verb {
				next = verb
			}
			return i.dispatch(ctx, expanded, elevated, depth+1, next)
		}
	}

	cmd, ok := i.cfg.Registry.Lookup(verb)
	if !ok {
		return Linef("%s: command not found", fields[0])
	}
	spec := cmd.Spec()

	if err := i.authorize(spec.Privilege, elevated); err != nil {
		return render(verb, Output{}, err)
	}
	if spec.Category == CategoryNetwork && !i.limiter.AllowN(i.cfg.Clock.Now(), 1) {
		return render(verb, Output{}, ErrRateLimited)
	}

	env := &Env{
		Session:  i.session,
		FS:       i.fs,
		Elevated: elevated,
		verb:     verb,
		spec:     spec,
		interp:   i,
	}
	args := append([]string{verb}, fields[1:]...)
	out, err := i.invoke(ctx, cmd, env, args)
	return render(verb, out, err)
}

func (i *Interpreter) authorize(p Privilege, elevated bool) error {
	id := i.session.identity
	switch p {
	case PrivilegeUser:
		if id.IsGuest() {
			return denied("login required")
		}
	case PrivilegeAdmin:
		if id.IsGuest() {
			return denied("login required")
		}
		if !id.IsAdmin() && !elevated {
			return denied("admin role required")
		}
	}
	return nil
}

func (i *Interpreter) invoke(ctx context.Context, cmd Command, env *Env, args []string) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("command panicked", "command", args[0], "panic", r, "stack", string(debug.Stack()))
			out, err = Output{}, &panicError{value: r}
		}
	}()
	return cmd.Run(ctx, env, args)
}

// render turns a command result into the output envelope.
func render(verb string, out Output, err error) Output {
	if err == nil {
		if verr := out.Special.Validate(); verr != nil {
			return Linef("%s: %v", verb, verr)
		}
		return out
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		return Lines(ue.Error())
	}
	return Linef("%s: %v", verb, err)
}

func (i *Interpreter) evalREPL(line string) Output {
	s := i.session
	switch line {
	case ".exit", ".quit", "exit":
		s.mode = ModeShell
		s.repl = nil
		return Lines("Leaving calculator.")
	case ".help":
		return Lines(
			"Enter an arithmetic expression, or name = expression to assign.",
			"Operators: + - * / % ^  Functions: sqrt abs min max pow floor ceil round sin cos tan ln log exp",
			"Commands: .vars .help .exit",
		)
	case ".vars":
		var lines []string
		for _, name := range s.repl.Vars() {
			v, _ := s.repl.Get(name)
			lines = append(lines, name+" = "+calc.Format(v))
		}
		return Output{Lines: lines}
	}

	v, name, err := s.repl.Eval(line)
	if err != nil {
		return Linef("error: %v", err)
	}
	if name != "" {
		return Linef("%s = %s", name, calc.Format(v))
	}
	return Lines(calc.Format(v))
}

// Close stops any watch, waits for its goroutine and for pending saves.
func (i *Interpreter) Close() {
	i.stopWatch()
	i.watchWG.Wait()
	i.fs.Wait()
}

// Verb returns the command name as dispatched.
func (e *Env) Verb() string { return e.verb }

// Usage returns the UsageError of the running command.
func (e *Env) Usage() error {
	u := e.verb
	if e.spec.Usage != "" {
		u += " " + e.spec.Usage
	}
	return usage(u)
}

// Identity returns the session identity.
func (e *Env) Identity() Identity { return e.Session.identity }

// Resolve maps a path argument onto the current directory.
func (e *Env) Resolve(p string) vpath.Path { return vpath.Resolve(p, e.Session.cwd) }

// Now returns the interpreter clock's time.
func (e *Env) Now() time.Time { return e.interp.cfg.Clock.Now() }

// Registry returns the command registry.
func (e *Env) Registry() *Registry { return e.interp.cfg.Registry }

// Auth returns the account service.
func (e *Env) Auth() (Authenticator, error) {
	if e.interp.cfg.Auth == nil {
		return nil, errors.New("accounts are not available on this server")
	}
	return e.interp.cfg.Auth, nil
}

// Net returns the external services.
func (e *Env) Net() (*fetch.Services, error) {
	if e.interp.cfg.Services == nil {
		return nil, errors.New("network services are not available on this server")
	}
	return e.interp.cfg.Services, nil
}

// snapshot returns the current tree or an error line for the user.
func (e *Env) snapshot() (*vfs.Tree, error) {
	t, err := e.FS.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("filesystem unavailable: %w", err)
	}
	return t, nil
}
