// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fauxterm/fauxterm/internal/theme"
	"github.com/fauxterm/fauxterm/internal/userstore"
	"github.com/fauxterm/fauxterm/pkg/vpath"
)

const osName = "Fauxterm"

var errNestedWatch = errors.New("watch cannot be nested")

// maxWatchSeconds keeps interval conversion inside time.Duration's range.
const maxWatchSeconds = float64(math.MaxInt64 / int64(time.Second))

func init() {
	sysCmd := func(name, use, summary string, run RunFunc, flags ...FlagInfo) {
		RegisterDefault(NewCommand(name, Spec{
			Category: CategorySystem,
			Usage:    use,
			Summary:  summary,
			Flags:    flags,
		}, run))
	}
	funCmd := func(name, use, summary string, run RunFunc) {
		RegisterDefault(NewCommand(name, Spec{
			Category: CategoryFun,
			Usage:    use,
			Summary:  summary,
		}, run))
	}

	sysCmd("date", "[-u]", "print the current date and time", runDate,
		FlagInfo{Name: "u", Description: "print UTC"})
	sysCmd("uname", "[-a]", "print system information", runUname,
		FlagInfo{Name: "a", Description: "print all information"})
	sysCmd("env", "", "print the session environment", runEnv)
	sysCmd("which", "<command...>", "show how a name would be run", runWhich)
	sysCmd("history", "[-c]", "show or clear the command history", runHistory,
		FlagInfo{Name: "c", Description: "clear the history"})
	sysCmd("exit", "", "log out and close the terminal", runExit)
	sysCmd("alias", "[name[=command...]]", "define or list aliases", runAlias)
	sysCmd("unalias", "<name...>", "remove aliases", runUnalias)
	sysCmd("clear", "", "clear the screen", func(context.Context, *Env, []string) (Output, error) {
		return Control(SpecialClear), nil
	})
	sysCmd("reboot", "", "restart the terminal", runReboot)
	sysCmd("help", "[category|command]", "list commands", runHelp)
	sysCmd("top", "", "show server resource usage", runTop)
	sysCmd("netstat", "", "show network status", runNetstat)
	sysCmd("watch", "[-n sec] [-c count] <command...>", "run a command repeatedly", runWatchCmd,
		FlagInfo{Name: "n", Description: "seconds between runs", TakesValue: true},
		FlagInfo{Name: "c", Description: "stop after this many runs", TakesValue: true})

	funCmd("theme", "[name]", "list or switch colour themes", runTheme)
	funCmd("matrix", "", "follow the white rabbit", func(context.Context, *Env, []string) (Output, error) {
		return Control(SpecialFullscreen), nil
	})
}

func runDate(_ context.Context, env *Env, args []string) (Output, error) {
	fs := newFlagSet("date")
	utc := fs.Bool("u", false, "utc")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() > 0 {
		return Output{}, env.Usage()
	}
	now := env.Now()
	if *utc {
		now = now.UTC()
	}
	return Lines(now.Format(time.UnixDate)), nil
}

func runUname(_ context.Context, env *Env, args []string) (Output, error) {
	fs := newFlagSet("uname")
	all := fs.Bool("a", false, "all")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() > 0 {
		return Output{}, env.Usage()
	}
	if !*all {
		return Lines(osName), nil
	}
	cfg := env.interp.cfg
	return Linef("%s %s %s %s/%s %s", osName, cfg.Hostname, cfg.Version, runtime.GOOS, runtime.GOARCH, runtime.Version()), nil
}

func runEnv(_ context.Context, env *Env, _ []string) (Output, error) {
	id := env.Identity()
	user := id.Name()
	if env.Elevated {
		user = userstore.RootName
	}
	role := string(id.Role)
	if role == "" {
		role = "guest"
	}
	return Lines(
		"HOME=~",
		"HOSTNAME="+env.interp.cfg.Hostname,
		"PWD="+env.Session.cwd.String(),
		"ROLE="+role,
		"SHELL=/bin/fauxsh",
		"TERM=xterm-256color",
		"THEME="+env.Session.prefs.Theme,
		"USER="+user,
	), nil
}

func runWhich(_ context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	lines := make([]string, 0, len(args)-1)
	for _, name := range args[1:] {
		name = strings.ToLower(name)
		if exp, ok := env.Session.Alias(name); ok {
			lines = append(lines, fmt.Sprintf("%s: aliased to %s", name, exp))
			continue
		}
		if _, ok := env.Registry().Lookup(name); ok {
			lines = append(lines, "/bin/"+name)
			continue
		}
		lines = append(lines, name+" not found")
	}
	return Output{Lines: lines}, nil
}

func runHistory(_ context.Context, env *Env, args []string) (Output, error) {
	s := env.Session
	switch {
	case len(args) == 2 && args[1] == "-c":
		s.history = nil
		return Output{}, nil
	case len(args) > 1:
		return Output{}, env.Usage()
	}
	lines := make([]string, len(s.history))
	for n, line := range s.history {
		lines[n] = fmt.Sprintf("%5d  %s", n+1, line)
	}
	return Output{Lines: lines}, nil
}

func runExit(_ context.Context, env *Env, _ []string) (Output, error) {
	if !env.Identity().IsGuest() {
		env.interp.logout()
	}
	env.Session.closed = true
	return Lines("logout"), nil
}

// runAlias accepts "alias", "alias name" and "alias name=command args".
// Quotes around the command are stripped since the tokenizer does not
// understand them.
func runAlias(ctx context.Context, env *Env, args []string) (Output, error) {
	s := env.Session
	if len(args) == 1 {
		names := s.AliasNames()
		lines := make([]string, len(names))
		for n, name := range names {
			lines[n] = fmt.Sprintf("alias %s='%s'", name, s.prefs.Aliases[name])
		}
		return Output{Lines: lines}, nil
	}

	def := strings.Join(args[1:], " ")
	name, exp, hasValue := strings.Cut(def, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	if !validAliasName(name) {
		return Output{}, fmt.Errorf("invalid alias name %q", name)
	}
	if !hasValue {
		exp, ok := s.Alias(name)
		if !ok {
			return Output{}, fmt.Errorf("%s: not found", name)
		}
		return Linef("alias %s='%s'", name, exp), nil
	}
	exp = strings.Trim(strings.TrimSpace(exp), `'"`)
	if strings.TrimSpace(exp) == "" {
		return Output{}, env.Usage()
	}

	s.prefs.Aliases[name] = exp
	return savedPrefs(ctx, env)
}

func validAliasName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r == '=' || r == '\'' || r == '"' {
			return false
		}
	}
	return true
}

func runUnalias(ctx context.Context, env *Env, args []string) (Output, error) {
	if len(args) < 2 {
		return Output{}, env.Usage()
	}
	var lines []string
	changed := false
	for _, name := range args[1:] {
		name = strings.ToLower(name)
		if _, ok := env.Session.prefs.Aliases[name]; !ok {
			lines = append(lines, fmt.Sprintf("unalias: %s: not found", name))
			continue
		}
		delete(env.Session.prefs.Aliases, name)
		changed = true
	}
	if changed {
		out, err := savedPrefs(ctx, env)
		if err != nil {
			return Output{}, err
		}
		lines = append(lines, out.Lines...)
	}
	return Output{Lines: lines}, nil
}

// savedPrefs persists the session prefs, reporting a failure as a warning
// line; the change stays in effect for this session either way.
func savedPrefs(ctx context.Context, env *Env) (Output, error) {
	if err := env.interp.savePrefs(ctx); err != nil {
		env.interp.logger.Warn("saving prefs failed", "user", env.Identity().Username, "error", err)
		return Linef("warning: settings not saved: %v", err), nil
	}
	return Output{}, nil
}

func runTheme(ctx context.Context, env *Env, args []string) (Output, error) {
	s := env.Session
	switch len(args) {
	case 1:
		lines := []string{"Available themes:"}
		for _, t := range theme.All() {
			marker := "  "
			if t.Name == s.prefs.Theme {
				marker = "* "
			}
			lines = append(lines, fmt.Sprintf("%s%-10s %s", marker, t.Name, t.Description))
		}
		return Output{Lines: lines}, nil
	case 2:
	default:
		return Output{}, env.Usage()
	}

	t, ok := theme.Lookup(strings.ToLower(args[1]))
	if !ok {
		return Output{}, fmt.Errorf("unknown theme %q (available: %s)", args[1], strings.Join(theme.Names(), ", "))
	}
	s.prefs.Theme = t.Name
	out, err := savedPrefs(ctx, env)
	if err != nil {
		return Output{}, err
	}
	return Output{Lines: append([]string{"Theme set to " + t.Name + "."}, out.Lines...)}, nil
}

func runReboot(_ context.Context, env *Env, _ []string) (Output, error) {
	env.interp.stopWatch()
	s := env.Session
	s.cwd = vpath.Root
	s.mode = ModeShell
	s.repl = nil
	s.playing = ""
	return Output{
		Lines: []string{
			fmt.Sprintf("%s %s booting...", osName, env.interp.cfg.Version),
			"[  OK  ] Mounted virtual filesystem.",
			"[  OK  ] Started command interpreter.",
			"Welcome back, " + env.Identity().Name() + ".",
		},
		Special: SpecialClear,
	}, nil
}

func runHelp(_ context.Context, env *Env, args []string) (Output, error) {
	reg := env.Registry()
	if len(args) > 2 {
		return Output{}, env.Usage()
	}
	if len(args) == 1 {
		lines := []string{"Commands by category (help <category> or help <command> for details):"}
		for _, c := range Categories() {
			cmds := reg.InCategory(c)
			if len(cmds) == 0 {
				continue
			}
			names := make([]string, len(cmds))
			for n, cmd := range cmds {
				names[n] = cmd.Name()
			}
			lines = append(lines, fmt.Sprintf("  %-8s %s", c, strings.Join(names, " ")))
		}
		return Output{Lines: lines}, nil
	}

	topic := strings.ToLower(args[1])
	for _, c := range Categories() {
		if string(c) != topic {
			continue
		}
		var lines []string
		for _, cmd := range reg.InCategory(c) {
			lines = append(lines, fmt.Sprintf("  %-10s %s", cmd.Name(), cmd.Spec().Summary))
		}
		return Output{Lines: lines}, nil
	}

	cmd, ok := reg.Lookup(topic)
	if !ok {
		return Output{}, fmt.Errorf("no help for %q", args[1])
	}
	spec := cmd.Spec()
	lines := []string{
		strings.TrimSpace("usage: " + cmd.Name() + " " + spec.Usage),
		"  " + spec.Summary,
	}
	if spec.Privilege != PrivilegeNone {
		lines = append(lines, "  requires: "+spec.Privilege.String())
	}
	for _, f := range spec.Flags {
		flag := "-" + f.Name
		if f.TakesValue {
			flag += " <value>"
		}
		lines = append(lines, fmt.Sprintf("  %-14s %s", flag, f.Description))
	}
	return Output{Lines: lines}, nil
}

func runTop(_ context.Context, env *Env, _ []string) (Output, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := env.Now().Sub(env.interp.startedAt).Round(time.Second)
	return Lines(
		fmt.Sprintf("session uptime: %s", uptime),
		fmt.Sprintf("goroutines:     %d", runtime.NumGoroutine()),
		fmt.Sprintf("cpus:           %d (GOMAXPROCS %d)", runtime.NumCPU(), runtime.GOMAXPROCS(0)),
		fmt.Sprintf("heap in use:    %s", formatBytes(m.HeapInuse)),
		fmt.Sprintf("heap objects:   %d", m.HeapObjects),
		fmt.Sprintf("memory from os: %s", formatBytes(m.Sys)),
		fmt.Sprintf("gc cycles:      %d", m.NumGC),
	), nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func runNetstat(_ context.Context, env *Env, _ []string) (Output, error) {
	i := env.interp
	state := "ESTABLISHED"
	if i.cfg.Services == nil {
		state = "UNAVAILABLE"
	}
	tokens := i.limiter.TokensAt(env.Now())
	return Lines(
		fmt.Sprintf("%-6s %-24s %-24s %s", "Proto", "Local Address", "Foreign Address", "State"),
		fmt.Sprintf("%-6s %-24s %-24s %s", "tcp", i.cfg.Hostname+":fauxsh", env.Identity().Name()+":session", "ESTABLISHED"),
		fmt.Sprintf("%-6s %-24s %-24s %s", "tcp", i.cfg.Hostname+":egress", "*:https", state),
		"",
		fmt.Sprintf("network commands available now: %d of %d", int(tokens), i.cfg.Limits.NetBurst),
	), nil
}

func runWatchCmd(_ context.Context, env *Env, args []string) (Output, error) {
	i := env.interp
	lim := i.cfg.Limits
	if i.ticking {
		return Output{}, errNestedWatch
	}

	fs := newFlagSet("watch")
	seconds := fs.Float64("n", lim.WatchDefaultInterval.Seconds(), "interval")
	count := fs.Int("c", 0, "count")
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() == 0 || *count < 0 {
		return Output{}, env.Usage()
	}
	sub := fs.Args()
	if strings.ToLower(sub[0]) == env.Verb() {
		return Output{}, errNestedWatch
	}

	if math.IsNaN(*seconds) || *seconds > maxWatchSeconds {
		return Output{}, fmt.Errorf("invalid interval %v", *seconds)
	}
	if *seconds < lim.WatchMinInterval.Seconds() {
		return Output{}, fmt.Errorf("interval must be at least %s", formatSeconds(lim.WatchMinInterval))
	}
	interval := time.Duration(*seconds * float64(time.Second))
	if lim.WatchMaxCount > 0 && (*count == 0 || *count > lim.WatchMaxCount) {
		*count = lim.WatchMaxCount
	}

	i.startWatch(strings.Join(sub, " "), interval, *count, env.Elevated)
	return Output{}, nil
}
