// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"slices"
	"strings"
	"testing"
)

func noop(context.Context, *Env, []string) (Output, error) { return Output{}, nil }

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(NewCommand("b", Spec{Category: CategoryText}, noop))
	r.Register(NewCommand("a", Spec{Category: CategoryText}, noop))
	r.Register(NewCommand("c", Spec{Category: CategoryFiles}, noop))

	if got := r.Names(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Names() = %v", got)
	}
	if _, ok := r.Lookup("a"); !ok {
		t.Error("Lookup(a) not found")
	}
	if _, ok := r.Lookup("z"); ok {
		t.Error("Lookup(z) found a command")
	}

	var text []string
	for _, cmd := range r.InCategory(CategoryText) {
		text = append(text, cmd.Name())
	}
	if !slices.Equal(text, []string{"a", "b"}) {
		t.Errorf("InCategory(text) = %v", text)
	}
}

func TestRegistry_RegisterPanics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     string
		wantMsg string
	}{
		{"empty", "", "empty name"},
		{"uppercase", "Ls", "must be lowercase"},
		{"duplicate", "dup", "already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRegistry()
			r.Register(NewCommand("dup", Spec{}, noop))
			defer func() {
				p := recover()
				msg, _ := p.(string)
				if !strings.Contains(msg, tt.wantMsg) {
					t.Errorf("panic = %v, want message containing %q", p, tt.wantMsg)
				}
			}()
			r.Register(NewCommand(tt.cmd, Spec{}, noop))
		})
	}
}

func TestRegistry_Clone(t *testing.T) {
	t.Parallel()

	c := DefaultRegistry.Clone()
	c.Register(NewCommand("extra", Spec{}, noop))
	if _, ok := DefaultRegistry.Lookup("extra"); ok {
		t.Error("Clone shares its map with the original")
	}
	if len(c.Names()) != len(DefaultRegistry.Names())+1 {
		t.Errorf("clone has %d commands, want %d", len(c.Names()), len(DefaultRegistry.Names())+1)
	}
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	required := []string{
		"login", "logout", "whoami", "passwd", "useradd", "userdel", "sudo",
		"ls", "cat", "cd", "pwd", "mkdir", "touch", "rm", "grep", "wc", "tree", "head",
		"base64", "urlencode", "hash",
		"ai", "music", "video", "curl", "dig", "github", "npm", "shorten", "unshorten", "weather", "isdown", "geoip",
		"js", "jsonlint", "uuid", "password", "calc", "env", "which", "alias",
		"ping", "top", "netstat", "watch", "date", "clear", "history", "echo", "uname", "reboot", "theme", "help",
	}
	for _, name := range required {
		if _, ok := DefaultRegistry.Lookup(name); !ok {
			t.Errorf("%s is not registered", name)
		}
	}

	valid := Categories()
	for _, name := range DefaultRegistry.Names() {
		cmd, _ := DefaultRegistry.Lookup(name)
		spec := cmd.Spec()
		if !slices.Contains(valid, spec.Category) {
			t.Errorf("%s has unknown category %q", name, spec.Category)
		}
		if spec.Summary == "" {
			t.Errorf("%s has no summary", name)
		}
		if cmd.Name() != name {
			t.Errorf("registered under %q but named %q", name, cmd.Name())
		}
	}
}

func TestPrivilegeLevels(t *testing.T) {
	t.Parallel()

	want := map[string]Privilege{
		"pwd": PrivilegeNone, "echo": PrivilegeNone, "whoami": PrivilegeNone, "theme": PrivilegeNone,
		"ls": PrivilegeUser, "rm": PrivilegeUser, "ai": PrivilegeUser, "passwd": PrivilegeUser, "sudo": PrivilegeUser,
		"useradd": PrivilegeAdmin, "userdel": PrivilegeAdmin, "users": PrivilegeAdmin,
	}
	for name, p := range want {
		cmd, ok := DefaultRegistry.Lookup(name)
		if !ok {
			t.Errorf("%s is not registered", name)
			continue
		}
		if got := cmd.Spec().Privilege; got != p {
			t.Errorf("%s privilege = %s, want %s", name, got, p)
		}
	}
}
