// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultRegistry holds the built-in commands. They are registered during
// package initialization.
var DefaultRegistry = NewRegistry()

// Registry maps verbs to commands. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command.
// Panics if the name is empty, not lowercase, or already registered.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if name == "" {
		panic("shell: cannot register command with empty name")
	}
	if name != strings.ToLower(name) {
		panic(fmt.Sprintf("shell: command name %q must be lowercase", name))
	}
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("shell: command %q already registered", name))
	}
	r.commands[name] = cmd
}

// Lookup retrieves a command by verb.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all verbs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InCategory returns the commands of c sorted by name.
func (r *Registry) InCategory(c Category) []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Command
	for _, cmd := range r.commands {
		if cmd.Spec().Category == c {
			out = append(out, cmd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Clone returns a registry holding the same commands, for callers that add
// their own commands without touching the original.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := NewRegistry()
	for name, cmd := range r.commands {
		c.commands[name] = cmd
	}
	return c
}

// RegisterDefault registers a command in DefaultRegistry.
// This is typically called from init() functions of the builtin files.
func RegisterDefault(cmd Command) {
	DefaultRegistry.Register(cmd)
}
