// SPDX-License-Identifier: MPL-2.0

package shell

import "context"

// Privilege levels a command can require.
const (
	// PrivilegeNone allows anyone, including guests.
	PrivilegeNone Privilege = iota
	// PrivilegeUser requires a logged-in account.
	PrivilegeUser
	// PrivilegeAdmin requires the admin role.
	PrivilegeAdmin
)

// Command categories, in the order help lists them.
const (
	CategoryFiles   Category = "files"
	CategoryUsers   Category = "users"
	CategoryText    Category = "text"
	CategoryNetwork Category = "network"
	CategorySystem  Category = "system"
	CategoryFun     Category = "fun"
)

type (
	// Privilege is the minimum identity a command needs.
	Privilege int

	// Category groups commands in help output.
	Category string

	// Command is one verb of the terminal.
	Command interface {
		// Name returns the lowercase verb.
		Name() string

		// Spec describes the command for dispatch and help.
		Spec() Spec

		// Run executes the command. args[0] is the verb as typed, args[1:]
		// are the arguments. A returned error becomes a single output line.
		Run(ctx context.Context, env *Env, args []string) (Output, error)
	}

	// Spec is the static description of a command.
	Spec struct {
		Category  Category
		Privilege Privilege
		// Usage is the argument grammar without the verb, e.g. "[-r] <path>".
		Usage   string
		Summary string
		Flags   []FlagInfo
	}

	// FlagInfo describes one flag of a command.
	FlagInfo struct {
		// Name without dashes.
		Name        string
		Description string
		TakesValue  bool
	}

	// RunFunc is the body of a function-backed command.
	RunFunc func(ctx context.Context, env *Env, args []string) (Output, error)

	funcCommand struct {
		name string
		spec Spec
		run  RunFunc
	}
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryFiles, CategoryUsers, CategoryText, CategoryNetwork, CategorySystem, CategoryFun}
}

// String returns the level name.
func (p Privilege) String() string {
	switch p {
	case PrivilegeNone:
		return "none"
	case PrivilegeUser:
		return "user"
	case PrivilegeAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// NewCommand builds a Command from a function.
func NewCommand(name string, spec Spec, run RunFunc) Command {
	return &funcCommand{name: name, spec: spec, run: run}
}

func (c *funcCommand) Name() string { return c.name }

func (c *funcCommand) Spec() Spec { return c.spec }

func (c *funcCommand) Run(ctx context.Context, env *Env, args []string) (Output, error) {
	return c.run(ctx, env, args)
}
