// SPDX-License-Identifier: MPL-2.0

package calc

import (
	"fmt"
	"maps"
	"slices"
)

// AnswerVar holds the result of the previous evaluation in an Env.
const AnswerVar = "ans"

const maxVars = 64

// Env is an evaluation scope with assignable variables, used by the
// interactive calculator.
type Env struct {
	vars map[string]float64
}

// NewEnv returns an empty scope.
func NewEnv() *Env {
	return &Env{vars: make(map[string]float64)}
}

// Eval evaluates line. A line of the form "name = expr" assigns the result
// to name. The result is also stored in AnswerVar. The returned name is the
// assigned variable, or "" for a plain expression.
func (e *Env) Eval(line string) (float64, string, error) {
	toks, err := lex(line)
	if err != nil {
		return 0, "", err
	}

	var target string
	if len(toks) >= 3 && toks[0].kind == tokIdent && toks[1].kind == tokOp && toks[1].text == "=" {
		target = toks[0].text
		if _, isConst := constants[target]; isConst {
			return 0, "", fmt.Errorf("cannot assign to constant %s", target)
		}
		if _, isFunc := functions[target]; isFunc {
			return 0, "", fmt.Errorf("cannot assign to function %s", target)
		}
		if _, exists := e.vars[target]; !exists && len(e.vars) >= maxVars {
			return 0, "", fmt.Errorf("too many variables (limit %d)", maxVars)
		}
		line = line[byteOffset(line, toks[2].pos):]
	}

	v, err := eval(line, e.vars)
	if err != nil {
		return 0, "", err
	}
	if target != "" {
		e.vars[target] = v
	}
	e.vars[AnswerVar] = v
	return v, target, nil
}

// Vars returns the defined variable names in sorted order.
func (e *Env) Vars() []string {
	return slices.Sorted(maps.Keys(e.vars))
}

// Get returns a variable's value.
func (e *Env) Get(name string) (float64, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// byteOffset converts a rune index into a byte offset of s.
func byteOffset(s string, runeIdx int) int {
	n := 0
	for i := range s {
		if n == runeIdx {
			return i
		}
		n++
	}
	return len(s)
}
