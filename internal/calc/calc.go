// SPDX-License-Identifier: MPL-2.0

// Package calc evaluates arithmetic expressions without executing code.
//
// The grammar covers numbers, the operators + - * / % ^ (and ** as an alias
// for ^), parentheses, a fixed set of math functions and named variables.
// Nothing outside that grammar is reachable from an expression.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	maxExprLen = 1024
	maxDepth   = 64
)

var (
	// ErrSyntax is returned for malformed expressions.
	ErrSyntax = errors.New("syntax error")
	// ErrDivisionByZero is returned for x/0 and x%0.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrUnknownName is returned for undefined variables and functions.
	ErrUnknownName = errors.New("unknown name")
	// ErrNotFinite is returned when a result is NaN or infinite.
	ErrNotFinite = errors.New("result is not a finite number")
)

type (
	// SyntaxError locates a parse failure.
	SyntaxError struct {
		Pos int
		Msg string
	}

	fn struct {
		arity int // -1 for variadic (at least one argument)
		call  func(args []float64) float64
	}
)

// Error implements error.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos+1, e.Msg)
}

// Unwrap returns ErrSyntax.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
	"phi": math.Phi,
}

var functions = map[string]fn{
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"cbrt":  {1, func(a []float64) float64 { return math.Cbrt(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"trunc": {1, func(a []float64) float64 { return math.Trunc(a[0]) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"asin":  {1, func(a []float64) float64 { return math.Asin(a[0]) }},
	"acos":  {1, func(a []float64) float64 { return math.Acos(a[0]) }},
	"atan":  {1, func(a []float64) float64 { return math.Atan(a[0]) }},
	"ln":    {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log10(a[0]) }},
	"log2":  {1, func(a []float64) float64 { return math.Log2(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"hypot": {2, func(a []float64) float64 { return math.Hypot(a[0], a[1]) }},
	"min": {-1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {-1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}

// Eval evaluates expr with only the built-in constants defined.
func Eval(expr string) (float64, error) {
	return eval(expr, nil)
}

// Format renders v the way the terminal prints results: integers without a
// fractional part, everything else in the shortest exact form.
func Format(v float64) string {
	if math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func eval(expr string, vars map[string]float64) (float64, error) {
	if len(expr) > maxExprLen {
		return 0, &SyntaxError{Pos: maxExprLen, Msg: "expression too long"}
	}
	toks, err := lex(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks, vars: vars}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}
