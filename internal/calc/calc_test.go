// SPDX-License-Identifier: MPL-2.0

package calc

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestEval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 4", 2},
		{"2 ^ 10", 1024},
		{"2 ** 3", 8},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"2 ^ -1", 0.5},
		{"--3", 3},
		{"+4", 4},
		{"1.5e3", 1500},
		{".5 + .25", 0.75},
		{"sqrt(16)", 4},
		{"max(1, 7, 3)", 7},
		{"min(4)", 4},
		{"pow(2, 8)", 256},
		{"abs(-3) + floor(2.7)", 5},
		{"round(pi * 100)", 314},
		{"log(1000)", 3},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			got, err := Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want error
	}{
		{"", ErrSyntax},
		{"1 +", ErrSyntax},
		{"(1 + 2", ErrSyntax},
		{"1 2", ErrSyntax},
		{"2 $ 3", ErrSyntax},
		{"1..2", ErrSyntax},
		{"1 / 0", ErrDivisionByZero},
		{"5 % 0", ErrDivisionByZero},
		{"foo + 1", ErrUnknownName},
		{"system(1)", ErrUnknownName},
		{"sqrt(1, 2)", ErrSyntax},
		{"max()", ErrSyntax},
		{"sqrt(-1)", ErrNotFinite},
		{"10 ^ 400", ErrNotFinite},
		{strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100), ErrSyntax},
		{strings.Repeat("-", 100) + "1", ErrSyntax},
		{strings.Repeat("1+", maxExprLen), ErrSyntax},
	}
	for _, tt := range tests {
		name := tt.expr
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := Eval(tt.expr); !errors.Is(err, tt.want) {
				t.Errorf("Eval(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{-0.5, "-0.5"},
		{1.0 / 3, "0.3333333333333333"},
		{1e20, "1e+20"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnv(t *testing.T) {
	t.Parallel()

	env := NewEnv()

	v, name, err := env.Eval("x = 6 * 7")
	if err != nil || v != 42 || name != "x" {
		t.Fatalf("Eval(assign) = %v, %q, %v", v, name, err)
	}
	if v, _, err = env.Eval("x / 2"); err != nil || v != 21 {
		t.Errorf("Eval(x / 2) = %v, %v", v, err)
	}
	if v, _, err = env.Eval("ans + 1"); err != nil || v != 22 {
		t.Errorf("Eval(ans + 1) = %v, %v", v, err)
	}
	if _, _, err = env.Eval("pi = 3"); err == nil {
		t.Error("assigning a constant should fail")
	}
	if _, _, err = env.Eval("sqrt = 3"); err == nil {
		t.Error("assigning a function name should fail")
	}
	if _, _, err = env.Eval("y = nope"); !errors.Is(err, ErrUnknownName) {
		t.Errorf("Eval(y = nope) error = %v", err)
	}
	if _, ok := env.Get("y"); ok {
		t.Error("failed assignment must not define y")
	}
	if got := env.Vars(); len(got) != 2 || got[0] != "ans" || got[1] != "x" {
		t.Errorf("Vars() = %v, want [ans x]", got)
	}
}
