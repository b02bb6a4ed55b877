// SPDX-License-Identifier: MPL-2.0

package calc

import (
	"fmt"
	"math"
)

type parser struct {
	toks  []token
	i     int
	vars  map[string]float64
	depth int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return &SyntaxError{Pos: p.peek().pos, Msg: "expression nested too deeply"}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr parses a sum of terms.
func (p *parser) expr() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return v, nil
		}
		p.next()
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.text == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "%") {
			return v, nil
		}
		p.next()
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch t.text {
		case "*":
			v *= rhs
		case "/":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			v /= rhs
		case "%":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			v = math.Mod(v, rhs)
		}
	}
}

func (p *parser) unary() (float64, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

// power is right-associative and binds tighter than unary minus on its
// left: -2^2 is -4, 2^-1 is 0.5.
func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind == tokOp && t.text == "^" {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c := p.next(); c.kind != tokRParen {
			return 0, &SyntaxError{Pos: c.pos, Msg: "missing closing parenthesis"}
		}
		return v, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		if v, ok := p.vars[t.text]; ok {
			return v, nil
		}
		if v, ok := constants[t.text]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUnknownName, t.text)
	default:
		return 0, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}

func (p *parser) call(name token) (float64, error) {
	f, ok := functions[name.text]
	if !ok {
		return 0, fmt.Errorf("%w: %s()", ErrUnknownName, name.text)
	}
	p.next() // (

	var args []float64
	if p.peek().kind != tokRParen {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return 0, &SyntaxError{Pos: c.pos, Msg: "missing closing parenthesis"}
	}

	switch {
	case f.arity == -1 && len(args) == 0:
		return 0, &SyntaxError{Pos: name.pos, Msg: name.text + "() needs at least one argument"}
	case f.arity >= 0 && len(args) != f.arity:
		return 0, &SyntaxError{Pos: name.pos, Msg: fmt.Sprintf("%s() takes %d argument(s), got %d", name.text, f.arity, len(args))}
	}
	return f.call(args), nil
}
