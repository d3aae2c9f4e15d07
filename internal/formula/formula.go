// Package formula parses and evaluates the arithmetic expressions used in
// journal templates. Only numbers, named variables, + - * /, unary minus and
// parentheses are accepted; nothing is ever executed.
package formula

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const divisionPrecision = 16

// Expr is a parsed formula.
type Expr struct {
	src  string
	root node
}

type node interface {
	eval(vars map[string]decimal.Decimal) (decimal.Decimal, error)
	collect(names map[string]struct{})
}

type number struct{ v decimal.Decimal }

type variable struct {
	name string
	pos  int
}

type unary struct{ x node }

type binary struct {
	op   rune
	pos  int
	l, r node
}

// Parse parses src. Errors name the offending position.
func Parse(src string) (*Expr, error) {
	p := &parser{runes: []rune(src)}
	p.skipSpace()
	if p.done() {
		return nil, fmt.Errorf("formula: empty expression")
	}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, fmt.Errorf("formula: position %d: unexpected %q", p.pos+1, p.runes[p.pos])
	}
	return &Expr{src: src, root: root}, nil
}

// MustParse is Parse for expressions known to be valid; it panics otherwise.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval evaluates the expression. Unknown variables and division by zero are errors.
func (e *Expr) Eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	return e.root.eval(vars)
}

// Variables lists the variable names the expression references, sorted.
func (e *Expr) Variables() []string {
	set := make(map[string]struct{})
	e.root.collect(set)
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (e *Expr) String() string { return e.src }

func (n number) eval(map[string]decimal.Decimal) (decimal.Decimal, error) { return n.v, nil }
func (n number) collect(map[string]struct{})                               {}

func (v variable) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	val, ok := vars[v.name]
	if !ok {
		return decimal.Zero, fmt.Errorf("formula: position %d: unknown variable %q", v.pos+1, v.name)
	}
	return val, nil
}
func (v variable) collect(names map[string]struct{}) { names[v.name] = struct{}{} }

func (u unary) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	x, err := u.x.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	return x.Neg(), nil
}
func (u unary) collect(names map[string]struct{}) { u.x.collect(names) }

func (b binary) eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	l, err := b.l.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := b.r.eval(vars)
	if err != nil {
		return decimal.Zero, err
	}
	switch b.op {
	case '+':
		return l.Add(r), nil
	case '-':
		return l.Sub(r), nil
	case '*':
		return l.Mul(r), nil
	default:
		if r.IsZero() {
			return decimal.Zero, fmt.Errorf("formula: position %d: division by zero", b.pos+1)
		}
		return l.DivRound(r, divisionPrecision), nil
	}
}

func (b binary) collect(names map[string]struct{}) {
	b.l.collect(names)
	b.r.collect(names)
}

// parser is a recursive descent parser over:
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = "-" factor | "+" factor | number | ident | "(" expr ")"
type parser struct {
	runes []rune
	pos   int
	depth int
}

const maxDepth = 64

func (p *parser) done() bool { return p.pos >= len(p.runes) }

func (p *parser) peek() rune {
	if p.done() {
		return 0
	}
	return p.runes[p.pos]
}

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(p.runes[p.pos]) {
		p.pos++
	}
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		pos := p.pos
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, pos: pos, l: left, r: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		pos := p.pos
		p.pos++
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, pos: pos, l: left, r: right}
	}
}

func (p *parser) factor() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, fmt.Errorf("formula: position %d: expression nested too deeply", p.pos+1)
	}

	p.skipSpace()
	if p.done() {
		return nil, fmt.Errorf("formula: position %d: unexpected end of expression", p.pos+1)
	}

	r := p.peek()
	switch {
	case r == '-':
		p.pos++
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return unary{x: x}, nil
	case r == '+':
		p.pos++
		return p.factor()
	case r == '(':
		open := p.pos
		p.pos++
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("formula: position %d: unclosed parenthesis", open+1)
		}
		p.pos++
		return x, nil
	case unicode.IsDigit(r) || r == '.':
		return p.number()
	case r == '_' || unicode.IsLetter(r):
		return p.ident(), nil
	}
	return nil, fmt.Errorf("formula: position %d: unexpected %q", p.pos+1, r)
}

func (p *parser) number() (node, error) {
	start := p.pos
	for !p.done() && (unicode.IsDigit(p.peek()) || p.peek() == '.') {
		p.pos++
	}
	lit := string(p.runes[start:p.pos])
	if strings.Count(lit, ".") > 1 {
		return nil, fmt.Errorf("formula: position %d: malformed number %q", start+1, lit)
	}
	v, err := decimal.NewFromString(lit)
	if err != nil {
		return nil, fmt.Errorf("formula: position %d: malformed number %q", start+1, lit)
	}
	return number{v: v}, nil
}

func (p *parser) ident() node {
	start := p.pos
	for !p.done() {
		r := p.peek()
		if r != '_' && r != '.' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	return variable{name: string(p.runes[start:p.pos]), pos: start}
}
