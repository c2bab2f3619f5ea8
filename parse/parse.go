package parse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/proselang/prose/ast"
)

// A ParseError reports a syntax error with its source position.
type ParseError struct {
	File      string
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", e.File, e.Line, e.Col, e.Msg)
}

type parser struct {
	file   string
	tokens []token
	pos    int
}

// Parse reads Prose source and produces a script.
func Parse(source io.Reader, label string) (*ast.Script, error) {
	src := bufio.NewReader(source)
	tokens := make(chan token)
	go lex(src, tokens)
	p := &parser{file: label}
	for t := range tokens {
		if t.Kind == badToken {
			for range tokens {
				// Drain so the lexer goroutine can finish.
			}
			return nil, &ParseError{File: label, Line: t.Line, Col: t.Col, Msg: t.Err.Error()}
		}
		p.tokens = append(p.tokens, t)
	}
	stmts, err := p.statements(eofToken)
	if err != nil {
		return nil, err
	}
	return &ast.Script{Statements: stmts, Range: ast.SourceRange{File: label, Line: 1, Col: 1}}, nil
}

// MustParse parses source or panics. It is a convenience for tests and
// embedded scripts.
func MustParse(source, label string) *ast.Script {
	s, err := Parse(strings.NewReader(source), label)
	if err != nil {
		panic(err)
	}
	return s
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peek2() token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.Kind != eofToken {
		p.pos++
	}
	return t
}

func (p *parser) rangeOf(t token) ast.SourceRange {
	return ast.SourceRange{File: p.file, Line: t.Line, Col: t.Col, Off: t.Off}
}

func (p *parser) fail(t token, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.next()
	if t.Kind != k {
		return t, p.fail(t, "expected %v, found %v", k, t.Kind)
	}
	return t, nil
}

// statements parses a period-separated statement list up to the given
// closing token, which is left unconsumed.
func (p *parser) statements(end tokenKind) ([]ast.Statement, error) {
	var stmts []ast.Statement
	for {
		for p.peek().Kind == dotToken {
			p.next()
		}
		if p.peek().Kind == end {
			return stmts, nil
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		switch p.peek().Kind {
		case dotToken:
			p.next()
		case end:
			return stmts, nil
		default:
			return nil, p.fail(p.peek(), "expected %v or %v after statement, found %v", dotToken, end, p.peek().Kind)
		}
	}
}

func (p *parser) statement() (ast.Statement, error) {
	t := p.peek()
	if t.Kind == caretToken {
		p.next()
		e, err := p.expression()
		if err != nil {
			return ast.Statement{}, err
		}
		r := &ast.Return{Expr: e, Range: p.rangeOf(t)}
		return ast.Statement{Expr: r, Range: r.Range}, nil
	}
	e, err := p.expression()
	if err != nil {
		return ast.Statement{}, err
	}
	return ast.Statement{Expr: e, Range: e.SourceRange()}, nil
}

// expression parses a full keyword-precedence expression.
func (p *parser) expression() (ast.Expression, error) {
	t := p.peek()
	if t.Kind == keywordToken {
		// Implicit-receiver keyword send.
		return p.keywordMessage(nil, t)
	}
	recv, err := p.binary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind == keywordToken {
		return p.keywordMessage(recv, t)
	}
	return recv, nil
}

// keywordMessage parses a keyword selector and its arguments. Continuation
// parts begin with an upper-case letter; a lower-case keyword ends the
// selector and is left unconsumed, and no caller parses it as a further
// message, so it is a syntax error.
func (p *parser) keywordMessage(recv ast.Expression, start token) (ast.Expression, error) {
	var sel strings.Builder
	var args []ast.Expression
	t, err := p.expect(keywordToken)
	if err != nil {
		return nil, err
	}
	for {
		sel.WriteString(t.Value)
		arg, err := p.binary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		nt := p.peek()
		if nt.Kind != keywordToken || !startsUpper(nt.Value) {
			break
		}
		t = p.next()
	}
	return &ast.Message{Receiver: recv, Selector: sel.String(), Arguments: args, Range: p.rangeOf(start)}, nil
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// binary parses left-associative binary messages with no precedence levels.
func (p *parser) binary() (ast.Expression, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == operToken {
		op := p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &ast.Message{Receiver: left, Selector: op.Value, Arguments: []ast.Expression{right}, Range: p.rangeOf(op)}
	}
	return left, nil
}

// unary parses a primary followed by any chain of unary sends.
func (p *parser) unary() (ast.Expression, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == identToken {
		t := p.next()
		e = &ast.Message{Receiver: e, Selector: t.Value, Range: p.rangeOf(t)}
	}
	return e, nil
}

func (p *parser) primary() (ast.Expression, error) {
	t := p.peek()
	switch t.Kind {
	case numberToken:
		p.next()
		return p.number(t, false)
	case operToken:
		// A leading minus on a number literal.
		if t.Value == "-" && p.peek2().Kind == numberToken {
			p.next()
			nt := p.next()
			return p.number(nt, true)
		}
		return nil, p.fail(t, "unexpected operator '%s'", t.Value)
	case stringToken:
		p.next()
		return &ast.String{Value: t.Value, Range: p.rangeOf(t)}, nil
	case identToken:
		p.next()
		return &ast.Identifier{Name: t.Value, Range: p.rangeOf(t)}, nil
	case lparenToken:
		return p.parenGroup(false)
	case lbrackToken:
		return p.block()
	}
	return nil, p.fail(t, "expected an expression, found %v", t.Kind)
}

func (p *parser) number(t token, neg bool) (ast.Expression, error) {
	rng := p.rangeOf(t)
	v := t.Value
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		n, err := strconv.ParseInt(v[2:], 16, 64)
		if err != nil {
			return nil, p.fail(t, "malformed number '%s'", v)
		}
		if neg {
			n = -n
		}
		if n < prose62Min || n > prose62Max {
			return &ast.Number{IsFloat: true, Float: float64(n), Range: rng}, nil
		}
		return &ast.Number{Int: n, Range: rng}, nil
	}
	if !strings.ContainsAny(v, ".eE") {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil && n >= prose62Min && n <= prose62Max {
			if neg {
				n = -n
			}
			return &ast.Number{Int: n, Range: rng}, nil
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, p.fail(t, "malformed number '%s'", v)
	}
	if neg {
		f = -f
	}
	return &ast.Number{IsFloat: true, Float: f, Range: rng}, nil
}

// Integers outside the 62-bit tagged range parse as floats; a hexadecimal
// literal too large for 64 bits is a syntax error.
const (
	prose62Min = -1 << 61
	prose62Max = 1<<61 - 1
)

// parenGroup parses either an object literal (| slots | statements ) or a
// parenthesized body ( statements ). In value position (a slot
// initializer), a body is a method; in expression position it must hold a
// single expression, which it yields.
func (p *parser) parenGroup(valuePos bool) (ast.Expression, error) {
	open, err := p.expect(lparenToken)
	if err != nil {
		return nil, err
	}
	rng := p.rangeOf(open)
	var slots []ast.Slot
	hasSlots := false
	if p.peek().Kind == barToken {
		p.next()
		hasSlots = true
		slots, err = p.slotList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(barToken); err != nil {
			return nil, err
		}
	}
	stmts, err := p.statements(rparenToken)
	if err != nil {
		return nil, err
	}
	p.next()
	if hasSlots {
		return &ast.ObjectLiteral{Slots: slots, Statements: stmts, IsMethod: len(stmts) > 0, Range: rng}, nil
	}
	if valuePos {
		return &ast.ObjectLiteral{Statements: stmts, IsMethod: true, Range: rng}, nil
	}
	if len(stmts) != 1 {
		return nil, p.fail(open, "parenthesized expression must hold exactly one statement")
	}
	return stmts[0].Expr, nil
}

// block parses [ :arg ... | statements ] or [ statements ].
func (p *parser) block() (ast.Expression, error) {
	open, err := p.expect(lbrackToken)
	if err != nil {
		return nil, err
	}
	rng := p.rangeOf(open)
	var slots []ast.Slot
	for p.peek().Kind == argToken {
		t := p.next()
		slots = append(slots, ast.Slot{Name: t.Value, IsArgument: true, IsMutable: true, Range: p.rangeOf(t)})
	}
	if len(slots) > 0 {
		if _, err := p.expect(barToken); err != nil {
			return nil, err
		}
	}
	stmts, err := p.statements(rbrackToken)
	if err != nil {
		return nil, err
	}
	p.next()
	return &ast.BlockLiteral{Slots: slots, Statements: stmts, Range: rng}, nil
}

// slotList parses period-separated slot declarations up to the closing bar,
// which is left unconsumed.
func (p *parser) slotList() ([]ast.Slot, error) {
	var slots []ast.Slot
	for {
		for p.peek().Kind == dotToken {
			p.next()
		}
		if p.peek().Kind == barToken {
			return slots, nil
		}
		s, err := p.slotDecl()
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
		switch p.peek().Kind {
		case dotToken:
			p.next()
		case barToken:
			return slots, nil
		default:
			return nil, p.fail(p.peek(), "expected '.' or '|' after slot, found %v", p.peek().Kind)
		}
	}
}

// slotDecl parses one slot declaration:
//
//	name = value            constant slot
//	name <- value           assignable slot
//	name* = value           parent slot (also name* <- value)
//	sel: a Sel: b = ( .. )  keyword method slot
//	op a = ( .. )           binary method slot
func (p *parser) slotDecl() (ast.Slot, error) {
	t := p.next()
	switch t.Kind {
	case identToken:
		s := ast.Slot{Name: t.Value, Range: p.rangeOf(t)}
		if p.peek().Kind == operToken && p.peek().Value == "*" {
			p.next()
			s.IsParent = true
		}
		return p.slotTail(s)
	case keywordToken:
		s := ast.Slot{Name: t.Value, Range: p.rangeOf(t)}
		var sel strings.Builder
		sel.WriteString(t.Value)
		for {
			a, err := p.expect(identToken)
			if err != nil {
				return s, err
			}
			s.Arguments = append(s.Arguments, a.Value)
			nt := p.peek()
			if nt.Kind != keywordToken || !startsUpper(nt.Value) {
				break
			}
			sel.WriteString(p.next().Value)
		}
		s.Name = sel.String()
		return p.methodTail(s)
	case operToken:
		if t.Value == "=" || t.Value == "<-" {
			return ast.Slot{}, p.fail(t, "slot declaration is missing a name")
		}
		s := ast.Slot{Name: t.Value, Range: p.rangeOf(t)}
		a, err := p.expect(identToken)
		if err != nil {
			return s, err
		}
		s.Arguments = append(s.Arguments, a.Value)
		return p.methodTail(s)
	}
	return ast.Slot{}, p.fail(t, "expected a slot declaration, found %v", t.Kind)
}

// slotTail parses the = or <- and initializer of a data slot.
func (p *parser) slotTail(s ast.Slot) (ast.Slot, error) {
	t := p.next()
	if t.Kind != operToken || (t.Value != "=" && t.Value != "<-") {
		return s, p.fail(t, "expected '=' or '<-' in slot '%s'", s.Name)
	}
	s.IsMutable = t.Value == "<-"
	v, err := p.slotValue()
	if err != nil {
		return s, err
	}
	s.Value = v
	return s, nil
}

// methodTail parses the = and body of a method slot.
func (p *parser) methodTail(s ast.Slot) (ast.Slot, error) {
	t := p.next()
	if t.Kind != operToken || t.Value != "=" {
		return s, p.fail(t, "expected '=' in method slot '%s'", s.Name)
	}
	if p.peek().Kind != lparenToken {
		return s, p.fail(p.peek(), "method slot '%s' requires a parenthesized body", s.Name)
	}
	v, err := p.parenGroup(true)
	if err != nil {
		return s, err
	}
	s.Value = v
	return s, nil
}

// slotValue parses a slot initializer. A parenthesized group here is a
// method body unless it opens an object literal.
func (p *parser) slotValue() (ast.Expression, error) {
	if p.peek().Kind == lparenToken {
		return p.parenGroup(true)
	}
	return p.expression()
}
