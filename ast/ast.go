// Package ast defines the syntax tree consumed by the Prose evaluator.
//
// The tree is produced by package parse, but any producer that builds these
// values is an acceptable front end. Statement lists are shared by reference:
// a method or block literal takes ownership of the statement slice recorded
// in its node, and the heap releases that reference when the owning map is
// collected.
package ast

import "fmt"

// SourceRange locates a node within its source file.
type SourceRange struct {
	// File is the label of the source, generally a file name.
	File string
	// Line and Col are the one-based position of the node's first token.
	Line, Col int
	// Off is the byte offset of the node's first token.
	Off int
}

// String formats the range as file:line:column.
func (r SourceRange) String() string {
	return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Col)
}

// A Script is a parsed source file.
type Script struct {
	// Statements are the top-level statements in source order.
	Statements []Statement
	// Range covers the whole script.
	Range SourceRange
}

// A Statement is a single expression terminated by a period or end of input.
type Statement struct {
	// Expr is the statement's expression.
	Expr Expression
	// Range covers the statement.
	Range SourceRange
}

// Expression is one variant of the expression union. The concrete types are
// ObjectLiteral, BlockLiteral, Message, Return, Identifier, String, and
// Number.
type Expression interface {
	// SourceRange reports where the expression appears.
	SourceRange() SourceRange

	isExpression()
}

// An Identifier is a bare name resolved against the current receiver.
// Identifiers beginning with an underscore name primitives.
type Identifier struct {
	Name  string
	Range SourceRange
}

// A Number is an integer or floating point literal.
type Number struct {
	// IsFloat selects between Float and Int.
	IsFloat bool
	Int     int64
	Float   float64
	Range   SourceRange
}

// A String is a string literal. Evaluating one allocates a byte array object.
type String struct {
	Value string
	Range SourceRange
}

// A Slot describes one slot of an object or block literal.
type Slot struct {
	// Name is the slot's selector. Keyword method slots use the full
	// selector, e.g. "add:With:".
	Name string
	// IsMutable marks assignable slots, declared with <-.
	IsMutable bool
	// IsParent marks parent slots, declared with a trailing star.
	IsParent bool
	// IsArgument marks block argument slots, declared with a leading colon.
	IsArgument bool
	// Arguments are the argument names of a method slot, in selector order.
	Arguments []string
	// Value is the slot's initializer, nil for argument slots.
	Value Expression
	// Range covers the slot declaration.
	Range SourceRange
}

// An ObjectLiteral constructs a slots object, or a method object when the
// literal is the value of a method slot.
type ObjectLiteral struct {
	Slots      []Slot
	Statements []Statement
	// IsMethod is set by the parser for a parenthesized body in slot-value
	// position and for an object literal that contains statements. A method
	// slot with arguments yields a method even when this is unset.
	IsMethod bool
	Range    SourceRange
}

// A BlockLiteral constructs a block object closing over the current
// activation.
type BlockLiteral struct {
	Slots      []Slot
	Statements []Statement
	Range      SourceRange
}

// A Message is a send of a selector to a receiver. A nil Receiver sends to
// the current self.
type Message struct {
	Receiver  Expression
	Selector  string
	Arguments []Expression
	Range     SourceRange
}

// A Return is a non-local return expression.
type Return struct {
	Expr  Expression
	Range SourceRange
}

func (e *Identifier) SourceRange() SourceRange    { return e.Range }
func (e *Number) SourceRange() SourceRange        { return e.Range }
func (e *String) SourceRange() SourceRange        { return e.Range }
func (e *ObjectLiteral) SourceRange() SourceRange { return e.Range }
func (e *BlockLiteral) SourceRange() SourceRange  { return e.Range }
func (e *Message) SourceRange() SourceRange       { return e.Range }
func (e *Return) SourceRange() SourceRange        { return e.Range }

func (*Identifier) isExpression()    {}
func (*Number) isExpression()        {}
func (*String) isExpression()        {}
func (*ObjectLiteral) isExpression() {}
func (*BlockLiteral) isExpression()  {}
func (*Message) isExpression()       {}
func (*Return) isExpression()        {}
