package prose

import (
	"fmt"
	"io"

	"github.com/proselang/prose/ast"
)

// A Completion is the tagged result of one evaluation step: a normal value,
// a runtime error unwinding every activation, or a non-local return
// unwinding to its target activation. Every recursive evaluation step
// propagates non-normal completions immediately.
type Completion struct {
	kind completionKind

	value Value
	err   *RuntimeError

	// Non-local returns carry their value through a tracked reference, since
	// the unwind crosses frames that are being popped.
	target ActivationRef
	nlr    Ref
}

type completionKind uint8

const (
	completionNormal completionKind = iota
	completionError
	completionReturn
)

// normal wraps a value in a normal completion.
func normal(v Value) Completion {
	return Completion{kind: completionNormal, value: v}
}

// IsNormal reports whether the completion carries an ordinary value.
func (c Completion) IsNormal() bool { return c.kind == completionNormal }

// IsError reports whether the completion is a runtime error.
func (c Completion) IsError() bool { return c.kind == completionError }

// isReturn reports whether the completion is a non-local return.
func (c Completion) isReturn() bool { return c.kind == completionReturn }

// Value returns the carried value of a normal completion.
func (c Completion) Value() Value {
	if c.kind != completionNormal {
		panic(fmt.Sprintf("prose: Value on %v completion", c.kind))
	}
	return c.value
}

// Err returns the runtime error of an error completion, or nil.
func (c Completion) Err() *RuntimeError {
	return c.err
}

func (k completionKind) String() string {
	switch k {
	case completionNormal:
		return "normal"
	case completionError:
		return "error"
	case completionReturn:
		return "non-local return"
	}
	return "invalid"
}

// A TraceFrame is one activation in a runtime error's stack trace.
type TraceFrame struct {
	// Name is the selector that created the activation.
	Name string
	// Call is the call site.
	Call ast.SourceRange
}

// A RuntimeError is a non-resumable error raised by the evaluator or a
// primitive. It unwinds the whole activation stack; the driver reports it.
type RuntimeError struct {
	// Message is the human-readable description.
	Message string
	// Range locates the expression that raised the error.
	Range ast.SourceRange
	// Trace is the live activation stack at the point of the error, newest
	// frame first.
	Trace []TraceFrame
	// Fatal marks allocation errors. They unwind and are reported like any
	// other runtime error; the flag only tells them apart.
	Fatal bool
}

// Error formats the error head as file:line:column: error: message.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: error: %s", e.Range, e.Message)
}

// Report writes the error and its stack trace, newest activation first.
func (e *RuntimeError) Report(w io.Writer) {
	fmt.Fprintln(w, e.Error())
	for _, f := range e.Trace {
		fmt.Fprintf(w, "  at %s %s\n", f.Name, f.Call)
	}
}

// raise creates an error completion, capturing the live activation stack.
func (vm *VM) raise(rng ast.SourceRange, msg string) Completion {
	err := &RuntimeError{Message: msg, Range: rng, Trace: vm.trace()}
	return Completion{kind: completionError, err: err}
}

// Raisef creates an error completion with a formatted message. Primitives
// use it to report argument type and range violations.
func (vm *VM) Raisef(rng ast.SourceRange, format string, args ...interface{}) Completion {
	return vm.raise(rng, fmt.Sprintf(format, args...))
}

// raiseFatal wraps an allocation error in a fatal error completion.
func (vm *VM) raiseFatal(rng ast.SourceRange, err error) Completion {
	e := &RuntimeError{Message: err.Error(), Range: rng, Trace: vm.trace(), Fatal: true}
	return Completion{kind: completionError, err: e}
}

// nonLocalReturn creates a non-local return completion carrying v to the
// target activation. The value is tracked until the target absorbs it.
func (vm *VM) nonLocalReturn(target ActivationRef, v Value) Completion {
	return Completion{kind: completionReturn, target: target, nlr: vm.heap.Track(v)}
}

// trace snapshots the activation stack, newest frame first.
func (vm *VM) trace() []TraceFrame {
	n := vm.stack.Depth()
	t := make([]TraceFrame, 0, n)
	for i := n - 1; i >= 0; i-- {
		f := &vm.stack.frames[i]
		t = append(t, TraceFrame{Name: f.selector, Call: f.call})
	}
	return t
}
