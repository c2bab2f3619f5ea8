package prose

import (
	"github.com/proselang/prose/ast"
)

// An activation records one in-progress method or block execution. Frames
// live on a bounded stack owned by the VM; blocks refer to frames weakly
// through an ActivationRef, an index paired with a generation counter that
// is bumped every time the stack slot is reused, so a stale reference can
// never denote the wrong frame.

// MaxActivations bounds the activation stack depth.
const MaxActivations = 2048

// An ActivationRef is a weak reference to a stack frame. The zero value
// denotes no frame.
type ActivationRef struct {
	index uint32
	gen   uint32
}

// Valid reports whether the reference denotes any frame at all. A valid
// reference may still be dead; see (*Stack).Deref.
func (r ActivationRef) Valid() bool {
	return r.gen != 0
}

// A frame is one activation: the method or block being executed, the bound
// receiver, and the argument and local bindings. The receiver, fn, and
// bindings are collector roots.
type frame struct {
	fn       Value
	receiver Value
	bindings []Value

	// selector is the message that created the activation, for traces.
	selector string
	// script and call locate the activation's definition and call site.
	script *ast.Script
	call   ast.SourceRange

	// nlr is the non-local return target: the frame itself for methods, the
	// captured target for blocks.
	nlr ActivationRef

	gen uint32
}

// A Stack is the activation stack.
type Stack struct {
	frames []frame
	// gens[i] is the current generation of slot i. It is incremented on both
	// push and pop, so a ref taken at push time dies exactly at pop.
	gens []uint32
}

// NewStack creates an empty activation stack.
func NewStack() *Stack {
	return &Stack{frames: make([]frame, 0, 64)}
}

// Depth reports the number of live activations.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Push adds a frame and returns it along with its weak reference. It fails
// when the stack is full.
func (s *Stack) Push(f frame) (*frame, ActivationRef, bool) {
	i := len(s.frames)
	if i >= MaxActivations {
		return nil, ActivationRef{}, false
	}
	if i == len(s.gens) {
		s.gens = append(s.gens, 0)
	}
	s.gens[i]++
	f.gen = s.gens[i]
	s.frames = append(s.frames, f)
	top := &s.frames[i]
	return top, ActivationRef{index: uint32(i), gen: f.gen}, true
}

// Pop removes the top frame, killing references to it.
func (s *Stack) Pop() {
	i := len(s.frames) - 1
	s.frames[i] = frame{}
	s.frames = s.frames[:i]
	s.gens[i]++
}

// Top returns the current activation, or nil when the stack is empty.
func (s *Stack) Top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

// Deref resolves a weak reference. It returns nil when the referenced frame
// has left the stack.
func (s *Stack) Deref(r ActivationRef) *frame {
	if !r.Valid() || int(r.index) >= len(s.frames) {
		return nil
	}
	f := &s.frames[r.index]
	if f.gen != r.gen {
		return nil
	}
	return f
}

// ref returns the weak reference of a live frame by index.
func (s *Stack) ref(i int) ActivationRef {
	return ActivationRef{index: uint32(i), gen: s.frames[i].gen}
}
