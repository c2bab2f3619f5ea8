package prose

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/proselang/prose/ast"
)

// A VM is a Prose execution context: the heap, the activation stack, the
// interned symbol table, the primitive registry, and the world roots (the
// lobby, the nil/true/false singletons, and the number and string traits).
// All mutable global state of the language lives here; a process may hold
// several VMs.
type VM struct {
	heap  *Heap
	stack *Stack

	symbols map[string]Ref
	prims   map[string]Primitive

	// World roots, all tracked.
	mapsMap      Ref
	emptyMap     Ref
	singletonMap Ref
	bytesMap     Ref
	lobby        Ref
	nilRef       Ref
	trueRef      Ref
	falseRef     Ref
	intTraits    Ref
	floatTraits  Ref
	stringTraits Ref

	// Out receives the output of the print primitives.
	Out io.Writer

	log commonlog.Logger
	cfg Config
}

// NewVM creates a VM, prepares the world, and runs the bootstrap script
// that installs the traits methods.
func NewVM(cfg Config) (*VM, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	vm := &VM{
		heap:    NewHeap(cfg),
		stack:   NewStack(),
		symbols: make(map[string]Ref),
		prims:   make(map[string]Primitive, len(builtins)),
		Out:     os.Stdout,
		log:     commonlog.GetLogger("prose.vm"),
		cfg:     cfg,
	}
	vm.heap.stack = vm.stack
	for _, b := range builtins {
		vm.prims[b.selector] = b.fn
	}
	if err := vm.prepareWorld(); err != nil {
		return nil, err
	}
	if err := vm.finishWorld(); err != nil {
		return nil, err
	}
	return vm, nil
}

// Close releases the VM's own roots and reports tracked references leaked
// by primitives or embedders.
func (vm *VM) Close() error {
	for _, r := range vm.symbols {
		vm.heap.Untrack(r)
	}
	vm.symbols = nil
	roots := []Ref{
		vm.mapsMap, vm.emptyMap, vm.singletonMap, vm.bytesMap,
		vm.lobby, vm.nilRef, vm.trueRef, vm.falseRef,
		vm.intTraits, vm.floatTraits, vm.stringTraits,
	}
	for _, r := range roots {
		if r != (Ref{}) {
			vm.heap.Untrack(r)
		}
	}
	if n := vm.heap.Close(); n > 0 {
		return fmt.Errorf("%d tracked references leaked", n)
	}
	return nil
}

// Heap returns the VM's heap. Primitives use it to allocate and to track
// values across their own allocations.
func (vm *VM) Heap() *Heap { return vm.heap }

// Lobby returns the root object of the world.
func (vm *VM) Lobby() Value { return vm.lobby.Value() }

// Nil returns the nil singleton.
func (vm *VM) Nil() Value { return vm.nilRef.Value() }

// True returns the true singleton.
func (vm *VM) True() Value { return vm.trueRef.Value() }

// False returns the false singleton.
func (vm *VM) False() Value { return vm.falseRef.Value() }

// Bool converts a Go bool to the corresponding singleton.
func (vm *VM) Bool(b bool) Value {
	if b {
		return vm.trueRef.Value()
	}
	return vm.falseRef.Value()
}

func (vm *VM) nilValue() Value {
	if vm.nilRef == (Ref{}) {
		return TagInt(0)
	}
	return vm.nilRef.Value()
}

// ExecuteScript evaluates a script with the lobby as the receiver. The
// script runs inside a synthetic activation, so a top-level non-local
// return simply ends the script. The activation stack is empty again on
// return, whether the result is a value or an error.
func (vm *VM) ExecuteScript(script *ast.Script) (Value, *RuntimeError) {
	c := vm.runScript(script, vm.lobby)
	if vm.stack.Depth() != 0 {
		panic("prose: activation stack not empty after script")
	}
	switch {
	case c.IsNormal():
		return c.Value(), nil
	case c.IsError():
		return marker, c.Err()
	}
	// A non-local return reached past every activation.
	vm.heap.Untrack(c.nlr)
	e := vm.raise(script.Range, "non-local return past method boundary")
	return marker, e.Err()
}

// ExecuteSubScript evaluates a script in the context of the current
// activation, for nested loads. The receiver is the current self, or the
// lobby when no activation is live.
func (vm *VM) ExecuteSubScript(script *ast.Script) Completion {
	recv := vm.lobby
	if f := vm.stack.Top(); f != nil {
		r := vm.heap.Track(f.receiver)
		defer vm.heap.Untrack(r)
		return vm.runScript(script, r)
	}
	return vm.runScript(script, recv)
}

// runScript wraps the script's statements in a method object and activates
// it on recv.
func (vm *VM) runScript(script *ast.Script, recv Ref) Completion {
	fn, c := vm.newMethodObject(nil, script.Statements, nil, script, script.Range)
	if !c.IsNormal() {
		return c
	}
	defer vm.heap.Untrack(fn)
	return vm.activate(recv, fn, nil, "<script>", script.Range)
}

// Format renders a value the way the print primitives do.
func (vm *VM) Format(v Value) string {
	switch {
	case v.IsInt():
		return strconv.FormatInt(v.Int(), 10)
	case v.IsFloat():
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case !v.IsRef():
		return "<marker>"
	}
	switch v {
	case vm.nilRef.Value():
		return "nil"
	case vm.trueRef.Value():
		return "true"
	case vm.falseRef.Value():
		return "false"
	case vm.lobby.Value():
		return "lobby"
	}
	h := vm.heap
	switch h.kind(v.addr()) {
	case kindBytes:
		return string(h.bytesAt(v.addr()))
	case kindMethod:
		return "a method"
	case kindBlock:
		return "a block"
	case kindActivation:
		return "an activation"
	case kindMap:
		return "a map"
	}
	return "an object"
}
