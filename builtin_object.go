package prose

import (
	"fmt"

	"github.com/proselang/prose/ast"
)

// ObjectAddSlots is an object primitive.
//
// _AddSlots: installs the argument's slots on the receiver, deriving a
// fresh map from the receiver's current one. Only constant and parent
// slots can be added at runtime; assignable slots must be declared in the
// receiver's own literal, since the receiver's assignable array cannot
// grow. A slot with the same name as an existing one replaces it.
func ObjectAddSlots(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	h := vm.heap
	if !recv.IsRef() {
		return vm.Raisef(rng, "_AddSlots: expects an object receiver")
	}
	switch h.kind(recv.addr()) {
	case kindSlots, kindMethod, kindBlock:
	default:
		return vm.Raisef(rng, "_AddSlots: expects an object receiver, not %s", h.kind(recv.addr()))
	}
	if c, ok := vm.wantArgs("_AddSlots:", args, 1, rng); !ok {
		return c
	}
	if !args[0].IsRef() || h.kind(args[0].addr()) != kindSlots {
		return vm.Raisef(rng, "_AddSlots: expects a slots object at argument 0")
	}
	r := h.Track(recv)
	defer h.Untrack(r)

	var specs []slotSpec
	var held []Ref
	defer func() {
		for _, s := range held {
			h.Untrack(s)
		}
	}()
	track := func(v Value) Ref {
		ref := h.Track(v)
		held = append(held, ref)
		return ref
	}

	rm := h.mapOf(recv.addr()).addr()
	for i := 0; i < h.mapSlotCount(rm); i++ {
		_, flags := h.slotInfo(rm, i)
		name := string(h.bytesAt(h.slotName(rm, i).addr()))
		s := slotSpec{name: name, flags: flags}
		if flags&(slotMutable|slotArgument) != 0 {
			s.index = int(h.slotValueWord(rm, i).Int())
		} else {
			s.value = track(h.slotValueWord(rm, i))
		}
		specs = append(specs, s)
	}

	am := h.mapOf(args[0].addr()).addr()
	for i := 0; i < h.mapSlotCount(am); i++ {
		_, flags := h.slotInfo(am, i)
		if flags&(slotMutable|slotArgument) != 0 {
			return vm.Raisef(rng, "_AddSlots: cannot add assignable slots at runtime")
		}
		s := slotSpec{
			name:  string(h.bytesAt(h.slotName(am, i).addr())),
			flags: flags,
			value: track(h.slotValueWord(am, i)),
		}
		replaced := false
		for j := range specs {
			if specs[j].name == s.name {
				specs[j] = s
				replaced = true
				break
			}
		}
		if !replaced {
			specs = append(specs, s)
		}
	}

	extra := -1
	if ei := h.mapExtraIndex(rm); ei >= 0 {
		extra = h.newExtra(*h.extra(ei))
	}
	m, err := vm.buildMap(h.mapKindOf(rm), specs, h.mapAssignableCount(rm), h.mapArgCount(rm), extra)
	if err != nil {
		if extra >= 0 {
			h.releaseExtra(extra)
		}
		return vm.raiseFatal(rng, err)
	}
	h.setMap(r.Value().addr(), m.Value())
	h.Untrack(m)
	return normal(r.Value())
}

// cloneValue copies an object: the clone shares the original's map and gets
// a copy of its assignable values or bytes. Numbers clone to themselves.
func (vm *VM) cloneValue(v Value, rng ast.SourceRange) Completion {
	if !v.IsRef() {
		return normal(v)
	}
	h := vm.heap
	switch h.kind(v.addr()) {
	case kindBytes:
		return vm.newString(h.bytesAt(v.addr()), rng)
	case kindSlots, kindMethod, kindBlock:
	default:
		return vm.Raisef(rng, "cannot clone %s", h.kind(v.addr()))
	}
	src := h.Track(v)
	defer h.Untrack(src)
	n := h.assignableCount(v.addr())
	words := headWords + uint64(n)
	if err := h.EnsureSpace(words); err != nil {
		return vm.raiseFatal(rng, err)
	}
	sa := src.Value().addr()
	addr := h.Allocate(h.kind(sa), 0, uint32(n), words)
	*h.word(addr, 1) = uint64(h.mapOf(sa))
	for i := 0; i < n; i++ {
		*h.word(addr, headWords+i) = uint64(h.assignable(sa, i))
	}
	return normal(taggedRef(addr))
}

// ObjectClone is an object primitive.
//
// _Clone copies the receiver. The clone shares the receiver's map.
func ObjectClone(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return vm.cloneValue(recv, rng)
}

// ObjectCloneOf is an object primitive.
//
// _CloneOf: copies the argument.
func ObjectCloneOf(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	if c, ok := vm.wantArgs("_CloneOf:", args, 1, rng); !ok {
		return c
	}
	return vm.cloneValue(args[0], rng)
}

// ObjectIdentical is an object primitive.
//
// _Identical: returns whether the receiver and the argument are the same
// value: the same tagged number or the same object.
func ObjectIdentical(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	if c, ok := vm.wantArgs("_Identical:", args, 1, rng); !ok {
		return c
	}
	return normal(vm.Bool(recv == args[0]))
}

// ObjectPrint is an object primitive.
//
// _Print writes the receiver's rendering to the VM's output and returns the
// receiver.
func ObjectPrint(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	fmt.Fprint(vm.Out, vm.Format(recv))
	return normal(recv)
}

// ObjectPrintLine is an object primitive.
//
// _PrintLine writes the receiver's rendering and a newline to the VM's
// output and returns the receiver.
func ObjectPrintLine(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	fmt.Fprintln(vm.Out, vm.Format(recv))
	return normal(recv)
}

// ObjectThisActivation is an object primitive.
//
// _ThisActivation reifies the current activation as a first-class object
// holding the receiver, the activated method or block, and a snapshot of
// the bindings. Lookup treats activation objects transparently, delegating
// to the reified receiver past the bindings.
func ObjectThisActivation(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	h := vm.heap
	f := vm.stack.Top()
	n := len(f.bindings)
	words := headWords + 2 + uint64(n)
	if err := h.EnsureSpace(words); err != nil {
		return vm.raiseFatal(rng, err)
	}
	addr := h.Allocate(kindActivation, 0, uint32(n), words)
	*h.word(addr, 1) = uint64(vm.emptyMap.Value())
	*h.word(addr, headWords) = uint64(f.receiver)
	*h.word(addr, headWords+1) = uint64(f.fn)
	for i, b := range f.bindings {
		*h.word(addr, headWords+2+i) = uint64(b)
	}
	return normal(taggedRef(addr))
}

// BlockRun is a control primitive.
//
// _BlockRun: activates the argument with no arguments if it is a block and
// returns any other argument unchanged. The boolean conditionals are built
// on it.
func BlockRun(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	if c, ok := vm.wantArgs("_BlockRun:", args, 1, rng); !ok {
		return c
	}
	if !args[0].IsRef() || vm.heap.kind(args[0].addr()) != kindBlock {
		return normal(args[0])
	}
	blk := vm.heap.Track(args[0])
	defer vm.heap.Untrack(blk)
	return vm.activateBlock(blk, nil, "value", rng)
}
