package prose

import (
	"github.com/zephyrtronium/contains"
)

// Slot lookup walks an object's map in slot declaration order, then recurses
// into the values of parent slots, also in declaration order. The first
// match wins, including across distinct parent paths; ambiguous parent
// lookups are deliberately not reported as errors. Cycles in the parent
// graph are broken by a visited set keyed on object address and treated as
// a miss past the cycle.
//
// Assign-intent lookup resolves on the direct receiver only and never
// descends into parents.

type intent int

const (
	// lookupRead resolves a selector to its value.
	lookupRead intent = iota
	// lookupAssign resolves a selector to a settable location.
	lookupAssign
)

// A lookupHit is the result of a successful lookup. For Read intent, Value
// holds the slot's current value. For Assign intent, Owner and Index locate
// the assignable cell.
type lookupHit struct {
	Value Value
	// Owner is the address of the object defining the slot.
	Owner uint64
	// Index is the assignable index, or -1 for a constant slot.
	Index int
}

// ReservedParent is the selector that short-circuits to the traits object
// for integer and float receivers.
const ReservedParent = "parent"

// Lookup resolves a selector against a receiver. It reports a miss with
// ok false; misses are not errors at this layer.
func (vm *VM) Lookup(recv Value, name string, it intent) (lookupHit, bool) {
	hash := hashName(name)
	switch {
	case recv.IsInt():
		return vm.lookupTraits(vm.intTraits.Value(), name, hash, it)
	case recv.IsFloat():
		return vm.lookupTraits(vm.floatTraits.Value(), name, hash, it)
	case recv.IsRef():
		seen := contains.Set{}
		seen.Add(uintptr(recv.addr()))
		return vm.lookupIn(recv.addr(), name, hash, it, &seen)
	}
	return lookupHit{}, false
}

// lookupTraits forwards a tagged number's lookup to its traits object. The
// reserved parent selector yields the traits object itself.
func (vm *VM) lookupTraits(traits Value, name string, hash uint32, it intent) (lookupHit, bool) {
	if it == lookupRead && name == ReservedParent {
		return lookupHit{Value: traits, Index: -1}, true
	}
	if it == lookupAssign {
		// Numbers have no assignable slots of their own.
		return lookupHit{}, false
	}
	seen := contains.Set{}
	seen.Add(uintptr(traits.addr()))
	return vm.lookupIn(traits.addr(), name, hash, it, &seen)
}

func (vm *VM) lookupIn(addr uint64, name string, hash uint32, it intent, seen *contains.Set) (lookupHit, bool) {
	h := vm.heap
	if h.kind(addr) == kindActivation {
		return vm.lookupActivationObject(addr, name, hash, it, seen)
	}
	m := h.mapOf(addr)
	if !m.IsRef() {
		return lookupHit{}, false
	}
	ma := m.addr()
	n := h.mapSlotCount(ma)
	for i := 0; i < n; i++ {
		sh, flags := h.slotInfo(ma, i)
		if sh != hash || !h.bytesEqual(h.slotName(ma, i).addr(), []byte(name)) {
			continue
		}
		if flags&(slotMutable|slotArgument) != 0 {
			idx := int(h.slotValueWord(ma, i).Int())
			if it == lookupAssign && flags&slotArgument != 0 {
				// Arguments are rebindable only at activation time.
				return lookupHit{}, false
			}
			return lookupHit{Value: h.assignable(addr, idx), Owner: addr, Index: idx}, true
		}
		if it == lookupAssign {
			return lookupHit{}, false
		}
		return lookupHit{Value: h.slotValueWord(ma, i), Owner: addr, Index: -1}, true
	}
	if it == lookupAssign {
		return lookupHit{}, false
	}
	// Miss on the direct slots: recurse into parent slot values in
	// declaration order.
	for i := 0; i < n; i++ {
		_, flags := h.slotInfo(ma, i)
		if flags&slotParent == 0 {
			continue
		}
		pv := h.slotValueWord(ma, i)
		if flags&(slotMutable|slotArgument) != 0 {
			pv = h.assignable(addr, int(h.slotValueWord(ma, i).Int()))
		}
		if hit, ok := vm.lookupParent(pv, name, hash, it, seen); ok {
			return hit, true
		}
	}
	return lookupHit{}, false
}

// lookupParent continues a lookup through one parent value, which may be a
// tagged number delegating to its traits.
func (vm *VM) lookupParent(pv Value, name string, hash uint32, it intent, seen *contains.Set) (lookupHit, bool) {
	switch {
	case pv.IsInt():
		pv = vm.intTraits.Value()
	case pv.IsFloat():
		pv = vm.floatTraits.Value()
	case !pv.IsRef():
		return lookupHit{}, false
	}
	if !seen.Add(uintptr(pv.addr())) {
		return lookupHit{}, false
	}
	return vm.lookupIn(pv.addr(), name, hash, it, seen)
}

// lookupActivationObject searches a reified activation: its bindings under
// the activated object's argument and local slots, then the activated
// object itself, then transparently its receiver.
func (vm *VM) lookupActivationObject(addr uint64, name string, hash uint32, it intent, seen *contains.Set) (lookupHit, bool) {
	h := vm.heap
	fn := h.activationFn(addr)
	if fn.IsRef() {
		fm := h.mapOf(fn.addr())
		// Bindings are readable through the reified activation but never
		// assignable; the snapshot is not the live frame.
		if fm.IsRef() && it == lookupRead {
			ma := fm.addr()
			for i := 0; i < h.mapSlotCount(ma); i++ {
				sh, flags := h.slotInfo(ma, i)
				if sh != hash || flags&(slotMutable|slotArgument) == 0 {
					continue
				}
				if !h.bytesEqual(h.slotName(ma, i).addr(), []byte(name)) {
					continue
				}
				idx := int(h.slotValueWord(ma, i).Int())
				return lookupHit{Value: h.activationBinding(addr, idx), Owner: addr, Index: -1}, true
			}
		}
		if seen.Add(uintptr(fn.addr())) {
			if hit, ok := vm.lookupIn(fn.addr(), name, hash, it, seen); ok {
				return hit, true
			}
		}
	}
	return vm.lookupParent(h.activationReceiver(addr), name, hash, it, seen)
}
