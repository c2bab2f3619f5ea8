package prose

import (
	"hash/fnv"

	"fortio.org/safecast"
)

// Slot names are interned as byte array objects and identified in maps by a
// 32-bit FNV-1a hash of the name bytes; lookup compares the bytes only on a
// hash match.

// hashName hashes a selector for slot lookup.
func hashName(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

// intern returns the byte array object for a slot name, allocating and
// registering it on first use. Interned names are tracked, so the returned
// value must be re-read through the symbol table after any allocation.
func (vm *VM) intern(name string) (Value, error) {
	if r, ok := vm.symbols[name]; ok {
		return r.Value(), nil
	}
	v, err := vm.newBytes([]byte(name))
	if err != nil {
		return marker, err
	}
	vm.heap.setFlag(v.addr(), flagGlobal)
	vm.symbols[name] = vm.heap.Track(v)
	return v, nil
}

// A slotSpec describes one slot while a map is under construction. The
// value is held through a tracked reference because interning and map
// allocation may collect in between.
type slotSpec struct {
	name  string
	flags uint8
	// value is the inline constant for constant slots and the initial
	// assignable value for mutable slots. Argument slots leave it unset.
	value Ref
	// index is the assignable index for mutable and argument slots.
	index int
}

// buildMap allocates a map object from specs. extra is the index of the
// map's extra record, or -1; maps with an extra record are registered for
// finalization. The returned reference is tracked; the caller untracks it.
func (vm *VM) buildMap(mk mapKind, specs []slotSpec, assignable, args, extra int) (Ref, error) {
	h := vm.heap
	if assignable > MaxAssignableSlots {
		return Ref{}, tooManySlotsError{}
	}
	nslots, err := safecast.Conv[uint8](len(specs))
	if err != nil {
		return Ref{}, tooManySlotsError{}
	}
	// Intern every name first; interning allocates.
	for _, s := range specs {
		if _, err := vm.intern(s.name); err != nil {
			return Ref{}, err
		}
	}
	if err := h.EnsureSpace(mapWords(int(nslots))); err != nil {
		return Ref{}, err
	}
	flags := uint64(0)
	if extra >= 0 {
		flags = flagFinalize
	}
	m := h.Allocate(kindMap, flags, 0, mapWords(int(nslots)))
	*h.word(m, 1) = uint64(vm.mapsMap.Value())
	*h.word(m, mapMetaWord) = packMapMeta(mk, int(nslots), assignable, args, extra)
	for i, s := range specs {
		name := vm.symbols[s.name].Value()
		v := vm.nilValue()
		switch {
		case s.flags&(slotMutable|slotArgument) != 0:
			v = TagInt(int64(s.index))
		case s.value != (Ref{}):
			v = s.value.Value()
		}
		h.setSlotDesc(m, i, name, hashName(s.name), s.flags, v)
	}
	if extra >= 0 {
		h.registerFinalizable(m)
	}
	return h.Track(taggedRef(m)), nil
}

// buildObject allocates an object of the given kind with the given map and
// assignable initializers.
func (vm *VM) buildObject(k kind, m Ref, init []Ref) (Value, error) {
	h := vm.heap
	n, err := safecast.Conv[uint32](len(init))
	if err != nil || n > MaxAssignableSlots {
		return marker, tooManySlotsError{}
	}
	words := headWords + uint64(n)
	if err := h.EnsureSpace(words); err != nil {
		return marker, err
	}
	addr := h.Allocate(k, 0, n, words)
	*h.word(addr, 1) = uint64(m.Value())
	for i, r := range init {
		v := vm.nilValue()
		if r != (Ref{}) {
			v = r.Value()
		}
		*h.word(addr, headWords+i) = uint64(v)
	}
	return taggedRef(addr), nil
}

// patchSlotValue rewrites a constant slot descriptor's value in place. The
// bootstrap uses it to tie cycles (the lobby's self slot, the singleton
// parent). The write barrier applies, since maps may be in old space.
func (vm *VM) patchSlotValue(m Value, i int, v Value) {
	h := vm.heap
	*h.word(m.addr(), mapDescBase+mapDescWords*i+2) = uint64(v)
	h.barrier(m.addr(), v)
}

type tooManySlotsError struct{}

func (tooManySlotsError) Error() string {
	return "object literal exceeds 255 assignable slots"
}

// newBytes allocates a byte array object with the shared bytes map.
func (vm *VM) newBytes(b []byte) (Value, error) {
	h := vm.heap
	n, err := safecast.Conv[uint32](len(b))
	if err != nil {
		return marker, AllocationError{Words: uint64(len(b)) / 8}
	}
	words := headWords + (uint64(n)+7)/8
	if err := h.EnsureSpace(words); err != nil {
		return marker, err
	}
	addr := h.Allocate(kindBytes, 0, n, words)
	var m Value
	if vm.bytesMap != (Ref{}) {
		m = vm.bytesMap.Value()
	}
	*h.word(addr, 1) = uint64(m)
	h.setBytes(addr, b)
	return taggedRef(addr), nil
}
