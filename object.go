package prose

// Every heap object begins with a two-word header. The first word packs the
// object kind, flag bits, survival age, and a kind-specific auxiliary field;
// the second holds the object's map pointer, or the forwarding reference
// while a scavenge is in progress.
//
//	word 0   kind (3 bits) | flags (bits 3..5) | age (bits 8..15) | aux (bits 16..47)
//	word 1   map Value, or forwarding Value when kind is kindForward
//
// The aux field holds the assignable slot count for slots, method, and block
// objects, the byte length for byte arrays, the binding count for
// activations, and is unused for maps (a map's counts live in its meta
// word).

type kind uint8

const (
	kindFree kind = iota
	kindMap
	kindSlots
	kindMethod
	kindBlock
	kindBytes
	kindActivation
	kindForward
)

func (k kind) String() string {
	switch k {
	case kindMap:
		return "map"
	case kindSlots:
		return "slots"
	case kindMethod:
		return "method"
	case kindBlock:
		return "block"
	case kindBytes:
		return "bytes"
	case kindActivation:
		return "activation"
	case kindForward:
		return "forward"
	}
	return "free"
}

const (
	flagGlobal     = 1 << 3
	flagFinalize   = 1 << 4
	flagRemembered = 1 << 5

	kindBits  = 7
	ageShift  = 8
	ageMask   = 0xff
	auxShift  = 16
	auxMask   = 0xffffffff
	headWords = 2
)

func packHeader(k kind, flags uint64, aux uint32) uint64 {
	return uint64(k) | flags | uint64(aux)<<auxShift
}

// word addresses the i'th word of the object at addr.
func (h *Heap) word(addr uint64, i int) *uint64 {
	return &h.mem[addr/8+uint64(i)]
}

func (h *Heap) kind(addr uint64) kind {
	return kind(*h.word(addr, 0) & kindBits)
}

func (h *Heap) aux(addr uint64) uint32 {
	return uint32(*h.word(addr, 0) >> auxShift & auxMask)
}

func (h *Heap) age(addr uint64) int {
	return int(*h.word(addr, 0) >> ageShift & ageMask)
}

func (h *Heap) setAge(addr uint64, age int) {
	w := h.word(addr, 0)
	*w = *w&^uint64(ageMask<<ageShift) | uint64(age&ageMask)<<ageShift
}

func (h *Heap) flag(addr uint64, f uint64) bool {
	return *h.word(addr, 0)&f != 0
}

func (h *Heap) setFlag(addr uint64, f uint64) {
	*h.word(addr, 0) |= f
}

func (h *Heap) clearFlag(addr uint64, f uint64) {
	*h.word(addr, 0) &^= f
}

// mapOf returns the object's map pointer.
func (h *Heap) mapOf(addr uint64) Value {
	return Value(*h.word(addr, 1))
}

// setMap stores the object's map pointer, applying the write barrier when
// the object is in old space.
func (h *Heap) setMap(addr uint64, m Value) {
	*h.word(addr, 1) = uint64(m)
	h.barrier(addr, m)
}

// objectWords reports the total size of the object at addr in words,
// including the header.
func (h *Heap) objectWords(addr uint64) uint64 {
	switch h.kind(addr) {
	case kindMap:
		return headWords + 1 + 3*uint64(h.mapSlotCount(addr))
	case kindSlots, kindMethod, kindBlock:
		return headWords + uint64(h.aux(addr))
	case kindBytes:
		return headWords + (uint64(h.aux(addr))+7)/8
	case kindActivation:
		return headWords + 2 + uint64(h.aux(addr))
	}
	panic("prose: sizing object with header kind " + h.kind(addr).String())
}

// Assignable slot storage for slots, method, and block objects.

func (h *Heap) assignableCount(addr uint64) int {
	return int(h.aux(addr))
}

func (h *Heap) assignable(addr uint64, i int) Value {
	return Value(*h.word(addr, headWords+i))
}

// setAssignable stores into an assignable slot, applying the write barrier
// when the object is in old space.
func (h *Heap) setAssignable(addr uint64, i int, v Value) {
	*h.word(addr, headWords+i) = uint64(v)
	h.barrier(addr, v)
}

// Byte array objects store their contents packed little-endian.

func (h *Heap) bytesLen(addr uint64) int {
	return int(h.aux(addr))
}

// bytesAt returns a copy of a byte array object's contents. The copy stays
// valid across allocation, unlike any view into the heap.
func (h *Heap) bytesAt(addr uint64) []byte {
	n := h.bytesLen(addr)
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		w := *h.word(addr, headWords+i/8)
		b[i] = byte(w >> (uint(i%8) * 8))
	}
	return b
}

func (h *Heap) setBytes(addr uint64, b []byte) {
	for i, c := range b {
		w := h.word(addr, headWords+i/8)
		sh := uint(i%8) * 8
		*w = *w&^(0xff<<sh) | uint64(c)<<sh
	}
}

// bytesEqual compares a byte array object's contents to b without copying.
func (h *Heap) bytesEqual(addr uint64, b []byte) bool {
	if h.bytesLen(addr) != len(b) {
		return false
	}
	for i, c := range b {
		w := *h.word(addr, headWords+i/8)
		if byte(w>>(uint(i%8)*8)) != c {
			return false
		}
	}
	return true
}

// Activation objects reify a stack frame: receiver, activated method or
// block, then the argument and local bindings.

func (h *Heap) activationReceiver(addr uint64) Value {
	return Value(*h.word(addr, headWords))
}

func (h *Heap) activationFn(addr uint64) Value {
	return Value(*h.word(addr, headWords+1))
}

func (h *Heap) activationBinding(addr uint64, i int) Value {
	return Value(*h.word(addr, headWords+2+i))
}
