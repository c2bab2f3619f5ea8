package prose

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/proselang/prose/ast"
)

// A Heap owns every Prose object. It is a generational moving collector:
// objects are born in eden, survive minor collections by copying between two
// survivor semispaces, and are promoted into a growable old region once they
// reach the promotion age or the survivor space fills. Old-to-young
// references are tracked in a remembered set fed by the write barrier.
//
// Addresses are byte offsets into a single word slab, so they stay valid
// when the slab's backing array is reallocated to grow the old region, but
// any raw address is invalidated by a collection. External code holds
// objects through tracked references (Track/Untrack), which the collector
// updates in place; everything else must be reachable from the activation
// stack or from another heap object.
type Heap struct {
	mem []uint64

	// Region bounds, in words. Eden and the two survivor spaces sit at the
	// bottom of the slab; the old region begins at youngLimit and extends to
	// the end of the slab, growing by extending the slab.
	edenBase, edenEnd, edenNext uint64
	survWords                   uint64
	survBase                    [2]uint64
	survNext                    uint64
	from                        int
	youngLimit                  uint64
	oldBase, oldNext            uint64

	// remembered holds addresses of old objects that may reference young
	// ones. flagRemembered on the object keeps entries unique.
	remembered []uint64

	// Tracked references. Free table slots hold the marker sentinel.
	refs    []Value
	refFree []int

	// Extra records owned by method and block maps: statements, defining
	// script, and the block's weak activation references. These live outside
	// the word slab, so maps carrying one are registered in finalizable and
	// their record is released when the map dies.
	exts        []mapExtra
	extFree     []int
	finalizable []uint64

	// stack is scanned for roots: every frame's receiver, activated object,
	// and bindings.
	stack *Stack

	promoteAge int

	log   commonlog.Logger
	gcLog bool

	scavenges  uint64
	promotions uint64
	survived   uint64
}

// mapExtra is the heap-external state owned by a method or block map.
type mapExtra struct {
	stmts  []ast.Statement
	script *ast.Script
	parent ActivationRef
	nlr    ActivationRef
	used   bool
}

// An AllocationError reports that the heap could not satisfy a request even
// after collecting. It aborts the running script.
type AllocationError struct {
	// Words is the size of the failed request.
	Words uint64
}

func (e AllocationError) Error() string {
	return fmt.Sprintf("heap exhausted allocating %d bytes", e.Words*8)
}

// NewHeap creates a heap with the region sizes from cfg.
func NewHeap(cfg Config) *Heap {
	eden := uint64(cfg.EdenBytes) / 8
	surv := uint64(cfg.SurvivorBytes) / 8
	old := uint64(cfg.OldBytes) / 8
	h := &Heap{
		mem:        make([]uint64, eden+2*surv+old),
		edenBase:   0,
		edenEnd:    eden,
		edenNext:   0,
		survWords:  surv,
		survBase:   [2]uint64{eden, eden + surv},
		youngLimit: eden + 2*surv,
		oldBase:    eden + 2*surv,
		oldNext:    eden + 2*surv,
		promoteAge: cfg.PromoteAge,
		log:        commonlog.GetLogger("prose.heap"),
		gcLog:      cfg.GCLog,
	}
	return h
}

// Close reports tracked references leaked by callers that did not untrack on
// every exit path. It returns the number of leaks.
func (h *Heap) Close() int {
	n := 0
	for _, v := range h.refs {
		if v != marker {
			n++
		}
	}
	if n > 0 {
		h.log.Errorf("%d tracked references leaked at shutdown", n)
	}
	return n
}

func (h *Heap) isYoung(addr uint64) bool { return addr/8 < h.youngLimit }
func (h *Heap) isOld(addr uint64) bool   { return addr/8 >= h.oldBase }

// inFromSpace reports whether addr is in eden or the survivor space being
// evacuated by the current scavenge.
func (h *Heap) inFromSpace(addr uint64) bool {
	w := addr / 8
	if w < h.edenEnd {
		return true
	}
	fb := h.survBase[h.from]
	return w >= fb && w < fb+h.survWords
}

// EnsureSpace guarantees that the next words of allocation fit in eden
// without a collection, scavenging if needed. Callers performing several
// allocations in sequence must call it once with the combined size and
// refresh any raw addresses afterwards.
func (h *Heap) EnsureSpace(words uint64) error {
	if h.edenNext+words <= h.edenEnd {
		return nil
	}
	h.Scavenge()
	if h.edenNext+words > h.edenEnd {
		return AllocationError{Words: words}
	}
	return nil
}

// Allocate bumps eden and returns the address of a new object with the given
// header. It never collects and never moves existing objects; the caller
// must have guaranteed space with EnsureSpace. The object's map pointer and
// payload are zeroed.
func (h *Heap) Allocate(k kind, flags uint64, aux uint32, words uint64) uint64 {
	if h.edenNext+words > h.edenEnd {
		panic("prose: allocation without ensured space")
	}
	w := h.edenNext
	h.edenNext += words
	clear(h.mem[w : w+words])
	addr := w * 8
	*h.word(addr, 0) = packHeader(k, flags, aux)
	return addr
}

// Tracked references.

// A Ref is an opaque handle to a heap value that stays valid across
// collections. Acquire with Track; release with Untrack on every exit path.
type Ref struct {
	h *Heap
	i int
}

// Track registers v with the collector and returns a handle for it.
func (h *Heap) Track(v Value) Ref {
	if n := len(h.refFree); n > 0 {
		i := h.refFree[n-1]
		h.refFree = h.refFree[:n-1]
		h.refs[i] = v
		return Ref{h, i}
	}
	h.refs = append(h.refs, v)
	return Ref{h, len(h.refs) - 1}
}

// Value returns the current location of the tracked value.
func (r Ref) Value() Value {
	return r.h.refs[r.i]
}

// Set replaces the tracked value.
func (r Ref) Set(v Value) {
	r.h.refs[r.i] = v
}

// Untrack releases a handle. Untracking is mandatory on all exit paths;
// leaks are reported by Close.
func (h *Heap) Untrack(r Ref) {
	h.refs[r.i] = marker
	h.refFree = append(h.refFree, r.i)
}

// LiveRefs counts tracked references currently held.
func (h *Heap) LiveRefs() int {
	n := 0
	for _, v := range h.refs {
		if v != marker {
			n++
		}
	}
	return n
}

// Map extras.

func (h *Heap) newExtra(x mapExtra) int {
	x.used = true
	if n := len(h.extFree); n > 0 {
		i := h.extFree[n-1]
		h.extFree = h.extFree[:n-1]
		h.exts[i] = x
		return i
	}
	h.exts = append(h.exts, x)
	return len(h.exts) - 1
}

func (h *Heap) extra(i int) *mapExtra {
	return &h.exts[i]
}

func (h *Heap) releaseExtra(i int) {
	if !h.exts[i].used {
		panic("prose: map extra released twice")
	}
	h.exts[i] = mapExtra{}
	h.extFree = append(h.extFree, i)
}

// registerFinalizable records a map whose extra record must be released when
// the map dies.
func (h *Heap) registerFinalizable(addr uint64) {
	h.setFlag(addr, flagFinalize)
	h.finalizable = append(h.finalizable, addr)
}

// Write barrier.

// barrier records addr in the remembered set when it is an old object
// receiving a young reference.
func (h *Heap) barrier(addr uint64, v Value) {
	if !v.IsRef() || !h.isOld(addr) || !h.isYoung(v.addr()) {
		return
	}
	if h.flag(addr, flagRemembered) {
		return
	}
	h.setFlag(addr, flagRemembered)
	h.remembered = append(h.remembered, addr)
}

// Scavenge runs a minor collection: tracked references, the activation
// stack, and the remembered set are the roots; live young objects move to
// the survivor to-space or, past the promotion age, into old space, leaving
// forwarding headers behind.
func (h *Heap) Scavenge() {
	h.scavenges++
	to := 1 - h.from
	h.survNext = h.survBase[to]
	survScan := h.survBase[to]
	oldScan := h.oldNext

	for i, v := range h.refs {
		if v != marker {
			h.refs[i] = h.forward(v)
		}
	}
	if h.stack != nil {
		for i := range h.stack.frames {
			f := &h.stack.frames[i]
			f.receiver = h.forward(f.receiver)
			f.fn = h.forward(f.fn)
			for j, b := range f.bindings {
				f.bindings[j] = h.forward(b)
			}
		}
	}
	rs := h.remembered
	h.remembered = h.remembered[:0]
	for _, addr := range rs {
		h.clearFlag(addr, flagRemembered)
		if h.scanObject(addr) {
			h.setFlag(addr, flagRemembered)
			h.remembered = append(h.remembered, addr)
		}
	}

	for survScan < h.survNext || oldScan < h.oldNext {
		for survScan < h.survNext {
			addr := survScan * 8
			h.scanObject(addr)
			survScan += h.objectWords(addr)
		}
		for oldScan < h.oldNext {
			addr := oldScan * 8
			if h.scanObject(addr) && !h.flag(addr, flagRemembered) {
				h.setFlag(addr, flagRemembered)
				h.remembered = append(h.remembered, addr)
			}
			oldScan += h.objectWords(addr)
		}
	}

	h.sweepFinalizable()
	h.survived = h.survNext - h.survBase[to]
	h.from = to
	h.edenNext = h.edenBase
	if h.gcLog {
		h.log.Debugf("scavenge %d: %d words survived, %d promotions, %d remembered",
			h.scavenges, h.survived, h.promotions, len(h.remembered))
	}
}

// forward copies a from-space object to to-space if it has not moved yet and
// returns its current reference. Non-reference values and objects outside
// the from-space pass through.
func (h *Heap) forward(v Value) Value {
	if !v.IsRef() {
		return v
	}
	addr := v.addr()
	if !h.inFromSpace(addr) {
		return v
	}
	if h.kind(addr) == kindForward {
		return Value(*h.word(addr, 1))
	}
	size := h.objectWords(addr)
	age := h.age(addr) + 1
	var dst uint64
	if age >= h.promoteAge || h.survNext+size > h.survBase[1-h.from]+h.survWords {
		h.growOld(size)
		dst = h.oldNext
		h.oldNext += size
		h.promotions++
	} else {
		dst = h.survNext
		h.survNext += size
	}
	copy(h.mem[dst:dst+size], h.mem[addr/8:addr/8+size])
	nv := taggedRef(dst * 8)
	h.setAge(dst*8, age)
	h.clearFlag(dst*8, flagRemembered)
	*h.word(addr, 0) = packHeader(kindForward, 0, 0)
	*h.word(addr, 1) = uint64(nv)
	return nv
}

// growOld extends the slab so the old region can hold size more words.
// Addresses are offsets, so reallocation does not move objects.
func (h *Heap) growOld(size uint64) {
	need := h.oldNext + size
	if need <= uint64(len(h.mem)) {
		return
	}
	grow := uint64(len(h.mem)) / 4
	if grow < size {
		grow = size
	}
	h.mem = append(h.mem, make([]uint64, grow)...)
}

// scanObject forwards every reference field of the object at addr and
// reports whether any field still refers into the young generation.
func (h *Heap) scanObject(addr uint64) bool {
	young := false
	fix := func(i int) {
		nv := h.forward(Value(*h.word(addr, i)))
		// forward may promote and grow the slab, reallocating mem; the
		// field pointer must be re-fetched after it returns.
		*h.word(addr, i) = uint64(nv)
		if nv.IsRef() && h.isYoung(nv.addr()) {
			young = true
		}
	}
	fix(1)
	switch h.kind(addr) {
	case kindSlots, kindMethod, kindBlock:
		for i := 0; i < h.assignableCount(addr); i++ {
			fix(headWords + i)
		}
	case kindMap:
		for i := 0; i < h.mapSlotCount(addr); i++ {
			fix(mapDescBase + mapDescWords*i)
			fix(mapDescBase + mapDescWords*i + 2)
		}
	case kindActivation:
		for i := 0; i < int(h.aux(addr))+2; i++ {
			fix(headWords + i)
		}
	case kindBytes:
		// no reference fields
	default:
		panic("prose: scanning object with header kind " + h.kind(addr).String())
	}
	return young
}

// sweepFinalizable visits registered maps after a scavenge. Maps that moved
// are re-registered at their new address; maps that died release their extra
// record exactly once.
func (h *Heap) sweepFinalizable() {
	kept := h.finalizable[:0]
	for _, addr := range h.finalizable {
		if !h.inFromSpace(addr) {
			kept = append(kept, addr)
			continue
		}
		if h.kind(addr) == kindForward {
			kept = append(kept, Value(*h.word(addr, 1)).addr())
			continue
		}
		// The dead map's words are intact apart from the forwarding header,
		// so the extra index is still readable.
		if i := h.mapExtraIndex(addr); i >= 0 {
			h.releaseExtra(i)
		}
	}
	h.finalizable = kept
}

// HeapStats is a point-in-time summary of collector activity.
type HeapStats struct {
	Scavenges  uint64
	Promotions uint64
	EdenUsed   uint64
	OldUsed    uint64
	Survived   uint64
	LiveRefs   int
}

// Stats reports collector activity.
func (h *Heap) Stats() HeapStats {
	return HeapStats{
		Scavenges:  h.scavenges,
		Promotions: h.promotions,
		EdenUsed:   (h.edenNext - h.edenBase) * 8,
		OldUsed:    (h.oldNext - h.oldBase) * 8,
		Survived:   h.survived * 8,
		LiveRefs:   h.LiveRefs(),
	}
}
