package prose

import "testing"

// buildSlotsObject is a test helper assembling a slots object from constant
// slot values.
func buildSlotsObject(t *testing.T, vm *VM, slots []slotSpec, init []Ref) Ref {
	t.Helper()
	m, err := vm.buildMap(mkSlots, slots, len(init), 0, -1)
	if err != nil {
		t.Fatalf("buildMap: %v", err)
	}
	defer vm.heap.Untrack(m)
	v, err := vm.buildObject(kindSlots, m, init)
	if err != nil {
		t.Fatalf("buildObject: %v", err)
	}
	return vm.heap.Track(v)
}

func constSpec(vm *VM, name string, v Value) slotSpec {
	return slotSpec{name: name, value: vm.heap.Track(v)}
}

func TestLookupDirectSlot(t *testing.T) {
	vm := newTestVM(t)
	obj := buildSlotsObject(t, vm, []slotSpec{
		constSpec(vm, "x", TagInt(3)),
		constSpec(vm, "y", TagInt(4)),
	}, nil)
	hit, ok := vm.Lookup(obj.Value(), "x", lookupRead)
	if !ok || hit.Value != TagInt(3) {
		t.Errorf("x: got %v, %v", hit.Value, ok)
	}
	hit, ok = vm.Lookup(obj.Value(), "y", lookupRead)
	if !ok || hit.Value != TagInt(4) {
		t.Errorf("y: got %v, %v", hit.Value, ok)
	}
	if _, ok := vm.Lookup(obj.Value(), "z", lookupRead); ok {
		t.Error("z resolved on an object without it")
	}
}

// Parent slots are searched in declaration order and the first match wins.
func TestLookupParentOrder(t *testing.T) {
	vm := newTestVM(t)
	first := buildSlotsObject(t, vm, []slotSpec{constSpec(vm, "which", TagInt(1))}, nil)
	second := buildSlotsObject(t, vm, []slotSpec{
		constSpec(vm, "which", TagInt(2)),
		constSpec(vm, "only", TagInt(22)),
	}, nil)
	child := buildSlotsObject(t, vm, []slotSpec{
		{name: "a", flags: slotParent, value: vm.heap.Track(first.Value())},
		{name: "b", flags: slotParent, value: vm.heap.Track(second.Value())},
	}, nil)
	hit, ok := vm.Lookup(child.Value(), "which", lookupRead)
	if !ok || hit.Value != TagInt(1) {
		t.Errorf("ambiguous lookup did not take the first parent: %v, %v", hit.Value, ok)
	}
	hit, ok = vm.Lookup(child.Value(), "only", lookupRead)
	if !ok || hit.Value != TagInt(22) {
		t.Errorf("second parent unreachable: %v, %v", hit.Value, ok)
	}
}

// A cycle in the parent graph is a miss past the cycle, not a hang.
func TestLookupParentCycle(t *testing.T) {
	vm := newTestVM(t)
	hole := vm.heap.Track(TagInt(0))
	a := buildSlotsObject(t, vm, []slotSpec{{name: "up", flags: slotParent, value: hole}}, nil)
	b := buildSlotsObject(t, vm, []slotSpec{{name: "up", flags: slotParent, value: vm.heap.Track(a.Value())}}, nil)
	// Tie a's parent back to b.
	am := vm.heap.mapOf(a.Value().addr())
	vm.patchSlotValue(am, 0, b.Value())
	if _, ok := vm.Lookup(a.Value(), "missing", lookupRead); ok {
		t.Error("lookup resolved a selector that exists nowhere in the cycle")
	}
}

func TestLookupNumberTraits(t *testing.T) {
	vm := newTestVM(t)
	hit, ok := vm.Lookup(TagInt(5), "+", lookupRead)
	if !ok || !hit.Value.IsRef() || vm.heap.kind(hit.Value.addr()) != kindMethod {
		t.Errorf("+ on an integer did not resolve to a traits method")
	}
	hit, ok = vm.Lookup(TagInt(5), ReservedParent, lookupRead)
	if !ok || hit.Value != vm.intTraits.Value() {
		t.Errorf("parent on an integer did not yield the traits object")
	}
	hit, ok = vm.Lookup(TagFloat(1.5), ReservedParent, lookupRead)
	if !ok || hit.Value != vm.floatTraits.Value() {
		t.Errorf("parent on a float did not yield the traits object")
	}
}

// Assign-intent lookup resolves only on the direct receiver.
func TestAssignIntentDirectOnly(t *testing.T) {
	vm := newTestVM(t)
	parent := buildSlotsObject(t, vm, []slotSpec{{name: "cell", flags: slotMutable, index: 0}}, []Ref{{}})
	child := buildSlotsObject(t, vm, []slotSpec{
		{name: "up", flags: slotParent, value: vm.heap.Track(parent.Value())},
	}, nil)
	if _, ok := vm.Lookup(child.Value(), "cell", lookupAssign); ok {
		t.Error("assign lookup descended into a parent")
	}
	if _, ok := vm.Lookup(child.Value(), "cell", lookupRead); !ok {
		t.Error("read lookup did not descend into the parent")
	}
	hit, ok := vm.Lookup(parent.Value(), "cell", lookupAssign)
	if !ok || hit.Index != 0 {
		t.Errorf("assign lookup missed the direct mutable slot")
	}
}

// Lookup on identical receiver shape and selector yields identical results
// regardless of collector activity.
func TestLookupDeterministicAcrossGC(t *testing.T) {
	vm := newTestVM(t)
	obj := buildSlotsObject(t, vm, []slotSpec{constSpec(vm, "k", TagInt(9))}, nil)
	before, ok := vm.Lookup(obj.Value(), "k", lookupRead)
	if !ok {
		t.Fatal("initial lookup missed")
	}
	for i := 0; i < 3; i++ {
		vm.heap.Scavenge()
	}
	after, ok := vm.Lookup(obj.Value(), "k", lookupRead)
	if !ok || after.Value != before.Value {
		t.Errorf("lookup changed across GC: %v then %v", before.Value, after.Value)
	}
}

// Slot declaration order is preserved in the map.
func TestSlotOrderPreserved(t *testing.T) {
	vm := newTestVM(t)
	names := []string{"alpha", "beta", "gamma", "delta"}
	var specs []slotSpec
	for i, n := range names {
		specs = append(specs, constSpec(vm, n, TagInt(int64(i))))
	}
	obj := buildSlotsObject(t, vm, specs, nil)
	m := vm.heap.mapOf(obj.Value().addr()).addr()
	if got := vm.heap.mapSlotCount(m); got != len(names) {
		t.Fatalf("slot count = %d", got)
	}
	for i, n := range names {
		if !vm.heap.bytesEqual(vm.heap.slotName(m, i).addr(), []byte(n)) {
			t.Errorf("slot %d is not %q", i, n)
		}
	}
}

// An activation object delegates to its bindings and then to its receiver.
func TestActivationObjectTransparent(t *testing.T) {
	vm := newTestVM(t)
	recv := buildSlotsObject(t, vm, []slotSpec{constSpec(vm, "fromReceiver", TagInt(77))}, nil)
	fn, c := vm.newMethodObject([]string{"arg"}, nil, nil, nil, testRange())
	if !c.IsNormal() {
		t.Fatalf("newMethodObject: %v", c.Err())
	}
	defer vm.heap.Untrack(fn)
	h := vm.heap
	if err := h.EnsureSpace(headWords + 3); err != nil {
		t.Fatalf("EnsureSpace: %v", err)
	}
	addr := h.Allocate(kindActivation, 0, 1, headWords+3)
	*h.word(addr, 1) = uint64(vm.emptyMap.Value())
	*h.word(addr, headWords) = uint64(recv.Value())
	*h.word(addr, headWords+1) = uint64(fn.Value())
	*h.word(addr, headWords+2) = uint64(TagInt(5))
	act := taggedRef(addr)
	hit, ok := vm.Lookup(act, "arg", lookupRead)
	if !ok || hit.Value != TagInt(5) {
		t.Errorf("binding not visible through the activation object")
	}
	hit, ok = vm.Lookup(act, "fromReceiver", lookupRead)
	if !ok || hit.Value != TagInt(77) {
		t.Errorf("receiver slot not visible through the activation object")
	}
}
