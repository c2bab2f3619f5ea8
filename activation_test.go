package prose

import "testing"

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	f, ref, ok := s.Push(frame{selector: "outer"})
	if !ok || f == nil {
		t.Fatal("push failed on an empty stack")
	}
	if s.Depth() != 1 {
		t.Fatalf("depth = %d", s.Depth())
	}
	if got := s.Deref(ref); got != f {
		t.Error("ref does not resolve to the pushed frame")
	}
	s.Pop()
	if s.Depth() != 0 {
		t.Fatalf("depth after pop = %d", s.Depth())
	}
	if s.Deref(ref) != nil {
		t.Error("ref survived the pop")
	}
}

// A reference to a popped frame must stay dead even after the slot is
// reused by a new activation.
func TestStaleRefAfterReuse(t *testing.T) {
	s := NewStack()
	_, old, _ := s.Push(frame{selector: "first"})
	s.Pop()
	_, fresh, _ := s.Push(frame{selector: "second"})
	if s.Deref(old) != nil {
		t.Error("stale ref resolved after slot reuse")
	}
	if f := s.Deref(fresh); f == nil || f.selector != "second" {
		t.Error("fresh ref does not resolve")
	}
}

func TestStackOverflowBound(t *testing.T) {
	s := NewStack()
	for i := 0; i < MaxActivations; i++ {
		if _, _, ok := s.Push(frame{}); !ok {
			t.Fatalf("push %d failed below the bound", i)
		}
	}
	if _, _, ok := s.Push(frame{}); ok {
		t.Error("push beyond the bound succeeded")
	}
	if s.Depth() != MaxActivations {
		t.Errorf("depth = %d", s.Depth())
	}
}

func TestZeroRefInvalid(t *testing.T) {
	s := NewStack()
	var r ActivationRef
	if r.Valid() {
		t.Error("zero ref claims validity")
	}
	if s.Deref(r) != nil {
		t.Error("zero ref resolved")
	}
}
