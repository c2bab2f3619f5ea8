package prose

import (
	"strings"

	"github.com/proselang/prose/ast"
)

// The evaluator is a recursive tree walker. Every step yields a Completion,
// and non-normal completions propagate immediately. Heap values held across
// an allocation are kept in tracked references or in activation frames,
// which the collector treats as roots; raw Values are only ever read out at
// the last moment.

func (vm *VM) self() Value {
	return vm.stack.Top().receiver
}

func (vm *VM) evalExpr(e ast.Expression) Completion {
	switch e := e.(type) {
	case *ast.Number:
		if e.IsFloat {
			return normal(TagFloat(e.Float))
		}
		return normal(TagInt(e.Int))
	case *ast.String:
		v, err := vm.newBytes([]byte(e.Value))
		if err != nil {
			return vm.raiseFatal(e.Range, err)
		}
		return normal(v)
	case *ast.Identifier:
		return vm.evalIdentifier(e)
	case *ast.ObjectLiteral:
		if e.IsMethod {
			fn, c := vm.newMethodObject(nil, e.Statements, e.Slots, vm.currentScript(), e.Range)
			if !c.IsNormal() {
				return c
			}
			v := fn.Value()
			vm.heap.Untrack(fn)
			return normal(v)
		}
		return vm.evalSlotsLiteral(e)
	case *ast.BlockLiteral:
		return vm.evalBlockLiteral(e)
	case *ast.Message:
		return vm.evalMessage(e)
	case *ast.Return:
		c := vm.evalExpr(e.Expr)
		if !c.IsNormal() {
			return c
		}
		return vm.nonLocalReturn(vm.stack.Top().nlr, c.Value())
	}
	panic("prose: unknown expression kind")
}

// evalStatements evaluates a statement list in order and yields the final
// statement's value, or nil for an empty list.
func (vm *VM) evalStatements(stmts []ast.Statement) Completion {
	if len(stmts) == 0 {
		return normal(vm.nilValue())
	}
	var c Completion
	for _, s := range stmts {
		c = vm.evalExpr(s.Expr)
		if !c.IsNormal() {
			return c
		}
	}
	return c
}

// currentScript is the defining script of literals being evaluated.
func (vm *VM) currentScript() *ast.Script {
	if f := vm.stack.Top(); f != nil {
		return f.script
	}
	return nil
}

// Identifiers.

func (vm *VM) evalIdentifier(e *ast.Identifier) Completion {
	if strings.HasPrefix(e.Name, "_") {
		return vm.callPrimitive(e.Name, vm.self(), nil, e.Range)
	}
	if v, ok := vm.resolveLocal(e.Name); ok {
		return vm.foundValue(v, nil, e.Name, e.Range)
	}
	hit, ok := vm.Lookup(vm.self(), e.Name, lookupRead)
	if !ok {
		return vm.Raisef(e.Range, "did not understand '%s'", e.Name)
	}
	return vm.foundValue(hit.Value, nil, e.Name, e.Range)
}

// resolveLocal reads an argument or local binding of the current activation
// by name.
func (vm *VM) resolveLocal(name string) (Value, bool) {
	f := vm.stack.Top()
	idx, ok := vm.localIndex(f, name, false)
	if !ok {
		return marker, false
	}
	return f.bindings[idx], true
}

// localIndex finds the binding index of a named argument or local slot on
// the current activation's method or block. With assign set, argument slots
// are excluded: they rebind only at activation time.
func (vm *VM) localIndex(f *frame, name string, assign bool) (int, bool) {
	if f == nil || !f.fn.IsRef() {
		return 0, false
	}
	h := vm.heap
	m := h.mapOf(f.fn.addr())
	if !m.IsRef() {
		return 0, false
	}
	ma := m.addr()
	hash := hashName(name)
	for i := 0; i < h.mapSlotCount(ma); i++ {
		sh, flags := h.slotInfo(ma, i)
		if sh != hash || flags&(slotMutable|slotArgument) == 0 {
			continue
		}
		if assign && flags&slotArgument != 0 {
			continue
		}
		if h.bytesEqual(h.slotName(ma, i).addr(), []byte(name)) {
			return int(h.slotValueWord(ma, i).Int()), true
		}
	}
	return 0, false
}

// foundValue finishes a hit: methods activate with the current self as the
// receiver and the given arguments; anything else is the result itself.
func (vm *VM) foundValue(v Value, args []Ref, sel string, rng ast.SourceRange) Completion {
	if v.IsRef() && vm.heap.kind(v.addr()) == kindMethod {
		recv := vm.heap.Track(vm.self())
		fn := vm.heap.Track(v)
		c := vm.activate(recv, fn, args, sel, rng)
		vm.heap.Untrack(fn)
		vm.heap.Untrack(recv)
		return c
	}
	return normal(v)
}

// Messages.

func (vm *VM) evalMessage(e *ast.Message) Completion {
	if e.Receiver == nil {
		return vm.evalImplicitSend(e)
	}
	c := vm.evalExpr(e.Receiver)
	if !c.IsNormal() {
		return c
	}
	recv := vm.heap.Track(c.Value())
	args, ac := vm.evalArgs(e.Arguments)
	if !ac.IsNormal() {
		vm.heap.Untrack(recv)
		return ac
	}
	res := vm.dispatch(recv, e.Selector, args, e.Range)
	vm.untrackAll(args)
	vm.heap.Untrack(recv)
	return res
}

// evalImplicitSend handles a send with no receiver expression: the selector
// resolves like an identifier, through the activation's bindings and then
// the current self, and an assignment selector that misses everywhere may
// write a local or a direct slot of self.
func (vm *VM) evalImplicitSend(e *ast.Message) Completion {
	sel := e.Selector
	args, ac := vm.evalArgs(e.Arguments)
	if !ac.IsNormal() {
		return ac
	}
	defer vm.untrackAll(args)
	if strings.HasPrefix(sel, "_") {
		return vm.callPrimitive(sel, vm.self(), vm.refValues(args), e.Range)
	}
	// A slot named by the full selector wins over assignment.
	if v, ok := vm.resolveLocal(sel); ok {
		return vm.foundValue(v, args, sel, e.Range)
	}
	if hit, ok := vm.Lookup(vm.self(), sel, lookupRead); ok {
		return vm.sendFound(hit, vm.self(), args, sel, e.Range)
	}
	if base, isAssign := assignBase(sel); isAssign && len(args) == 1 {
		f := vm.stack.Top()
		if idx, ok := vm.localIndex(f, base, true); ok {
			f.bindings[idx] = args[0].Value()
			return normal(f.bindings[idx])
		}
		if ahit, ok := vm.Lookup(vm.self(), base, lookupAssign); ok {
			v := args[0].Value()
			vm.heap.setAssignable(ahit.Owner, ahit.Index, v)
			return normal(v)
		}
	}
	return vm.Raisef(e.Range, "did not understand '%s'", sel)
}

// dispatch sends a selector with evaluated arguments to a receiver.
func (vm *VM) dispatch(recv Ref, sel string, args []Ref, rng ast.SourceRange) Completion {
	if strings.HasPrefix(sel, "_") {
		return vm.callPrimitive(sel, recv.Value(), vm.refValues(args), rng)
	}
	rv := recv.Value()
	if rv.IsRef() && vm.heap.kind(rv.addr()) == kindBlock && isValueSelector(sel) {
		ma := vm.heap.mapOf(rv.addr()).addr()
		if want := aritySelector(vm.heap.mapArgCount(ma)); sel != want {
			return vm.Raisef(rng, "block expects '%s', not '%s'", want, sel)
		}
		return vm.activateBlock(recv, args, sel, rng)
	}
	if hit, ok := vm.Lookup(rv, sel, lookupRead); ok {
		return vm.sendFound(hit, rv, args, sel, rng)
	}
	if base, isAssign := assignBase(sel); isAssign && len(args) == 1 {
		if ahit, ok := vm.Lookup(rv, base, lookupAssign); ok {
			v := args[0].Value()
			vm.heap.setAssignable(ahit.Owner, ahit.Index, v)
			return normal(v)
		}
	}
	return vm.Raisef(rng, "did not understand '%s'", sel)
}

// sendFound finishes a dispatch whose lookup hit: methods activate on the
// receiver, every other value is returned as is.
func (vm *VM) sendFound(hit lookupHit, recv Value, args []Ref, sel string, rng ast.SourceRange) Completion {
	if hit.Value.IsRef() && vm.heap.kind(hit.Value.addr()) == kindMethod {
		r := vm.heap.Track(recv)
		fn := vm.heap.Track(hit.Value)
		c := vm.activate(r, fn, args, sel, rng)
		vm.heap.Untrack(fn)
		vm.heap.Untrack(r)
		return c
	}
	return normal(hit.Value)
}

func (vm *VM) evalArgs(args []ast.Expression) ([]Ref, Completion) {
	refs := make([]Ref, 0, len(args))
	for _, a := range args {
		c := vm.evalExpr(a)
		if !c.IsNormal() {
			vm.untrackAll(refs)
			return nil, c
		}
		refs = append(refs, vm.heap.Track(c.Value()))
	}
	return refs, normal(marker)
}

func (vm *VM) untrackAll(refs []Ref) {
	for _, r := range refs {
		vm.heap.Untrack(r)
	}
}

// refValues reads tracked references out into raw values for a primitive
// call. Nothing may allocate between this and the call.
func (vm *VM) refValues(refs []Ref) []Value {
	vs := make([]Value, len(refs))
	for i, r := range refs {
		vs[i] = r.Value()
	}
	return vs
}

// Activation.

// activate pushes a fresh activation of a method bound to recv, copies the
// arguments into the argument bindings, runs the statements, and absorbs a
// non-local return that targets this activation.
func (vm *VM) activate(recv, fn Ref, args []Ref, sel string, rng ast.SourceRange) Completion {
	h := vm.heap
	fv := fn.Value()
	ma := h.mapOf(fv.addr()).addr()
	ext := h.extra(h.mapExtraIndex(ma))
	argc := h.mapArgCount(ma)
	if len(args) > argc {
		return vm.Raisef(rng, "'%s' takes %d arguments, got %d", sel, argc, len(args))
	}
	bindings := make([]Value, h.assignableCount(fv.addr()))
	for i := range bindings {
		bindings[i] = h.assignable(fv.addr(), i)
	}
	for i, a := range args {
		bindings[i] = a.Value()
	}
	f, ref, ok := vm.stack.Push(frame{
		fn:       fv,
		receiver: recv.Value(),
		bindings: bindings,
		selector: sel,
		script:   ext.script,
		call:     rng,
	})
	if !ok {
		return vm.Raisef(rng, "stack overflow: more than %d activations", MaxActivations)
	}
	f.nlr = ref
	c := vm.evalStatements(ext.stmts)
	vm.stack.Pop()
	if c.isReturn() && c.target == ref {
		v := c.nlr.Value()
		h.Untrack(c.nlr)
		return normal(v)
	}
	return c
}

// activateBlock pushes an activation of a block. The receiver is the
// captured home activation's receiver, and a non-local return inside the
// block escapes past this activation toward the block's target.
func (vm *VM) activateBlock(blk Ref, args []Ref, sel string, rng ast.SourceRange) Completion {
	h := vm.heap
	bv := blk.Value()
	ma := h.mapOf(bv.addr()).addr()
	ext := h.extra(h.mapExtraIndex(ma))
	parent := vm.stack.Deref(ext.parent)
	if parent == nil || vm.stack.Deref(ext.nlr) == nil {
		return vm.Raisef(rng, "block activated after its home method returned")
	}
	argc := h.mapArgCount(ma)
	if len(args) != argc {
		return vm.Raisef(rng, "block takes %d arguments, got %d", argc, len(args))
	}
	bindings := make([]Value, h.assignableCount(bv.addr()))
	for i := range bindings {
		bindings[i] = h.assignable(bv.addr(), i)
	}
	for i, a := range args {
		bindings[i] = a.Value()
	}
	f, ref, ok := vm.stack.Push(frame{
		fn:       bv,
		receiver: parent.receiver,
		bindings: bindings,
		selector: sel,
		script:   ext.script,
		call:     rng,
	})
	if !ok {
		return vm.Raisef(rng, "stack overflow: more than %d activations", MaxActivations)
	}
	f.nlr = ext.nlr
	c := vm.evalStatements(ext.stmts)
	vm.stack.Pop()
	if c.isReturn() && c.target == ref {
		v := c.nlr.Value()
		h.Untrack(c.nlr)
		return normal(v)
	}
	return c
}

// Literals.

// evalSlotsLiteral constructs a slots object: slot initializers evaluate in
// declaration order, then the map, then the object.
func (vm *VM) evalSlotsLiteral(e *ast.ObjectLiteral) Completion {
	specs, init, c := vm.evalSlotSpecs(e.Slots, 0)
	defer vm.releaseSpecs(specs, init)
	if !c.IsNormal() {
		return c
	}
	m, err := vm.buildMap(mkSlots, specs, len(init), 0, -1)
	if err != nil {
		return vm.raiseFatal(e.Range, err)
	}
	defer vm.heap.Untrack(m)
	v, err := vm.buildObject(kindSlots, m, init)
	if err != nil {
		return vm.raiseFatal(e.Range, err)
	}
	return normal(v)
}

// newMethodObject constructs a method object: argument slots first, then
// the literal's own slots, with mutable slots becoming locals whose
// initial values are evaluated now and copied at each activation.
func (vm *VM) newMethodObject(argNames []string, stmts []ast.Statement, slots []ast.Slot, script *ast.Script, rng ast.SourceRange) (Ref, Completion) {
	return vm.newCodeObject(kindMethod, mkMethod, argNames, stmts, slots, script, rng, ActivationRef{}, ActivationRef{})
}

// evalBlockLiteral constructs a block object capturing the current top
// activation as its parent and that activation's non-local return target as
// its own.
func (vm *VM) evalBlockLiteral(e *ast.BlockLiteral) Completion {
	var argNames []string
	var rest []ast.Slot
	for _, s := range e.Slots {
		if s.IsArgument {
			argNames = append(argNames, s.Name)
		} else {
			rest = append(rest, s)
		}
	}
	top := vm.stack.Top()
	parent := vm.stack.ref(vm.stack.Depth() - 1)
	fn, c := vm.newCodeObject(kindBlock, mkBlock, argNames, e.Statements, rest, vm.currentScript(), e.Range, parent, top.nlr)
	if !c.IsNormal() {
		return c
	}
	v := fn.Value()
	vm.heap.Untrack(fn)
	return normal(v)
}

func (vm *VM) newCodeObject(k kind, mk mapKind, argNames []string, stmts []ast.Statement, slots []ast.Slot, script *ast.Script, rng ast.SourceRange, parent, nlr ActivationRef) (Ref, Completion) {
	specs := make([]slotSpec, 0, len(argNames)+len(slots))
	init := make([]Ref, len(argNames))
	for i, a := range argNames {
		specs = append(specs, slotSpec{name: a, flags: slotArgument | slotMutable, index: i})
	}
	more, minit, c := vm.evalSlotSpecs(slots, len(argNames))
	specs = append(specs, more...)
	init = append(init, minit...)
	if !c.IsNormal() {
		vm.releaseSpecs(specs, init)
		return Ref{}, c
	}
	extra := vm.heap.newExtra(mapExtra{stmts: stmts, script: script, parent: parent, nlr: nlr})
	m, err := vm.buildMap(mk, specs, len(init), len(argNames), extra)
	if err != nil {
		vm.heap.releaseExtra(extra)
		vm.releaseSpecs(specs, init)
		return Ref{}, vm.raiseFatal(rng, err)
	}
	v, err := vm.buildObject(k, m, init)
	vm.heap.Untrack(m)
	vm.releaseSpecs(specs, init)
	if err != nil {
		return Ref{}, vm.raiseFatal(rng, err)
	}
	return vm.heap.Track(v), normal(marker)
}

// evalSlotSpecs evaluates slot initializers in declaration order. Mutable
// slots get assignable indices starting at base; their initial values are
// returned in init. Argument slots (block parameters) are not expected
// here.
func (vm *VM) evalSlotSpecs(slots []ast.Slot, base int) ([]slotSpec, []Ref, Completion) {
	var specs []slotSpec
	var init []Ref
	idx := base
	for _, s := range slots {
		var flags uint8
		if s.IsParent {
			flags |= slotParent
		}
		c := vm.evalSlotValue(&s)
		if !c.IsNormal() {
			return specs, init, c
		}
		r := vm.heap.Track(c.Value())
		if s.IsMutable {
			flags |= slotMutable
			specs = append(specs, slotSpec{name: s.Name, flags: flags, index: idx})
			init = append(init, r)
			idx++
		} else {
			specs = append(specs, slotSpec{name: s.Name, flags: flags, value: r})
		}
	}
	return specs, init, normal(marker)
}

// evalSlotValue evaluates one slot initializer. A slot with arguments, or
// one whose value is a method-form literal, yields a method object.
func (vm *VM) evalSlotValue(s *ast.Slot) Completion {
	if lit, ok := s.Value.(*ast.ObjectLiteral); ok && (len(s.Arguments) > 0 || lit.IsMethod) {
		fn, c := vm.newMethodObject(s.Arguments, lit.Statements, lit.Slots, vm.currentScript(), lit.Range)
		if !c.IsNormal() {
			return c
		}
		v := fn.Value()
		vm.heap.Untrack(fn)
		return normal(v)
	}
	if s.Value == nil {
		return normal(vm.nilValue())
	}
	return vm.evalExpr(s.Value)
}

// releaseSpecs untracks every reference held by a spec list.
func (vm *VM) releaseSpecs(specs []slotSpec, init []Ref) {
	for _, s := range specs {
		if s.value != (Ref{}) {
			vm.heap.Untrack(s.value)
		}
	}
	for _, r := range init {
		if r != (Ref{}) {
			vm.heap.Untrack(r)
		}
	}
}

// Selector helpers.

// assignBase strips the trailing colon of an assignment-form selector: a
// single keyword part with no interior colons.
func assignBase(sel string) (string, bool) {
	if len(sel) < 2 || !strings.HasSuffix(sel, ":") {
		return "", false
	}
	base := sel[:len(sel)-1]
	if strings.Contains(base, ":") {
		return "", false
	}
	return base, true
}

// aritySelector is the selector that activates a block of n arguments:
// value, value:, value:With:, value:With:With:, and so on.
func aritySelector(n int) string {
	if n == 0 {
		return "value"
	}
	var b strings.Builder
	b.WriteString("value:")
	for i := 1; i < n; i++ {
		b.WriteString("With:")
	}
	return b.String()
}

// isValueSelector reports whether sel belongs to the block activation
// family.
func isValueSelector(sel string) bool {
	if sel == "value" {
		return true
	}
	if !strings.HasPrefix(sel, "value:") {
		return false
	}
	rest := sel[len("value:"):]
	for len(rest) > 0 {
		if !strings.HasPrefix(rest, "With:") {
			return false
		}
		rest = rest[len("With:"):]
	}
	return true
}

// A Primitive is a builtin function reached through a selector beginning
// with an underscore. Primitives may allocate; any receiver or argument
// value they hold across an allocation must be tracked first.
type Primitive func(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion

func (vm *VM) callPrimitive(sel string, recv Value, args []Value, rng ast.SourceRange) Completion {
	p, ok := vm.prims[sel]
	if !ok {
		panic("prose: unknown primitive " + sel)
	}
	return p(vm, recv, args, rng)
}
