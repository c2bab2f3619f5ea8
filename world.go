package prose

import (
	"fmt"
	"strings"

	"github.com/proselang/prose/parse"
)

// World construction happens in two phases. prepareWorld hand-builds the
// objects the evaluator cannot run without: the map-of-maps, the lobby, the
// nil/true/false singletons, and the integer, float, and string traits.
// finishWorld then runs a bootstrap script that installs the traits methods,
// each a small method sending the corresponding primitive, so that
// user-visible arithmetic and comparison flow through ordinary dispatch.

func (vm *VM) prepareWorld() error {
	h := vm.heap

	// The map-of-maps describes itself.
	if err := h.EnsureSpace(mapWords(0)); err != nil {
		return err
	}
	mm := h.Allocate(kindMap, 0, 0, mapWords(0))
	*h.word(mm, 1) = uint64(taggedRef(mm))
	*h.word(mm, mapMetaWord) = packMapMeta(mkMaps, 0, 0, 0, -1)
	vm.mapsMap = h.Track(taggedRef(mm))

	var err error
	if vm.emptyMap, err = vm.buildMap(mkSlots, nil, 0, 0, -1); err != nil {
		return err
	}

	// The singleton map gives nil, true, false, and the traits objects one
	// parent slot leading to the lobby, patched in once the lobby exists.
	hole := h.Track(TagInt(0))
	defer h.Untrack(hole)
	singleton := []slotSpec{{name: "lobby", flags: slotParent, value: hole}}
	if vm.singletonMap, err = vm.buildMap(mkSlots, singleton, 0, 0, -1); err != nil {
		return err
	}

	for _, r := range []*Ref{&vm.intTraits, &vm.floatTraits, &vm.stringTraits, &vm.nilRef, &vm.trueRef, &vm.falseRef} {
		v, err := vm.buildObject(kindSlots, vm.singletonMap, nil)
		if err != nil {
			return err
		}
		h.setFlag(v.addr(), flagGlobal)
		*r = h.Track(v)
	}

	// Byte arrays share one map whose parent slot is the string traits.
	// Symbols interned before this map existed are patched to use it.
	bytesSlots := []slotSpec{{name: ReservedParent, flags: slotParent, value: vm.stringTraits}}
	if vm.bytesMap, err = vm.buildMap(mkBytes, bytesSlots, 0, 0, -1); err != nil {
		return err
	}
	for _, r := range vm.symbols {
		v := r.Value()
		if !h.mapOf(v.addr()).IsRef() {
			h.setMap(v.addr(), vm.bytesMap.Value())
		}
	}

	lobbySlots := []slotSpec{
		{name: "lobby", value: hole},
		{name: "nil", value: vm.nilRef},
		{name: "true", value: vm.trueRef},
		{name: "false", value: vm.falseRef},
		{name: "traitsInteger", value: vm.intTraits},
		{name: "traitsFloat", value: vm.floatTraits},
		{name: "traitsString", value: vm.stringTraits},
	}
	lobbyMap, err := vm.buildMap(mkSlots, lobbySlots, 0, 0, -1)
	if err != nil {
		return err
	}
	defer h.Untrack(lobbyMap)
	lv, err := vm.buildObject(kindSlots, lobbyMap, nil)
	if err != nil {
		return err
	}
	h.setFlag(lv.addr(), flagGlobal)
	vm.lobby = h.Track(lv)

	// Tie the cycles: the lobby's self slot and the singletons' parent.
	vm.patchSlotValue(lobbyMap.Value(), 0, vm.lobby.Value())
	vm.patchSlotValue(h.mapOf(vm.nilRef.Value().addr()), 0, vm.lobby.Value())
	return nil
}

// bootstrapSource installs the traits methods and the lobby conveniences.
// Most method bodies are a single send of the underlying primitive; the
// boolean methods that need none answer nil, true, or false directly.
const bootstrapSource = `
traitsInteger _AddSlots: (|
	+ x = ( _IntAdd: x ).
	- x = ( _IntSub: x ).
	* x = ( _IntMul: x ).
	/ x = ( _IntDiv: x ).
	% x = ( _IntMod: x ).
	< x = ( _IntLt: x ).
	> x = ( _IntGt: x ).
	<= x = ( _IntLe: x ).
	>= x = ( _IntGe: x ).
	== x = ( _IntEq: x ).
	asFloat = ( _IntAsFloat ).
	timesRepeat: b = ( _IntTimesRepeat: b ).
	print = ( _Print ).
	printLine = ( _PrintLine )
|).
traitsFloat _AddSlots: (|
	+ x = ( _FloatAdd: x ).
	- x = ( _FloatSub: x ).
	* x = ( _FloatMul: x ).
	/ x = ( _FloatDiv: x ).
	< x = ( _FloatLt: x ).
	> x = ( _FloatGt: x ).
	== x = ( _FloatEq: x ).
	sqrt = ( _FloatSqrt ).
	floor = ( _FloatFloor ).
	ceiling = ( _FloatCeil ).
	asInteger = ( _FloatAsInt ).
	print = ( _Print ).
	printLine = ( _PrintLine )
|).
traitsString _AddSlots: (|
	size = ( _StringSize ).
	at: i = ( _StringAt: i ).
	concat: s = ( _StringConcat: s ).
	== s = ( _StringEq: s ).
	asUppercase = ( _StringAsUppercase ).
	asLowercase = ( _StringAsLowercase ).
	strftime: t = ( _TimeFormat: t ).
	print = ( _Print ).
	printLine = ( _PrintLine )
|).
true _AddSlots: (|
	ifTrue: t = ( _BlockRun: t ).
	ifFalse: f = ( nil ).
	ifTrue: t IfFalse: f = ( _BlockRun: t ).
	not = ( false )
|).
false _AddSlots: (|
	ifTrue: t = ( nil ).
	ifFalse: f = ( _BlockRun: f ).
	ifTrue: t IfFalse: f = ( _BlockRun: f ).
	not = ( true )
|).
lobby _AddSlots: (|
	clone: o = ( _CloneOf: o ).
	collectGarbage = ( _Collect ).
	heapStats = ( _HeapStats ).
	platformVersion = ( _SystemPlatformVersion ).
	timeNow = ( _TimeNow ).
	runScript: path = ( _RunScript: path )
|)
`

func (vm *VM) finishWorld() error {
	script, err := parse.Parse(strings.NewReader(bootstrapSource), "<bootstrap>")
	if err != nil {
		return fmt.Errorf("parsing bootstrap: %w", err)
	}
	if _, rerr := vm.ExecuteScript(script); rerr != nil {
		return fmt.Errorf("running bootstrap: %w", rerr)
	}
	vm.log.Debugf("world ready: %d interned symbols", len(vm.symbols))
	return nil
}
