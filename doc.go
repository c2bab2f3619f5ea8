// Package prose implements the runtime core of the Prose language: a
// prototype-based, message-passing, dynamically typed object language.
//
// Programs are sequences of expressions that construct objects from slots
// and send messages to receivers; all computation is object creation and
// message dispatch over a parent-slot chain. The package provides the
// tagged value representation, the generational moving heap, the object
// and map layout, slot lookup, the bounded activation stack with non-local
// returns, the tree-walking evaluator, and the primitive registry.
//
// A VM bundles one world: heap, activation stack, interned symbols, the
// lobby, and the traits objects for numbers and strings. Scripts parsed by
// package parse execute with ExecuteScript; embedders extend the world by
// running bootstrap code. The primitive registry is the fixed table in
// builtins.go; the package offers no call to register further primitives.
//
// The heap moves objects. Any raw Value held across an allocation must be
// registered with Heap.Track and released with Heap.Untrack on every exit
// path; values stored in activation frames or inside other heap objects
// are updated by the collector automatically.
package prose
