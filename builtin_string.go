package prose

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/proselang/prose/ast"
)

// String primitives operate on byte array objects. Contents are copied out
// of the heap before any allocation, so no tracking is needed here.

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// StringSize is a string primitive.
//
// _StringSize returns the receiver's length in bytes.
func StringSize(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	b, c, ok := vm.bytesReceiver("_StringSize", recv, rng)
	if !ok {
		return c
	}
	return normal(TagInt(int64(len(b))))
}

// StringAt is a string primitive.
//
// _StringAt: returns the one-byte string at the given zero-based index.
func StringAt(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	b, c, ok := vm.bytesReceiver("_StringAt:", recv, rng)
	if !ok {
		return c
	}
	i, c, ok := vm.intArg("_StringAt:", args, 0, rng)
	if !ok {
		return c
	}
	if i < 0 || i >= int64(len(b)) {
		return vm.Raisef(rng, "_StringAt: index %d out of range 0..%d", i, len(b)-1)
	}
	return vm.newString(b[i:i+1], rng)
}

// StringConcat is a string primitive.
//
// _StringConcat: returns the receiver followed by the argument.
func StringConcat(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	b, c, ok := vm.bytesReceiver("_StringConcat:", recv, rng)
	if !ok {
		return c
	}
	s, c, ok := vm.stringArg("_StringConcat:", args, 0, rng)
	if !ok {
		return c
	}
	return vm.newString(append(b, s...), rng)
}

// StringEqual is a string primitive.
//
// _StringEq: returns whether the receiver and the argument hold the same
// bytes.
func StringEqual(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	b, c, ok := vm.bytesReceiver("_StringEq:", recv, rng)
	if !ok {
		return c
	}
	s, c, ok := vm.stringArg("_StringEq:", args, 0, rng)
	if !ok {
		return c
	}
	return normal(vm.Bool(string(b) == string(s)))
}

// StringAsUppercase is a string primitive.
//
// _StringAsUppercase returns the receiver mapped to upper case.
func StringAsUppercase(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	b, c, ok := vm.bytesReceiver("_StringAsUppercase", recv, rng)
	if !ok {
		return c
	}
	return vm.newString([]byte(upperCaser.String(string(b))), rng)
}

// StringAsLowercase is a string primitive.
//
// _StringAsLowercase returns the receiver mapped to lower case.
func StringAsLowercase(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	b, c, ok := vm.bytesReceiver("_StringAsLowercase", recv, rng)
	if !ok {
		return c
	}
	return vm.newString([]byte(lowerCaser.String(string(b))), rng)
}
