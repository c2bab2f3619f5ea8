package prose

import (
	"github.com/proselang/prose/ast"
)

// builtins is the static primitive registry. Selectors beginning with an
// underscore bypass slot lookup and dispatch here; an unknown selector in
// this table is a programming error and panics.
//
//go:generate go run github.com/proselang/prose/cmd/prosefn
var builtins = []struct {
	selector string
	fn       Primitive
}{
	{"_IntAdd:", IntAdd},
	{"_IntSub:", IntSub},
	{"_IntMul:", IntMul},
	{"_IntDiv:", IntDiv},
	{"_IntMod:", IntMod},
	{"_IntLt:", IntLess},
	{"_IntGt:", IntGreater},
	{"_IntLe:", IntLessOrEqual},
	{"_IntGe:", IntGreaterOrEqual},
	{"_IntEq:", IntEqual},
	{"_IntAsFloat", IntAsFloat},
	{"_IntTimesRepeat:", IntTimesRepeat},
	{"_FloatAdd:", FloatAdd},
	{"_FloatSub:", FloatSub},
	{"_FloatMul:", FloatMul},
	{"_FloatDiv:", FloatDiv},
	{"_FloatLt:", FloatLess},
	{"_FloatGt:", FloatGreater},
	{"_FloatEq:", FloatEqual},
	{"_FloatSqrt", FloatSqrt},
	{"_FloatFloor", FloatFloor},
	{"_FloatCeil", FloatCeil},
	{"_FloatAsInt", FloatAsInt},
	{"_AddSlots:", ObjectAddSlots},
	{"_Clone", ObjectClone},
	{"_CloneOf:", ObjectCloneOf},
	{"_Identical:", ObjectIdentical},
	{"_Print", ObjectPrint},
	{"_PrintLine", ObjectPrintLine},
	{"_ThisActivation", ObjectThisActivation},
	{"_BlockRun:", BlockRun},
	{"_StringSize", StringSize},
	{"_StringAt:", StringAt},
	{"_StringConcat:", StringConcat},
	{"_StringEq:", StringEqual},
	{"_StringAsUppercase", StringAsUppercase},
	{"_StringAsLowercase", StringAsLowercase},
	{"_Collect", SystemCollect},
	{"_HeapStats", SystemHeapStats},
	{"_TimeNow", SystemTimeNow},
	{"_TimeFormat:", SystemTimeFormat},
	{"_SystemPlatformVersion", SystemPlatform},
	{"_RunScript:", SystemRunScript},
}

// Argument helpers. Primitives report type and range violations as runtime
// errors naming the expected type and the offending index.

func (vm *VM) wantArgs(sel string, args []Value, n int, rng ast.SourceRange) (Completion, bool) {
	if len(args) != n {
		return vm.Raisef(rng, "%s takes %d arguments, got %d", sel, n, len(args)), false
	}
	return Completion{}, true
}

func (vm *VM) intArg(sel string, args []Value, i int, rng ast.SourceRange) (int64, Completion, bool) {
	if i >= len(args) || !args[i].IsInt() {
		return 0, vm.Raisef(rng, "%s expects an integer at argument %d", sel, i), false
	}
	return args[i].Int(), Completion{}, true
}

func (vm *VM) numberArg(sel string, args []Value, i int, rng ast.SourceRange) (float64, Completion, bool) {
	if i < len(args) {
		if args[i].IsInt() {
			return float64(args[i].Int()), Completion{}, true
		}
		if args[i].IsFloat() {
			return args[i].Float(), Completion{}, true
		}
	}
	return 0, vm.Raisef(rng, "%s expects a number at argument %d", sel, i), false
}

func (vm *VM) stringArg(sel string, args []Value, i int, rng ast.SourceRange) ([]byte, Completion, bool) {
	if i >= len(args) || !args[i].IsRef() || vm.heap.kind(args[i].addr()) != kindBytes {
		return nil, vm.Raisef(rng, "%s expects a string at argument %d", sel, i), false
	}
	return vm.heap.bytesAt(args[i].addr()), Completion{}, true
}

func (vm *VM) bytesReceiver(sel string, recv Value, rng ast.SourceRange) ([]byte, Completion, bool) {
	if !recv.IsRef() || vm.heap.kind(recv.addr()) != kindBytes {
		return nil, vm.Raisef(rng, "%s expects a string receiver", sel), false
	}
	return vm.heap.bytesAt(recv.addr()), Completion{}, true
}

// newString wraps byte-array allocation for primitives, converting an
// allocation failure into a fatal completion.
func (vm *VM) newString(b []byte, rng ast.SourceRange) Completion {
	v, err := vm.newBytes(b)
	if err != nil {
		return vm.raiseFatal(rng, err)
	}
	return normal(v)
}
