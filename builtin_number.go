package prose

import (
	"math"

	"github.com/proselang/prose/ast"
)

// Integer primitives. The receiver must be a tagged integer; an integer
// receiver with a float argument promotes to a float result.

func intReceiver(vm *VM, sel string, recv Value, rng ast.SourceRange) (int64, Completion, bool) {
	if !recv.IsInt() {
		return 0, vm.Raisef(rng, "%s expects an integer receiver", sel), false
	}
	return recv.Int(), Completion{}, true
}

// intArith dispatches one arithmetic primitive over the int/float promotion
// rule.
func intArith(vm *VM, sel string, recv Value, args []Value, rng ast.SourceRange,
	ints func(a, b int64) (Value, bool), floats func(a, b float64) Value) Completion {
	a, c, ok := intReceiver(vm, sel, recv, rng)
	if !ok {
		return c
	}
	if c, ok := vm.wantArgs(sel, args, 1, rng); !ok {
		return c
	}
	if args[0].IsFloat() {
		return normal(floats(float64(a), args[0].Float()))
	}
	b, c, ok := vm.intArg(sel, args, 0, rng)
	if !ok {
		return c
	}
	v, ok := ints(a, b)
	if !ok {
		return vm.Raisef(rng, "%s: division by zero", sel)
	}
	return normal(v)
}

// IntAdd is an integer primitive.
//
// _IntAdd: returns the sum of the receiver and the argument.
func IntAdd(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intArith(vm, "_IntAdd:", recv, args, rng,
		func(a, b int64) (Value, bool) { return TagInt(a + b), true },
		func(a, b float64) Value { return TagFloat(a + b) })
}

// IntSub is an integer primitive.
//
// _IntSub: returns the difference of the receiver and the argument.
func IntSub(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intArith(vm, "_IntSub:", recv, args, rng,
		func(a, b int64) (Value, bool) { return TagInt(a - b), true },
		func(a, b float64) Value { return TagFloat(a - b) })
}

// IntMul is an integer primitive.
//
// _IntMul: returns the product of the receiver and the argument.
func IntMul(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intArith(vm, "_IntMul:", recv, args, rng,
		func(a, b int64) (Value, bool) { return TagInt(a * b), true },
		func(a, b float64) Value { return TagFloat(a * b) })
}

// IntDiv is an integer primitive.
//
// _IntDiv: returns the truncated quotient of the receiver and the argument.
// Dividing by integer zero is a runtime error; a float argument takes the
// float path, where dividing by zero yields an infinity or NaN.
func IntDiv(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intArith(vm, "_IntDiv:", recv, args, rng,
		func(a, b int64) (Value, bool) {
			if b == 0 {
				return marker, false
			}
			return TagInt(a / b), true
		},
		func(a, b float64) Value { return TagFloat(a / b) })
}

// IntMod is an integer primitive.
//
// _IntMod: returns the remainder of the receiver divided by the argument.
// An integer zero argument is a runtime error; a float zero argument yields
// NaN.
func IntMod(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intArith(vm, "_IntMod:", recv, args, rng,
		func(a, b int64) (Value, bool) {
			if b == 0 {
				return marker, false
			}
			return TagInt(a % b), true
		},
		func(a, b float64) Value { return TagFloat(math.Mod(a, b)) })
}

func intCompare(vm *VM, sel string, recv Value, args []Value, rng ast.SourceRange, pred func(c int) bool) Completion {
	a, c, ok := intReceiver(vm, sel, recv, rng)
	if !ok {
		return c
	}
	if len(args) == 1 && args[0].IsInt() {
		// Integer order is exact; the float path would lose precision past
		// 53 bits.
		b := args[0].Int()
		switch {
		case a < b:
			return normal(vm.Bool(pred(-1)))
		case a > b:
			return normal(vm.Bool(pred(1)))
		}
		return normal(vm.Bool(pred(0)))
	}
	b, c, ok := vm.numberArg(sel, args, 0, rng)
	if !ok {
		return c
	}
	fa := float64(a)
	switch {
	case fa < b:
		return normal(vm.Bool(pred(-1)))
	case fa > b:
		return normal(vm.Bool(pred(1)))
	}
	return normal(vm.Bool(pred(0)))
}

// IntLess is an integer primitive.
//
// _IntLt: returns whether the receiver is less than the argument.
func IntLess(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intCompare(vm, "_IntLt:", recv, args, rng, func(c int) bool { return c < 0 })
}

// IntGreater is an integer primitive.
//
// _IntGt: returns whether the receiver is greater than the argument.
func IntGreater(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intCompare(vm, "_IntGt:", recv, args, rng, func(c int) bool { return c > 0 })
}

// IntLessOrEqual is an integer primitive.
//
// _IntLe: returns whether the receiver is at most the argument.
func IntLessOrEqual(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intCompare(vm, "_IntLe:", recv, args, rng, func(c int) bool { return c <= 0 })
}

// IntGreaterOrEqual is an integer primitive.
//
// _IntGe: returns whether the receiver is at least the argument.
func IntGreaterOrEqual(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intCompare(vm, "_IntGe:", recv, args, rng, func(c int) bool { return c >= 0 })
}

// IntEqual is an integer primitive.
//
// _IntEq: returns whether the receiver equals the argument.
func IntEqual(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return intCompare(vm, "_IntEq:", recv, args, rng, func(c int) bool { return c == 0 })
}

// IntAsFloat is an integer primitive.
//
// _IntAsFloat returns the receiver as a float.
func IntAsFloat(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	a, c, ok := intReceiver(vm, "_IntAsFloat", recv, rng)
	if !ok {
		return c
	}
	return normal(TagFloat(float64(a)))
}

// IntTimesRepeat is an integer primitive.
//
// _IntTimesRepeat: activates the argument block once per unit of the
// receiver and returns the receiver.
func IntTimesRepeat(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	n, c, ok := intReceiver(vm, "_IntTimesRepeat:", recv, rng)
	if !ok {
		return c
	}
	if c, ok := vm.wantArgs("_IntTimesRepeat:", args, 1, rng); !ok {
		return c
	}
	if !args[0].IsRef() || vm.heap.kind(args[0].addr()) != kindBlock {
		return vm.Raisef(rng, "_IntTimesRepeat: expects a block at argument 0")
	}
	blk := vm.heap.Track(args[0])
	defer vm.heap.Untrack(blk)
	for i := int64(0); i < n; i++ {
		c := vm.activateBlock(blk, nil, "value", rng)
		if !c.IsNormal() {
			return c
		}
	}
	return normal(recv)
}

// Float primitives. The receiver must be a tagged float; integer arguments
// promote to floats.

func floatReceiver(vm *VM, sel string, recv Value, rng ast.SourceRange) (float64, Completion, bool) {
	if !recv.IsFloat() {
		return 0, vm.Raisef(rng, "%s expects a float receiver", sel), false
	}
	return recv.Float(), Completion{}, true
}

func floatArith(vm *VM, sel string, recv Value, args []Value, rng ast.SourceRange, op func(a, b float64) float64) Completion {
	a, c, ok := floatReceiver(vm, sel, recv, rng)
	if !ok {
		return c
	}
	b, c, ok := vm.numberArg(sel, args, 0, rng)
	if !ok {
		return c
	}
	return normal(TagFloat(op(a, b)))
}

// FloatAdd is a float primitive.
//
// _FloatAdd: returns the sum of the receiver and the argument.
func FloatAdd(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatArith(vm, "_FloatAdd:", recv, args, rng, func(a, b float64) float64 { return a + b })
}

// FloatSub is a float primitive.
//
// _FloatSub: returns the difference of the receiver and the argument.
func FloatSub(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatArith(vm, "_FloatSub:", recv, args, rng, func(a, b float64) float64 { return a - b })
}

// FloatMul is a float primitive.
//
// _FloatMul: returns the product of the receiver and the argument.
func FloatMul(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatArith(vm, "_FloatMul:", recv, args, rng, func(a, b float64) float64 { return a * b })
}

// FloatDiv is a float primitive.
//
// _FloatDiv: returns the quotient of the receiver and the argument.
func FloatDiv(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatArith(vm, "_FloatDiv:", recv, args, rng, func(a, b float64) float64 { return a / b })
}

func floatCompare(vm *VM, sel string, recv Value, args []Value, rng ast.SourceRange, pred func(a, b float64) bool) Completion {
	a, c, ok := floatReceiver(vm, sel, recv, rng)
	if !ok {
		return c
	}
	b, c, ok := vm.numberArg(sel, args, 0, rng)
	if !ok {
		return c
	}
	return normal(vm.Bool(pred(a, b)))
}

// FloatLess is a float primitive.
//
// _FloatLt: returns whether the receiver is less than the argument.
func FloatLess(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatCompare(vm, "_FloatLt:", recv, args, rng, func(a, b float64) bool { return a < b })
}

// FloatGreater is a float primitive.
//
// _FloatGt: returns whether the receiver is greater than the argument.
func FloatGreater(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatCompare(vm, "_FloatGt:", recv, args, rng, func(a, b float64) bool { return a > b })
}

// FloatEqual is a float primitive.
//
// _FloatEq: returns whether the receiver equals the argument after tag
// rounding.
func FloatEqual(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	return floatCompare(vm, "_FloatEq:", recv, args, rng, func(a, b float64) bool { return a == b })
}

// FloatSqrt is a float primitive.
//
// _FloatSqrt returns the square root of the receiver.
func FloatSqrt(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	a, c, ok := floatReceiver(vm, "_FloatSqrt", recv, rng)
	if !ok {
		return c
	}
	return normal(TagFloat(math.Sqrt(a)))
}

// FloatFloor is a float primitive.
//
// _FloatFloor returns the greatest integer-valued float at most the
// receiver.
func FloatFloor(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	a, c, ok := floatReceiver(vm, "_FloatFloor", recv, rng)
	if !ok {
		return c
	}
	return normal(TagFloat(math.Floor(a)))
}

// FloatCeil is a float primitive.
//
// _FloatCeil returns the least integer-valued float at least the receiver.
func FloatCeil(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	a, c, ok := floatReceiver(vm, "_FloatCeil", recv, rng)
	if !ok {
		return c
	}
	return normal(TagFloat(math.Ceil(a)))
}

// FloatAsInt is a float primitive.
//
// _FloatAsInt returns the receiver truncated to an integer.
func FloatAsInt(vm *VM, recv Value, args []Value, rng ast.SourceRange) Completion {
	a, c, ok := floatReceiver(vm, "_FloatAsInt", recv, rng)
	if !ok {
		return c
	}
	if a < MinInt || a > MaxInt {
		return vm.Raisef(rng, "_FloatAsInt: %g overflows the integer range", a)
	}
	return normal(TagInt(int64(a)))
}
