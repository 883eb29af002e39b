package vm

import (
	"math"
	"strings"

	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports whether a and b are equal by script semantics. Numbers
// compare by value across int and float; strings, arrays, tuples, maps,
// sets and ranges compare structurally; variants compare by declared
// identity; bound methods by receiver identity and method; everything
// else by identity. Error values compare by their payload.
func (vm *VM) Equal(a, b Value) bool {
	return vm.equal(a, b, 0)
}

const maxEqualDepth = 256

func (vm *VM) equal(a, b Value, depth int) bool {
	if a.IsNumber() && b.IsNumber() {
		if a.kind == KindInt && b.kind == KindInt {
			return a.bits == b.bits
		}
		return a.AsNumber() == b.AsNumber()
	}
	if a.kind != KindObject || b.kind != KindObject {
		return a == b
	}
	if a == b {
		return true
	}
	if depth > maxEqualDepth {
		return false
	}

	oa, ob := vm.heap.get(a), vm.heap.get(b)
	if e, ok := oa.(*ErrorObj); ok {
		return vm.equal(e.payload, b, depth+1)
	}
	if e, ok := ob.(*ErrorObj); ok {
		return vm.equal(a, e.payload, depth+1)
	}

	switch x := oa.(type) {
	case *StringObj:
		y, ok := ob.(*StringObj)
		return ok && x.s == y.s
	case *ArrayObj:
		y, ok := ob.(*ArrayObj)
		return ok && vm.equalItems(x.items, y.items, depth)
	case *TupleObj:
		y, ok := ob.(*TupleObj)
		return ok && vm.equalItems(x.items, y.items, depth)
	case *RangeObj:
		y, ok := ob.(*RangeObj)
		return ok && *x == *y
	case *MapObj:
		y, ok := ob.(*MapObj)
		if !ok || x.len() != y.len() {
			return false
		}
		for i, k := range x.keys {
			j, found := y.find(vm.keyOf(k))
			if !found || !vm.equal(x.vals[i], y.vals[j], depth+1) {
				return false
			}
		}
		return true
	case *SetObj:
		y, ok := ob.(*SetObj)
		if !ok || x.len() != y.len() {
			return false
		}
		for _, k := range x.keys {
			if _, found := y.find(vm.keyOf(k)); !found {
				return false
			}
		}
		return true
	case *BoundMethodObj:
		y, ok := ob.(*BoundMethodObj)
		return ok && Identical(x.receiver, y.receiver) && x.method == y.method
	}
	return false
}

func (vm *VM) equalItems(a, b []Value, depth int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !vm.equal(a[i], b[i], depth+1) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

// compare orders two numbers or two strings.
func (vm *VM) compare(a, b Value) (int, bool) {
	if a.IsNumber() && b.IsNumber() {
		if a.kind == KindInt && b.kind == KindInt {
			x, y := a.AsInt(), b.AsInt()
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
		x, y := a.AsNumber(), b.AsNumber()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		case x == y:
			return 0, true
		}
		return 0, false // NaN
	}
	sa, ok1 := vm.heap.get(a).(*StringObj)
	sb, ok2 := vm.heap.get(b).(*StringObj)
	if ok1 && ok2 {
		return strings.Compare(sa.s, sb.s), true
	}
	return 0, false
}

func (vm *VM) compareOp(op bytecode.Opcode, a, b Value) (Value, error) {
	c, ok := vm.compare(a, b)
	if !ok {
		if a.IsNumber() && b.IsNumber() {
			return False, nil
		}
		return Nil, vm.errorf("Operands must be two numbers or two strings.")
	}
	switch op {
	case bytecode.OpLess:
		return FromBool(c < 0), nil
	case bytecode.OpLessEqual:
		return FromBool(c <= 0), nil
	case bytecode.OpGreater:
		return FromBool(c > 0), nil
	}
	return FromBool(c >= 0), nil
}

// contains implements `v in container`. Arrays and tuples test elements
// with Equal, maps test keys, strings test substrings and ranges test the
// integers they would yield.
func (vm *VM) contains(container, v Value) (bool, error) {
	switch o := vm.heap.get(container).(type) {
	case *ArrayObj:
		return vm.indexOf(o.items, v) >= 0, nil
	case *TupleObj:
		return vm.indexOf(o.items, v) >= 0, nil
	case *MapObj:
		_, ok := o.find(vm.keyOf(v))
		return ok, nil
	case *SetObj:
		_, ok := o.find(vm.keyOf(v))
		return ok, nil
	case *StringObj:
		s, ok := vm.stringValue(v)
		if !ok {
			return false, vm.errorf("Left operand of 'in' must be a string when the right is a string.")
		}
		return strings.Contains(o.s, s), nil
	case *RangeObj:
		if !v.IsNumber() {
			return false, nil
		}
		n := v.AsNumber()
		if n != math.Trunc(n) || n < float64(o.start) {
			return false, nil
		}
		if o.open {
			return true, nil
		}
		end := float64(o.end)
		return n < end || (o.inclusive && n == end), nil
	}
	return false, vm.errorf("Right operand of 'in' must be an array, tuple, map, set, string or range.")
}

// inRange tests subject against pattern bounds; an incomparable subject
// is simply outside the range.
func (vm *VM) inRange(subject, lo, hi Value, flags byte) bool {
	if flags&bytecode.RangeOpenStart == 0 {
		c, ok := vm.compare(lo, subject)
		if !ok || c > 0 {
			return false
		}
	}
	if flags&bytecode.RangeOpenEnd == 0 {
		c, ok := vm.compare(subject, hi)
		if !ok {
			return false
		}
		if flags&bytecode.RangeInclusive != 0 {
			return c <= 0
		}
		return c < 0
	}
	return true
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (vm *VM) add(a, b Value) (Value, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return FromInt(a.AsInt() + b.AsInt()), nil
	case a.IsNumber() && b.IsNumber():
		return FromFloat(a.AsNumber() + b.AsNumber()), nil
	}
	switch x := vm.heap.get(a).(type) {
	case *StringObj:
		if y, ok := vm.heap.get(b).(*StringObj); ok {
			return vm.NewString(x.s + y.s), nil
		}
	case *ArrayObj:
		if y, ok := vm.heap.get(b).(*ArrayObj); ok {
			items := make([]Value, 0, len(x.items)+len(y.items))
			items = append(items, x.items...)
			items = append(items, y.items...)
			return vm.newArray(items), nil
		}
	}
	return Nil, vm.errorf("Operands must be two numbers or two strings.")
}

func (vm *VM) arith(op bytecode.Opcode, a, b Value) (Value, error) {
	if op == bytecode.OpAdd {
		return vm.add(a, b)
	}
	if op == bytecode.OpMul {
		if s, ok := vm.heap.get(a).(*StringObj); ok && b.kind == KindInt {
			if b.AsInt() < 0 {
				return Nil, vm.errorf("Cannot repeat a string a negative number of times.")
			}
			return vm.NewString(strings.Repeat(s.s, int(b.AsInt()))), nil
		}
	}
	if !a.IsNumber() || !b.IsNumber() {
		return Nil, vm.errorf("Operands must be numbers.")
	}

	if a.kind == KindInt && b.kind == KindInt {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OpSub:
			return FromInt(x - y), nil
		case bytecode.OpMul:
			return FromInt(x * y), nil
		case bytecode.OpDiv:
			if y == 0 {
				return Nil, vm.errorf("Division by zero.")
			}
			return FromInt(x / y), nil
		case bytecode.OpMod:
			if y == 0 {
				return Nil, vm.errorf("Division by zero.")
			}
			return FromInt(x % y), nil
		case bytecode.OpPow:
			if y >= 0 {
				return FromInt(ipow(x, y)), nil
			}
			return FromFloat(math.Pow(float64(x), float64(y))), nil
		}
	}

	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.OpSub:
		return FromFloat(x - y), nil
	case bytecode.OpMul:
		return FromFloat(x * y), nil
	case bytecode.OpDiv:
		return FromFloat(x / y), nil
	case bytecode.OpMod:
		return FromFloat(math.Mod(x, y)), nil
	case bytecode.OpPow:
		return FromFloat(math.Pow(x, y)), nil
	}
	return Nil, vm.errorf("Unknown arithmetic operator %s.", op)
}

// ipow computes x**y by squaring; overflow wraps.
func ipow(x, y int64) int64 {
	result := int64(1)
	for y > 0 {
		if y&1 == 1 {
			result *= x
		}
		x *= x
		y >>= 1
	}
	return result
}

func (vm *VM) bitwise(op bytecode.Opcode, a, b Value) (Value, error) {
	if a.kind != KindInt || b.kind != KindInt {
		return Nil, vm.errorf("Operands must be integers.")
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case bytecode.OpBitAnd:
		return FromInt(x & y), nil
	case bytecode.OpBitOr:
		return FromInt(x | y), nil
	case bytecode.OpBitXor:
		return FromInt(x ^ y), nil
	case bytecode.OpShl, bytecode.OpShr:
		if y < 0 {
			return Nil, vm.errorf("Negative shift count.")
		}
		if op == bytecode.OpShl {
			return FromInt(x << uint64(y)), nil
		}
		return FromInt(x >> uint64(y)), nil
	}
	return Nil, vm.errorf("Unknown bitwise operator %s.", op)
}

func (vm *VM) negate(v Value) (Value, error) {
	switch v.kind {
	case KindInt:
		return FromInt(-v.AsInt()), nil
	case KindFloat:
		return FromFloat(-v.AsFloat()), nil
	}
	return Nil, vm.errorf("Operand must be a number.")
}
