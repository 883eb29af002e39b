package vm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Global builtin functions
// ---------------------------------------------------------------------------

func (vm *VM) registerBuiltins() {
	vm.defineNativeErrorClass()

	vm.defineBuiltin("print", 0, -1, builtinPrint)
	vm.defineBuiltin("len", 1, 1, builtinLen)
	vm.defineBuiltin("str", 1, 1, builtinStr)
	vm.defineBuiltin("int", 1, 1, builtinInt)
	vm.defineBuiltin("float", 1, 1, builtinFloat)
	vm.defineBuiltin("bool", 1, 1, builtinBool)
	vm.defineBuiltin("type", 1, 1, builtinType)
	vm.defineBuiltin("abs", 1, 1, builtinAbs)
	vm.defineBuiltin("round", 1, 2, builtinRound)
	vm.defineBuiltin("min", 1, -1, builtinMin)
	vm.defineBuiltin("max", 1, -1, builtinMax)
	vm.defineBuiltin("sum", 1, 2, builtinSum)
	vm.defineBuiltin("any", 1, 1, builtinAny)
	vm.defineBuiltin("all", 1, 1, builtinAll)
	vm.defineBuiltin("map", 2, 2, builtinMap)
	vm.defineBuiltin("filter", 2, 2, builtinFilter)
	vm.defineBuiltin("zip", 2, -1, builtinZip)
	vm.defineBuiltin("set", 0, 1, builtinSet)
	vm.defineBuiltin("range", 1, 3, builtinRange)
	vm.defineBuiltin("callable", 1, 1, builtinCallable)
	vm.defineBuiltin("chr", 1, 1, builtinChr)
	vm.defineBuiltin("ord", 1, 1, builtinOrd)
	vm.defineBuiltin("hex", 1, 1, radixBuiltin("hex", "0x", 16))
	vm.defineBuiltin("oct", 1, 1, radixBuiltin("oct", "0o", 8))
	vm.defineBuiltin("bin", 1, 1, radixBuiltin("bin", "0b", 2))
}

// iterate calls fn for each element of an iterable value: array, tuple
// and set items, map keys, string characters and closed range members.
// Arrays are re-read on every step so callbacks may mutate them.
func (vm *VM) iterate(v Value, fn func(Value) error) error {
	switch o := vm.heap.get(v).(type) {
	case *ArrayObj:
		for i := 0; i < len(o.items); i++ {
			if err := fn(o.items[i]); err != nil {
				return err
			}
		}
		return nil
	case *TupleObj:
		for _, item := range o.items {
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	case *SetObj:
		for _, item := range append([]Value(nil), o.keys...) {
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	case *MapObj:
		for _, key := range append([]Value(nil), o.keys...) {
			if err := fn(key); err != nil {
				return err
			}
		}
		return nil
	case *StringObj:
		for _, r := range o.s {
			if err := fn(vm.NewString(string(r))); err != nil {
				return err
			}
		}
		return nil
	case *RangeObj:
		if o.open {
			return vm.errorf("Cannot consume an open-ended range.")
		}
		n := o.length()
		for i := int64(0); i < n; i++ {
			if err := fn(FromInt(o.start + i)); err != nil {
				return err
			}
		}
		return nil
	}
	return vm.errorf("Cannot iterate over a value of type '%s'.", vm.typeName(v))
}

// collectItems gathers the elements of an iterable into a slice.
func (vm *VM) collectItems(v Value) ([]Value, error) {
	var items []Value
	err := vm.iterate(v, func(item Value) error {
		items = append(items, item)
		return nil
	})
	return items, err
}

func builtinPrint(vm *VM, args []Value) (Value, error) {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		vm.format(&b, a, nil)
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(vm.cfg.Stdout, b.String()); err != nil {
		return Nil, fmt.Errorf("print: %w", err)
	}
	return Nil, nil
}

func builtinLen(vm *VM, args []Value) (Value, error) {
	switch o := vm.heap.get(args[0]).(type) {
	case *StringObj:
		return FromInt(int64(utf8.RuneCountInString(o.s))), nil
	case *ArrayObj:
		return FromInt(int64(len(o.items))), nil
	case *TupleObj:
		return FromInt(int64(len(o.items))), nil
	case *MapObj:
		return FromInt(int64(o.len())), nil
	case *SetObj:
		return FromInt(int64(o.len())), nil
	case *RangeObj:
		if o.open {
			return Nil, vm.errorf("len() of an open-ended range is undefined.")
		}
		return FromInt(o.length()), nil
	case *InstanceObj:
		n := 0
		o.each(func(string, Value) { n++ })
		return FromInt(int64(n)), nil
	}
	return Nil, vm.errorf("len() argument must be a string, array, tuple, map, set or range.")
}

func builtinStr(vm *VM, args []Value) (Value, error) {
	if _, ok := vm.heap.get(args[0]).(*StringObj); ok {
		return args[0], nil
	}
	return vm.NewString(vm.Format(args[0])), nil
}

func builtinInt(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		f := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Nil, vm.errorf("could not convert %s to int", formatFloat(f))
		}
		return FromInt(int64(f)), nil
	case KindBool:
		if v.AsBool() {
			return FromInt(1), nil
		}
		return FromInt(0), nil
	case KindNil:
		return FromInt(0), nil
	}
	if s, ok := vm.stringValue(v); ok {
		t := strings.TrimSpace(s)
		if n, err := strconv.ParseInt(t, 0, 64); err == nil {
			return FromInt(n), nil
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return FromInt(int64(f)), nil
		}
		return Nil, vm.errorf("could not convert string to int: '%s'", s)
	}
	return Nil, vm.errorf("could not convert %s to int", vm.Format(v))
}

func builtinFloat(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.kind {
	case KindInt, KindFloat:
		return FromFloat(v.AsNumber()), nil
	case KindBool:
		if v.AsBool() {
			return FromFloat(1), nil
		}
		return FromFloat(0), nil
	case KindNil:
		return FromFloat(0), nil
	}
	if s, ok := vm.stringValue(v); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Nil, vm.errorf("could not convert string to float: '%s'", s)
		}
		return FromFloat(f), nil
	}
	return Nil, vm.errorf("could not convert %s to float", vm.Format(v))
}

func builtinBool(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.kind {
	case KindNil:
		return False, nil
	case KindBool:
		return v, nil
	case KindInt, KindFloat:
		return FromBool(v.AsNumber() != 0), nil
	}
	switch o := vm.heap.get(v).(type) {
	case *StringObj:
		return FromBool(o.s != ""), nil
	case *ArrayObj:
		return FromBool(len(o.items) > 0), nil
	case *TupleObj:
		return FromBool(len(o.items) > 0), nil
	case *MapObj:
		return FromBool(o.len() > 0), nil
	case *SetObj:
		return FromBool(o.len() > 0), nil
	}
	return True, nil
}

func builtinType(vm *VM, args []Value) (Value, error) {
	return vm.NewString(vm.typeName(args[0])), nil
}

func builtinAbs(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch {
	case v.IsInt():
		if n := v.AsInt(); n < 0 {
			return FromInt(-n), nil
		}
		return v, nil
	case v.IsFloat():
		return FromFloat(math.Abs(v.AsFloat())), nil
	}
	return Nil, vm.errorf("abs() argument must be a number.")
}

func builtinRound(vm *VM, args []Value) (Value, error) {
	v := args[0]
	if !v.IsNumber() {
		return Nil, vm.errorf("round() argument must be a number.")
	}
	if len(args) == 1 || args[1].IsNil() {
		if v.IsInt() {
			return v, nil
		}
		return FromInt(int64(math.RoundToEven(v.AsFloat()))), nil
	}
	if !args[1].IsInt() {
		return Nil, vm.errorf("round() digits must be an integer.")
	}
	scale := math.Pow(10, float64(args[1].AsInt()))
	return FromFloat(math.RoundToEven(v.AsNumber()*scale) / scale), nil
}

// extremum implements min and max over either the arguments or the
// elements of a single iterable argument.
func (vm *VM) extremum(name string, args []Value, want int) (Value, error) {
	items := args
	if len(args) == 1 {
		var err error
		if items, err = vm.collectItems(args[0]); err != nil {
			return Nil, err
		}
		if len(items) == 0 {
			return Nil, vm.errorf("%s() arg is an empty sequence.", name)
		}
	}
	best := items[0]
	for _, item := range items[1:] {
		c, ok := vm.compare(item, best)
		if !ok {
			return Nil, vm.errorf("%s() arguments must be numbers or strings.", name)
		}
		if c == want {
			best = item
		}
	}
	if _, ok := vm.compare(best, best); !ok {
		return Nil, vm.errorf("%s() arguments must be numbers or strings.", name)
	}
	return best, nil
}

func builtinMin(vm *VM, args []Value) (Value, error) {
	return vm.extremum("min", args, -1)
}

func builtinMax(vm *VM, args []Value) (Value, error) {
	return vm.extremum("max", args, 1)
}

func builtinSum(vm *VM, args []Value) (Value, error) {
	total := FromInt(0)
	if len(args) == 2 {
		total = args[1]
	}
	err := vm.iterate(args[0], func(item Value) error {
		if !item.IsNumber() || !total.IsNumber() {
			return vm.errorf("sum() elements must be numbers.")
		}
		v, err := vm.add(total, item)
		total = v
		return err
	})
	return total, err
}

func builtinAny(vm *VM, args []Value) (Value, error) {
	found := false
	err := vm.iterate(args[0], func(item Value) error {
		if item.Truthy() {
			found = true
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return Nil, err
	}
	return FromBool(found), nil
}

func builtinAll(vm *VM, args []Value) (Value, error) {
	ok := true
	err := vm.iterate(args[0], func(item Value) error {
		if !item.Truthy() {
			ok = false
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return Nil, err
	}
	return FromBool(ok), nil
}

// errStopIteration ends an iterate loop early without failing.
var errStopIteration = errors.New("stop iteration")

func (vm *VM) isCallable(v Value) bool {
	switch vm.heap.get(v).(type) {
	case *ClosureObj, *NativeObj, *BoundMethodObj, *ClassObj:
		return true
	}
	return false
}

func builtinMap(vm *VM, args []Value) (Value, error) {
	fn := args[1]
	if !vm.isCallable(fn) {
		return Nil, vm.errorf("map() second argument must be a function.")
	}
	out := &ArrayObj{}
	ref := vm.alloc(out)
	vm.pin(ref)
	defer vm.unpin(1)
	err := vm.iterate(args[0], func(item Value) error {
		v, err := vm.callFunction(fn, item)
		if err != nil {
			return err
		}
		out.items = append(out.items, v)
		return nil
	})
	if err != nil {
		return Nil, err
	}
	return ref, nil
}

func builtinFilter(vm *VM, args []Value) (Value, error) {
	fn := args[1]
	if !vm.isCallable(fn) {
		return Nil, vm.errorf("filter() second argument must be a function.")
	}
	out := &ArrayObj{}
	ref := vm.alloc(out)
	vm.pin(ref)
	defer vm.unpin(1)
	err := vm.iterate(args[0], func(item Value) error {
		keep, err := vm.callFunction(fn, item)
		if err != nil {
			return err
		}
		if keep.Truthy() {
			out.items = append(out.items, item)
		}
		return nil
	})
	if err != nil {
		return Nil, err
	}
	return ref, nil
}

// builtinZip pairs up elements into tuples, stopping at the shortest
// input.
func builtinZip(vm *VM, args []Value) (Value, error) {
	lists := make([][]Value, len(args))
	shortest := -1
	for i, a := range args {
		items, err := vm.collectItems(a)
		if err != nil {
			return Nil, err
		}
		lists[i] = items
		if shortest < 0 || len(items) < shortest {
			shortest = len(items)
		}
	}
	out := make([]Value, shortest)
	for i := range out {
		row := make([]Value, len(lists))
		for j := range lists {
			row[j] = lists[j][i]
		}
		out[i] = vm.newTuple(row)
	}
	return vm.newArray(out), nil
}

func builtinSet(vm *VM, args []Value) (Value, error) {
	s := &SetObj{}
	if len(args) == 1 {
		err := vm.iterate(args[0], func(item Value) error {
			s.put(vm.keyOf(item), item, Nil)
			return nil
		})
		if err != nil {
			return Nil, err
		}
	}
	return vm.alloc(s), nil
}

// builtinRange returns the integers of range(stop), range(start, stop) or
// range(start, stop, step) as an array.
func builtinRange(vm *VM, args []Value) (Value, error) {
	bounds := make([]int64, len(args))
	for i, a := range args {
		if !a.IsInt() {
			return Nil, vm.errorf("range() arguments must be integers.")
		}
		bounds[i] = a.AsInt()
	}
	start, stop, step := int64(0), bounds[0], int64(1)
	if len(bounds) >= 2 {
		start, stop = bounds[0], bounds[1]
	}
	if len(bounds) == 3 {
		step = bounds[2]
	}
	if step == 0 {
		return Nil, vm.errorf("range() step must not be zero.")
	}
	var items []Value
	for n := start; (step > 0 && n < stop) || (step < 0 && n > stop); n += step {
		items = append(items, FromInt(n))
	}
	return vm.newArray(items), nil
}

func builtinCallable(vm *VM, args []Value) (Value, error) {
	return FromBool(vm.isCallable(args[0])), nil
}

func builtinChr(vm *VM, args []Value) (Value, error) {
	if !args[0].IsInt() {
		return Nil, vm.errorf("chr() argument must be an integer.")
	}
	n := args[0].AsInt()
	if n < 0 || n > utf8.MaxRune || !utf8.ValidRune(rune(n)) {
		return Nil, vm.errorf("chr() arg not in range(0x110000)")
	}
	return vm.NewString(string(rune(n))), nil
}

func builtinOrd(vm *VM, args []Value) (Value, error) {
	s, ok := vm.stringValue(args[0])
	if !ok || utf8.RuneCountInString(s) != 1 {
		return Nil, vm.errorf("ord() expected a character.")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return FromInt(int64(r)), nil
}

func radixBuiltin(name, prefix string, base int) builtinFunc {
	return func(vm *VM, args []Value) (Value, error) {
		if !args[0].IsInt() {
			return Nil, vm.errorf("%s() argument must be an integer.", name)
		}
		n := args[0].AsInt()
		if n < 0 {
			return vm.NewString("-" + prefix + strconv.FormatUint(uint64(-n), base)), nil
		}
		return vm.NewString(prefix + strconv.FormatInt(n, base)), nil
	}
}
