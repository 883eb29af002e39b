package vm

import (
	"unicode/utf8"

	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// getProperty reads obj.name. Instance fields shadow methods; methods read
// from an instance, variant or builtin receiver come back bound.
func (vm *VM) getProperty(obj Value, name string) (Value, error) {
	switch o := vm.heap.get(obj).(type) {
	case *InstanceObj:
		if v, ok := o.field(name); ok {
			return v, nil
		}
		if m, ok := o.class.methods[name]; ok {
			return vm.newBound(obj, m), nil
		}
		return Nil, vm.errorf("Undefined property '%s'.", name)

	case *ClassObj:
		if m, ok := o.methods[name]; ok {
			return m, nil
		}
		return Nil, vm.errorf("Undefined property '%s'.", name)

	case *EnumObj:
		// Enum.Variant is the value form: the variant's payload.
		if i, ok := o.byName[name]; ok {
			return vm.heap.get(o.variants[i]).(*VariantObj).payload, nil
		}
		if m, ok := o.methods[name]; ok {
			return m, nil
		}
		return Nil, vm.errorf("Undefined property '%s'.", name)

	case *VariantObj:
		switch name {
		case "name":
			return vm.NewString(o.name), nil
		case "value":
			return o.payload, nil
		}
		if m, ok := o.enum.methods[name]; ok {
			return vm.newBound(obj, m), nil
		}
		return Nil, vm.errorf("Undefined property '%s'.", name)

	case *ErrorObj:
		return vm.getProperty(o.payload, name)

	case *MapObj:
		if i, ok := o.find(mapKey{tag: keyString, str: name}); ok {
			return o.vals[i], nil
		}
		if m, ok := vm.builtinMethod(obj, name); ok {
			return vm.newBound(obj, m), nil
		}
		return Nil, nil
	}

	if m, ok := vm.builtinMethod(obj, name); ok {
		return vm.newBound(obj, m), nil
	}
	return Nil, vm.errorf("Only instances have properties.")
}

// setProperty assigns obj.name = v. Assigning a method name on an instance
// stores a field that shadows the method for that instance only.
func (vm *VM) setProperty(obj Value, name string, v Value) error {
	switch o := vm.heap.get(obj).(type) {
	case *InstanceObj:
		if o.setField(name, v) {
			vm.heap.grew(32)
		}
		return nil
	case *MapObj:
		if o.put(mapKey{tag: keyString, str: name}, vm.NewString(name), v) {
			vm.heap.grew(48)
		}
		return nil
	}
	return vm.errorf("Only instances have fields.")
}

// getVariant resolves Enum::Variant, the identity form.
func (vm *VM) getVariant(obj Value, name string) (Value, error) {
	e, ok := vm.heap.get(obj).(*EnumObj)
	if !ok {
		return Nil, vm.errorf("Only enums have variants.")
	}
	i, ok := e.byName[name]
	if !ok {
		return Nil, vm.errorf("Undefined variant '%s' in enum '%s'.", name, e.name)
	}
	return e.variants[i], nil
}

// newEnum builds an enum type and its variants from a template.
func (vm *VM) newEnum(t *bytecode.EnumTemplate) Value {
	e := &EnumObj{
		name:    t.Name,
		isError: t.IsError,
		kind:    t.Kind,
		byName:  make(map[string]int, len(t.Variants)),
		methods: make(map[string]Value),
	}
	ref := vm.alloc(e)
	for i, decl := range t.Variants {
		e.byName[decl.Name] = i
		e.variants = append(e.variants, vm.alloc(&VariantObj{
			enumRef: ref,
			enum:    e,
			index:   i,
			name:    decl.Name,
			payload: vm.constValue(decl.Value),
		}))
	}
	return ref
}

// ---------------------------------------------------------------------------
// Indexing and slicing
// ---------------------------------------------------------------------------

// normalizeIndex resolves a possibly negative index against length n.
func (vm *VM) normalizeIndex(index Value, n int) (int, error) {
	if !index.IsInt() {
		if index.IsFloat() {
			f := index.AsFloat()
			if f != float64(int64(f)) {
				return 0, vm.errorf("Index must be an integer.")
			}
			index = FromInt(int64(f))
		} else {
			return 0, vm.errorf("Index must be an integer.")
		}
	}
	i := index.AsInt()
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, vm.errorf("Index %d out of bounds for length %d.", index.AsInt(), n)
	}
	return int(i), nil
}

func (vm *VM) getIndex(obj, index Value) (Value, error) {
	switch o := vm.heap.get(obj).(type) {
	case *ArrayObj:
		i, err := vm.normalizeIndex(index, len(o.items))
		if err != nil {
			return Nil, err
		}
		return o.items[i], nil
	case *TupleObj:
		i, err := vm.normalizeIndex(index, len(o.items))
		if err != nil {
			return Nil, err
		}
		return o.items[i], nil
	case *StringObj:
		runes := []rune(o.s)
		i, err := vm.normalizeIndex(index, len(runes))
		if err != nil {
			return Nil, err
		}
		return vm.NewString(string(runes[i])), nil
	case *MapObj:
		if i, ok := o.find(vm.keyOf(index)); ok {
			return o.vals[i], nil
		}
		return Nil, nil
	case *InstanceObj:
		name, ok := vm.stringValue(index)
		if !ok {
			return Nil, vm.errorf("Instance index must be a string.")
		}
		v, _ := o.field(name)
		return v, nil
	}
	return Nil, vm.errorf("Cannot index a value of type '%s'.", vm.typeName(obj))
}

func (vm *VM) setIndex(obj, index, v Value) error {
	switch o := vm.heap.get(obj).(type) {
	case *ArrayObj:
		i, err := vm.normalizeIndex(index, len(o.items))
		if err != nil {
			return err
		}
		o.items[i] = v
		return nil
	case *MapObj:
		if o.put(vm.keyOf(index), index, v) {
			vm.heap.grew(48)
		}
		return nil
	case *InstanceObj:
		name, ok := vm.stringValue(index)
		if !ok {
			return vm.errorf("Instance index must be a string.")
		}
		o.setField(name, v)
		return nil
	case *TupleObj:
		return vm.errorf("Tuples are immutable.")
	case *StringObj:
		return vm.errorf("Strings are immutable.")
	}
	return vm.errorf("Cannot index a value of type '%s'.", vm.typeName(obj))
}

// sliceBounds clamps optional start/end bounds to [0, n].
func (vm *VM) sliceBounds(start, end Value, n int) (int, int, error) {
	bound := func(v Value, def int) (int, error) {
		if v.IsNil() {
			return def, nil
		}
		if !v.IsInt() {
			return 0, vm.errorf("Slice bounds must be integers.")
		}
		i := v.AsInt()
		if i < 0 {
			i += int64(n)
		}
		if i < 0 {
			i = 0
		}
		if i > int64(n) {
			i = int64(n)
		}
		return int(i), nil
	}
	lo, err := bound(start, 0)
	if err != nil {
		return 0, 0, err
	}
	hi, err := bound(end, n)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi, nil
}

func (vm *VM) slice(obj, start, end Value) (Value, error) {
	switch o := vm.heap.get(obj).(type) {
	case *ArrayObj:
		lo, hi, err := vm.sliceBounds(start, end, len(o.items))
		if err != nil {
			return Nil, err
		}
		return vm.newArray(append([]Value(nil), o.items[lo:hi]...)), nil
	case *TupleObj:
		lo, hi, err := vm.sliceBounds(start, end, len(o.items))
		if err != nil {
			return Nil, err
		}
		return vm.newTuple(append([]Value(nil), o.items[lo:hi]...)), nil
	case *StringObj:
		runes := []rune(o.s)
		lo, hi, err := vm.sliceBounds(start, end, len(runes))
		if err != nil {
			return Nil, err
		}
		return vm.NewString(string(runes[lo:hi])), nil
	}
	return Nil, vm.errorf("Cannot slice a value of type '%s'.", vm.typeName(obj))
}

// newRange builds a range from integer bounds.
func (vm *VM) newRange(start, end Value, flags byte) (Value, error) {
	r := &RangeObj{
		inclusive: flags&bytecode.RangeInclusive != 0,
		open:      flags&bytecode.RangeOpenEnd != 0,
	}
	if !start.IsInt() || (!r.open && !end.IsInt()) {
		return Nil, vm.errorf("Range bounds must be integers.")
	}
	r.start = start.AsInt()
	r.end = end.AsInt()
	return vm.alloc(r), nil
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// forIter advances the for-in loop whose iterable lives at slot and cursor
// at slot+1. It pushes vars loop values, or reports done.
func (vm *VM) forIter(slot, vars int) (bool, error) {
	if vars < 1 || vars > 2 {
		return false, vm.errorf("Expected 1 or 2 loop variables but got %d.", vars)
	}
	iterable := vm.stack[slot]
	cursor := vm.stack[slot+1].AsInt()

	emit := func(first, second Value) {
		if vars == 2 {
			vm.push(first)
		}
		vm.push(second)
	}

	switch o := vm.heap.get(iterable).(type) {
	case *ArrayObj:
		if cursor >= int64(len(o.items)) {
			return true, nil
		}
		emit(FromInt(cursor), o.items[cursor])
	case *TupleObj:
		if cursor >= int64(len(o.items)) {
			return true, nil
		}
		emit(FromInt(cursor), o.items[cursor])
	case *SetObj:
		if cursor >= int64(len(o.keys)) {
			return true, nil
		}
		emit(FromInt(cursor), o.keys[cursor])
	case *MapObj:
		if cursor >= int64(len(o.keys)) {
			return true, nil
		}
		if vars == 2 {
			vm.push(o.keys[cursor])
			vm.push(o.vals[cursor])
		} else {
			vm.push(o.keys[cursor])
		}
	case *StringObj:
		if cursor >= int64(len(o.s)) {
			return true, nil
		}
		r, size := utf8.DecodeRuneInString(o.s[cursor:])
		emit(FromInt(cursor), vm.NewString(string(r)))
		vm.stack[slot+1] = FromInt(cursor + int64(size))
		return false, nil
	case *RangeObj:
		n := o.start + cursor
		if !o.open && (n > o.end || (n == o.end && !o.inclusive)) {
			return true, nil
		}
		emit(FromInt(cursor), FromInt(n))
	default:
		return false, vm.errorf("Cannot iterate over a value of type '%s'.", vm.typeName(iterable))
	}
	vm.stack[slot+1] = FromInt(cursor + 1)
	return false, nil
}
