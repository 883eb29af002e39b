package vm

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Builtin methods on strings, arrays, maps, sets, tuples and ranges
// ---------------------------------------------------------------------------

// defineMethod registers a native method in the table for typ.
func (vm *VM) defineMethod(typ, name string, minArgs, maxArgs int, fn methodFunc, keywords ...string) {
	table, ok := vm.methods[typ]
	if !ok {
		table = make(map[string]Value)
		vm.methods[typ] = table
	}
	table[name] = vm.alloc(&NativeObj{
		name:     typ + "." + name,
		minArgs:  minArgs,
		maxArgs:  maxArgs,
		keywords: keywords,
		method:   fn,
	})
}

// builtinMethod looks up a native method for a builtin receiver type.
func (vm *VM) builtinMethod(recv Value, name string) (Value, bool) {
	var typ string
	switch vm.heap.get(recv).(type) {
	case *StringObj:
		typ = "string"
	case *ArrayObj:
		typ = "array"
	case *MapObj:
		typ = "map"
	case *SetObj:
		typ = "set"
	case *TupleObj:
		typ = "tuple"
	case *RangeObj:
		typ = "range"
	default:
		return Nil, false
	}
	m, ok := vm.methods[typ][name]
	return m, ok
}

func (vm *VM) registerBuiltinMethods() {
	vm.registerStringMethods()
	vm.registerArrayMethods()
	vm.registerMapMethods()
	vm.registerSetMethods()
	vm.registerTupleMethods()
	vm.registerRangeMethods()
}

func (vm *VM) intArg(method string, v Value) (int64, error) {
	if !v.IsInt() {
		return 0, vm.errorf("%s() argument must be an integer.", method)
	}
	return v.AsInt(), nil
}

func (vm *VM) strArg(method string, v Value) (string, error) {
	s, ok := vm.stringValue(v)
	if !ok {
		return "", vm.errorf("%s() argument must be a string.", method)
	}
	return s, nil
}

// indexOf returns the position of the first item equal to v, or -1.
func (vm *VM) indexOf(items []Value, v Value) int {
	for i, item := range items {
		if vm.Equal(item, v) {
			return i
		}
	}
	return -1
}

func (vm *VM) countOf(items []Value, v Value) int64 {
	var n int64
	for _, item := range items {
		if vm.Equal(item, v) {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

func str(vm *VM, v Value) string {
	return vm.heap.get(v).(*StringObj).s
}

// stringFunc adapts a string-to-string transform into a method.
func stringFunc(fn func(string) string) methodFunc {
	return func(vm *VM, recv Value, _ []Value) (Value, error) {
		return vm.NewString(fn(str(vm, recv))), nil
	}
}

// stringPredicate adapts a two-string predicate into a method.
func stringPredicate(name string, fn func(s, arg string) bool) methodFunc {
	return func(vm *VM, recv Value, args []Value) (Value, error) {
		arg, err := vm.strArg(name, args[0])
		if err != nil {
			return Nil, err
		}
		return FromBool(fn(str(vm, recv), arg)), nil
	}
}

func (vm *VM) registerStringMethods() {
	vm.defineMethod("string", "len", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromInt(int64(utf8.RuneCountInString(str(vm, recv)))), nil
	})
	vm.defineMethod("string", "is_empty", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromBool(str(vm, recv) == ""), nil
	})
	vm.defineMethod("string", "to_uppercase", 0, 0, stringFunc(strings.ToUpper))
	vm.defineMethod("string", "to_lowercase", 0, 0, stringFunc(strings.ToLower))
	vm.defineMethod("string", "trim", 0, 0, stringFunc(strings.TrimSpace))
	vm.defineMethod("string", "trim_start", 0, 0, stringFunc(func(s string) string {
		return strings.TrimLeft(s, " \t\r\n\v\f")
	}))
	vm.defineMethod("string", "trim_end", 0, 0, stringFunc(func(s string) string {
		return strings.TrimRight(s, " \t\r\n\v\f")
	}))
	vm.defineMethod("string", "reverse", 0, 0, stringFunc(func(s string) string {
		runes := []rune(s)
		slices.Reverse(runes)
		return string(runes)
	}))
	vm.defineMethod("string", "contains", 1, 1, stringPredicate("contains", strings.Contains))
	vm.defineMethod("string", "starts_with", 1, 1, stringPredicate("starts_with", strings.HasPrefix))
	vm.defineMethod("string", "ends_with", 1, 1, stringPredicate("ends_with", strings.HasSuffix))

	vm.defineMethod("string", "index_of", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		sub, err := vm.strArg("index_of", args[0])
		if err != nil {
			return Nil, err
		}
		s := str(vm, recv)
		i := strings.Index(s, sub)
		if i < 0 {
			return FromInt(-1), nil
		}
		return FromInt(int64(utf8.RuneCountInString(s[:i]))), nil
	})
	vm.defineMethod("string", "last_index_of", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		sub, err := vm.strArg("last_index_of", args[0])
		if err != nil {
			return Nil, err
		}
		s := str(vm, recv)
		i := strings.LastIndex(s, sub)
		if i < 0 {
			return FromInt(-1), nil
		}
		return FromInt(int64(utf8.RuneCountInString(s[:i]))), nil
	})
	vm.defineMethod("string", "split", 0, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		s := str(vm, recv)
		var parts []string
		if len(args) == 0 || args[0].IsNil() {
			parts = strings.Fields(s)
		} else {
			sep, err := vm.strArg("split", args[0])
			if err != nil {
				return Nil, err
			}
			parts = strings.Split(s, sep)
		}
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = vm.NewString(p)
		}
		return vm.newArray(items), nil
	}, "sep")
	vm.defineMethod("string", "join", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		return vm.join(args[0], str(vm, recv))
	})
	vm.defineMethod("string", "replace", 2, 2, func(vm *VM, recv Value, args []Value) (Value, error) {
		old, err := vm.strArg("replace", args[0])
		if err != nil {
			return Nil, err
		}
		repl, err := vm.strArg("replace", args[1])
		if err != nil {
			return Nil, err
		}
		return vm.NewString(strings.ReplaceAll(str(vm, recv), old, repl)), nil
	})
	vm.defineMethod("string", "repeat", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		n, err := vm.intArg("repeat", args[0])
		if err != nil {
			return Nil, err
		}
		if n < 0 {
			return Nil, vm.errorf("repeat() count must not be negative.")
		}
		return vm.NewString(strings.Repeat(str(vm, recv), int(n))), nil
	})
	vm.defineMethod("string", "substring", 1, 2, func(vm *VM, recv Value, args []Value) (Value, error) {
		end := Nil
		if len(args) == 2 {
			end = args[1]
		}
		return vm.slice(recv, args[0], end)
	}, "start", "end")
	vm.defineMethod("string", "slice", 0, 2, sliceMethod, "start", "end")
}

// join concatenates the display forms of an iterable's items.
func (vm *VM) join(iterable Value, sep string) (Value, error) {
	var b strings.Builder
	first := true
	err := vm.iterate(iterable, func(item Value) error {
		if !first {
			b.WriteString(sep)
		}
		first = false
		vm.format(&b, item, nil)
		return nil
	})
	if err != nil {
		return Nil, err
	}
	return vm.NewString(b.String()), nil
}

func sliceMethod(vm *VM, recv Value, args []Value) (Value, error) {
	start, end := Nil, Nil
	if len(args) > 0 {
		start = args[0]
	}
	if len(args) > 1 {
		end = args[1]
	}
	return vm.slice(recv, start, end)
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

func array(vm *VM, v Value) *ArrayObj {
	return vm.heap.get(v).(*ArrayObj)
}

func (vm *VM) registerArrayMethods() {
	appendItems := func(vm *VM, recv Value, args []Value) (Value, error) {
		a := array(vm, recv)
		a.items = append(a.items, args...)
		vm.heap.grew(16 * len(args))
		return recv, nil
	}
	vm.defineMethod("array", "append", 1, -1, appendItems)
	vm.defineMethod("array", "push", 1, -1, appendItems)

	vm.defineMethod("array", "len", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromInt(int64(len(array(vm, recv).items))), nil
	})
	vm.defineMethod("array", "is_empty", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromBool(len(array(vm, recv).items) == 0), nil
	})
	vm.defineMethod("array", "pop", 0, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		a := array(vm, recv)
		if len(a.items) == 0 {
			return Nil, vm.errorf("Cannot pop from an empty array.")
		}
		i := len(a.items) - 1
		if len(args) == 1 && !args[0].IsNil() {
			var err error
			if i, err = vm.normalizeIndex(args[0], len(a.items)); err != nil {
				return Nil, err
			}
		}
		v := a.items[i]
		a.items = slices.Delete(a.items, i, i+1)
		return v, nil
	}, "index")
	vm.defineMethod("array", "insert", 2, 2, func(vm *VM, recv Value, args []Value) (Value, error) {
		a := array(vm, recv)
		i, err := vm.intArg("insert", args[0])
		if err != nil {
			return Nil, err
		}
		n := int64(len(a.items))
		if i < 0 {
			i += n
		}
		i = max(0, min(i, n))
		a.items = slices.Insert(a.items, int(i), args[1])
		vm.heap.grew(16)
		return recv, nil
	})
	vm.defineMethod("array", "remove", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		a := array(vm, recv)
		i := vm.indexOf(a.items, args[0])
		if i < 0 {
			return Nil, vm.errorf("Value '%s' not found in array.", vm.Format(args[0]))
		}
		a.items = slices.Delete(a.items, i, i+1)
		return recv, nil
	})
	vm.defineMethod("array", "reverse", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		slices.Reverse(array(vm, recv).items)
		return recv, nil
	})
	vm.defineMethod("array", "sort", 0, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		a := array(vm, recv)
		reverse := len(args) == 1 && args[0].Truthy()
		var failed bool
		slices.SortStableFunc(a.items, func(x, y Value) int {
			c, ok := vm.compare(x, y)
			if !ok {
				failed = true
				return 0
			}
			if reverse {
				return -c
			}
			return c
		})
		if failed {
			return Nil, vm.errorf("sort() elements must be all numbers or all strings.")
		}
		return recv, nil
	}, "reverse")
	vm.defineMethod("array", "slice", 0, 2, sliceMethod, "start", "end")
	vm.defineMethod("array", "index", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		i := vm.indexOf(array(vm, recv).items, args[0])
		if i < 0 {
			return Nil, vm.errorf("Value '%s' not found in array.", vm.Format(args[0]))
		}
		return FromInt(int64(i)), nil
	})
	vm.defineMethod("array", "count", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		return FromInt(vm.countOf(array(vm, recv).items, args[0])), nil
	})
	vm.defineMethod("array", "contains", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		return FromBool(vm.indexOf(array(vm, recv).items, args[0]) >= 0), nil
	})
	vm.defineMethod("array", "clear", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		array(vm, recv).items = nil
		return recv, nil
	})
	vm.defineMethod("array", "extend", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		items, err := vm.collectItems(args[0])
		if err != nil {
			return Nil, err
		}
		a := array(vm, recv)
		a.items = append(a.items, items...)
		vm.heap.grew(16 * len(items))
		return recv, nil
	})
	vm.defineMethod("array", "join", 0, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		sep := ""
		if len(args) == 1 && !args[0].IsNil() {
			var err error
			if sep, err = vm.strArg("join", args[0]); err != nil {
				return Nil, err
			}
		}
		return vm.join(recv, sep)
	}, "sep")
}

// ---------------------------------------------------------------------------
// Maps and sets
// ---------------------------------------------------------------------------

func mapObj(vm *VM, v Value) *MapObj {
	return vm.heap.get(v).(*MapObj)
}

func setObj(vm *VM, v Value) *SetObj {
	return vm.heap.get(v).(*SetObj)
}

func (vm *VM) registerMapMethods() {
	vm.defineMethod("map", "len", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromInt(int64(mapObj(vm, recv).len())), nil
	})
	vm.defineMethod("map", "keys", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return vm.newArray(append([]Value(nil), mapObj(vm, recv).keys...)), nil
	})
	vm.defineMethod("map", "values", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return vm.newArray(append([]Value(nil), mapObj(vm, recv).vals...)), nil
	})
	vm.defineMethod("map", "items", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		m := mapObj(vm, recv)
		items := make([]Value, len(m.keys))
		for i := range m.keys {
			items[i] = vm.newTuple([]Value{m.keys[i], m.vals[i]})
		}
		return vm.newArray(items), nil
	})
	vm.defineMethod("map", "contains", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		_, ok := mapObj(vm, recv).find(vm.keyOf(args[0]))
		return FromBool(ok), nil
	})
	vm.defineMethod("map", "get", 1, 2, func(vm *VM, recv Value, args []Value) (Value, error) {
		m := mapObj(vm, recv)
		if i, ok := m.find(vm.keyOf(args[0])); ok {
			return m.vals[i], nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return Nil, nil
	}, "key", "default")
	vm.defineMethod("map", "remove", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		v, _ := mapObj(vm, recv).remove(vm.keyOf(args[0]))
		return v, nil
	})
	vm.defineMethod("map", "clear", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		mapObj(vm, recv).clear()
		return recv, nil
	})
}

func (vm *VM) registerSetMethods() {
	vm.defineMethod("set", "len", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromInt(int64(setObj(vm, recv).len())), nil
	})
	vm.defineMethod("set", "add", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		if setObj(vm, recv).put(vm.keyOf(args[0]), args[0], Nil) {
			vm.heap.grew(32)
		}
		return recv, nil
	})
	vm.defineMethod("set", "contains", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		_, ok := setObj(vm, recv).find(vm.keyOf(args[0]))
		return FromBool(ok), nil
	})
	vm.defineMethod("set", "remove", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		_, ok := setObj(vm, recv).remove(vm.keyOf(args[0]))
		return FromBool(ok), nil
	})

	// combine builds a new set from the receiver and another iterable.
	combine := func(keep func(inRecv, inOther bool) bool) methodFunc {
		return func(vm *VM, recv Value, args []Value) (Value, error) {
			other := &SetObj{}
			err := vm.iterate(args[0], func(item Value) error {
				other.put(vm.keyOf(item), item, Nil)
				return nil
			})
			if err != nil {
				return Nil, err
			}
			s := setObj(vm, recv)
			out := &SetObj{}
			for _, item := range s.keys {
				_, inOther := other.find(vm.keyOf(item))
				if keep(true, inOther) {
					out.put(vm.keyOf(item), item, Nil)
				}
			}
			for _, item := range other.keys {
				k := vm.keyOf(item)
				if _, inRecv := s.find(k); !inRecv && keep(false, true) {
					out.put(k, item, Nil)
				}
			}
			return vm.alloc(out), nil
		}
	}
	vm.defineMethod("set", "union", 1, 1, combine(func(a, b bool) bool { return a || b }))
	vm.defineMethod("set", "intersection", 1, 1, combine(func(a, b bool) bool { return a && b }))
	vm.defineMethod("set", "difference", 1, 1, combine(func(a, b bool) bool { return a && !b }))
}

// ---------------------------------------------------------------------------
// Tuples and ranges
// ---------------------------------------------------------------------------

func (vm *VM) registerTupleMethods() {
	items := func(vm *VM, v Value) []Value {
		return vm.heap.get(v).(*TupleObj).items
	}
	vm.defineMethod("tuple", "len", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		return FromInt(int64(len(items(vm, recv)))), nil
	})
	vm.defineMethod("tuple", "contains", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		return FromBool(vm.indexOf(items(vm, recv), args[0]) >= 0), nil
	})
	vm.defineMethod("tuple", "index", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		i := vm.indexOf(items(vm, recv), args[0])
		if i < 0 {
			return Nil, vm.errorf("Value '%s' not found in tuple.", vm.Format(args[0]))
		}
		return FromInt(int64(i)), nil
	})
	vm.defineMethod("tuple", "count", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		return FromInt(vm.countOf(items(vm, recv), args[0])), nil
	})
}

func (vm *VM) registerRangeMethods() {
	rng := func(vm *VM, v Value) *RangeObj {
		return vm.heap.get(v).(*RangeObj)
	}
	vm.defineMethod("range", "contains", 1, 1, func(vm *VM, recv Value, args []Value) (Value, error) {
		n := args[0]
		if n.IsFloat() && n.AsFloat() == float64(int64(n.AsFloat())) {
			n = FromInt(int64(n.AsFloat()))
		}
		return FromBool(n.IsInt() && rng(vm, recv).contains(n.AsInt())), nil
	})
	vm.defineMethod("range", "len", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		r := rng(vm, recv)
		if r.open {
			return Nil, vm.errorf("len() of an open-ended range is undefined.")
		}
		return FromInt(r.length()), nil
	})
	vm.defineMethod("range", "to_array", 0, 0, func(vm *VM, recv Value, _ []Value) (Value, error) {
		items, err := vm.collectItems(recv)
		if err != nil {
			return Nil, err
		}
		return vm.newArray(items), nil
	})
}
