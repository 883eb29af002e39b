package vm

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// ---------------------------------------------------------------------------
// Host marshalling
// ---------------------------------------------------------------------------

// ErrCyclicValue is returned when converting a value that contains itself.
var ErrCyclicValue = errors.New("cyclic value")

// ToHost converts a script value to plain Go data: nil, bool, int64,
// float64, string, []any and map[string]any. Tuples and sets become
// slices. Maps convert only when every key is a string. Instances become maps of their fields in declaration order,
// then assignment order; variants and error values convert as their
// payload. Functions and classes have no host form.
func (vm *VM) ToHost(v Value) (any, error) {
	return vm.toHost(v, make(map[Value]bool))
}

func (vm *VM) toHost(v Value, visiting map[Value]bool) (any, error) {
	switch v.kind {
	case KindNil:
		return nil, nil
	case KindBool:
		return v.AsBool(), nil
	case KindInt:
		return v.AsInt(), nil
	case KindFloat:
		return v.AsFloat(), nil
	}

	obj := vm.heap.get(v)
	switch o := obj.(type) {
	case *StringObj:
		return o.s, nil
	case *VariantObj:
		return vm.toHost(o.payload, visiting)
	case *ErrorObj:
		return vm.toHost(o.payload, visiting)
	case *RangeObj:
		if o.open {
			return nil, fmt.Errorf("cannot convert open range %s", vm.Format(v))
		}
		out := make([]any, 0, o.length())
		for i := int64(0); i < o.length(); i++ {
			out = append(out, o.start+i)
		}
		return out, nil
	}

	if visiting[v] {
		return nil, ErrCyclicValue
	}
	visiting[v] = true
	defer delete(visiting, v)

	switch o := obj.(type) {
	case *ArrayObj:
		return vm.hostSlice(o.items, visiting)
	case *TupleObj:
		return vm.hostSlice(o.items, visiting)
	case *SetObj:
		return vm.hostSlice(o.keys, visiting)
	case *MapObj:
		out := make(map[string]any, len(o.keys))
		for i, key := range o.keys {
			name, ok := vm.stringValue(key)
			if !ok {
				return nil, fmt.Errorf("cannot convert map with %s key to a host value", vm.typeName(key))
			}
			x, err := vm.toHost(o.vals[i], visiting)
			if err != nil {
				return nil, err
			}
			out[name] = x
		}
		return out, nil
	case *InstanceObj:
		out := make(map[string]any, len(o.slots)+len(o.extraNames))
		var err error
		o.each(func(name string, fv Value) {
			if err != nil {
				return
			}
			var x any
			if x, err = vm.toHost(fv, visiting); err == nil {
				out[name] = x
			}
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %s to a host value", vm.typeName(v))
}

func (vm *VM) hostSlice(items []Value, visiting map[Value]bool) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		x, err := vm.toHost(item, visiting)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// FromHost converts Go data to a script value. It accepts the types ToHost
// produces plus any integer, float, slice, array or string-keyed map type.
// A Value passes through unchanged.
func (vm *VM) FromHost(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Nil, nil
	case Value:
		return t, nil
	case bool:
		return FromBool(t), nil
	case int:
		return FromInt(int64(t)), nil
	case int64:
		return FromInt(t), nil
	case float64:
		return FromFloat(t), nil
	case string:
		return vm.NewString(t), nil
	case []byte:
		return vm.NewString(string(t)), nil
	case error:
		return vm.NewString(t.Error()), nil
	}
	return vm.fromReflect(reflect.ValueOf(x))
}

// fromReflect converts the remaining kinds. Containers allocate their
// elements before the container itself and are not rooted meanwhile,
// which is safe because collection only runs between instructions.
func (vm *VM) fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return Nil, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Nil, nil
		}
		return vm.FromHost(rv.Elem().Interface())
	case reflect.Bool:
		return FromBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Nil, fmt.Errorf("%d overflows a 64-bit signed integer", u)
		}
		return FromInt(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return FromFloat(rv.Float()), nil
	case reflect.String:
		return vm.NewString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Nil, nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := vm.FromHost(rv.Index(i).Interface())
			if err != nil {
				return Nil, err
			}
			items[i] = v
		}
		return vm.newArray(items), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Nil, fmt.Errorf("cannot convert map with %s keys", rv.Type().Key())
		}
		// Host maps are unordered; keys are inserted sorted so conversion
		// is deterministic.
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		m := &MapObj{}
		for _, k := range keys {
			key := vm.NewString(k.String())
			v, err := vm.FromHost(rv.MapIndex(k).Interface())
			if err != nil {
				return Nil, err
			}
			m.put(vm.keyOf(key), key, v)
		}
		return vm.alloc(m), nil
	}
	return Nil, fmt.Errorf("cannot convert %s to a script value", rv.Type())
}
