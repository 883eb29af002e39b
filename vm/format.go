package vm

import (
	"math"
	"strconv"
	"strings"
)

// Format returns the display text of v, as print shows it.
func (vm *VM) Format(v Value) string {
	var b strings.Builder
	vm.format(&b, v, nil)
	return b.String()
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// format writes v to b. visiting holds the containers being printed so
// self-referencing collections print as an ellipsis.
func (vm *VM) format(b *strings.Builder, v Value, visiting map[Value]bool) {
	switch v.kind {
	case KindNil:
		b.WriteString("nil")
		return
	case KindBool:
		b.WriteString(strconv.FormatBool(v.AsBool()))
		return
	case KindInt:
		b.WriteString(strconv.FormatInt(v.AsInt(), 10))
		return
	case KindFloat:
		b.WriteString(formatFloat(v.AsFloat()))
		return
	}

	obj := vm.heap.get(v)
	switch o := obj.(type) {
	case *StringObj:
		b.WriteString(o.s)
		return
	case *RangeObj:
		b.WriteString(strconv.FormatInt(o.start, 10))
		switch {
		case o.open:
			b.WriteString("..")
		case o.inclusive:
			b.WriteString("..=")
			b.WriteString(strconv.FormatInt(o.end, 10))
		default:
			b.WriteString("..")
			b.WriteString(strconv.FormatInt(o.end, 10))
		}
		return
	case *ClosureObj:
		b.WriteString("<fn " + o.fn.DisplayName() + ">")
		return
	case *NativeObj:
		b.WriteString("<native fn " + o.name + ">")
		return
	case *BoundMethodObj:
		vm.format(b, o.method, visiting)
		return
	case *ClassObj:
		b.WriteString(o.name)
		return
	case *EnumObj:
		b.WriteString("enum " + o.name)
		return
	case *VariantObj:
		b.WriteString(o.enum.name + "::" + o.name)
		if !o.payload.IsNil() {
			b.WriteByte('(')
			vm.format(b, o.payload, visiting)
			b.WriteByte(')')
		}
		return
	case *ErrorObj:
		vm.format(b, o.payload, visiting)
		return
	case *UpvalueObj:
		b.WriteString("<upvalue>")
		return
	case nil:
		b.WriteString("<freed>")
		return
	}

	if visiting[v] {
		b.WriteString("...")
		return
	}
	if visiting == nil {
		visiting = make(map[Value]bool)
	}
	visiting[v] = true
	defer delete(visiting, v)

	switch o := obj.(type) {
	case *ArrayObj:
		b.WriteByte('[')
		vm.formatItems(b, o.items, visiting)
		b.WriteByte(']')
	case *TupleObj:
		b.WriteByte('(')
		vm.formatItems(b, o.items, visiting)
		if len(o.items) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *SetObj:
		b.WriteString("{")
		vm.formatItems(b, o.keys, visiting)
		b.WriteString("}")
	case *MapObj:
		b.WriteByte('{')
		for i := range o.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			vm.format(b, o.keys[i], visiting)
			b.WriteString(": ")
			vm.format(b, o.vals[i], visiting)
		}
		b.WriteByte('}')
	case *InstanceObj:
		b.WriteString(o.class.name)
		b.WriteString(" {")
		first := true
		o.each(func(name string, fv Value) {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(name)
			b.WriteString(": ")
			vm.format(b, fv, visiting)
		})
		b.WriteByte('}')
	}
}

func (vm *VM) formatItems(b *strings.Builder, items []Value, visiting map[Value]bool) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		vm.format(b, item, visiting)
	}
}

// typeName returns the script-visible type name of v.
func (vm *VM) typeName(v Value) string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	}
	if obj := vm.heap.get(v); obj != nil {
		return obj.typeName()
	}
	return "freed"
}
