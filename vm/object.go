package vm

import (
	"github.com/chazu/aiscript/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Strings and collections
// ---------------------------------------------------------------------------

// StringObj is an immutable string.
type StringObj struct {
	s string
}

func (o *StringObj) typeName() string  { return "string" }
func (o *StringObj) trace(func(Value)) {}
func (o *StringObj) size() int         { return len(o.s) }

// ArrayObj is a mutable ordered sequence.
type ArrayObj struct {
	items []Value
}

func (o *ArrayObj) typeName() string { return "array" }
func (o *ArrayObj) size() int        { return 16 * cap(o.items) }
func (o *ArrayObj) trace(mark func(Value)) {
	for _, v := range o.items {
		mark(v)
	}
}

// TupleObj is a fixed-size immutable sequence.
type TupleObj struct {
	items []Value
}

func (o *TupleObj) typeName() string { return "tuple" }
func (o *TupleObj) size() int        { return 16 * len(o.items) }
func (o *TupleObj) trace(mark func(Value)) {
	for _, v := range o.items {
		mark(v)
	}
}

// MapObj is an insertion-ordered map.
type MapObj struct {
	table
}

func (o *MapObj) typeName() string { return "map" }
func (o *MapObj) size() int        { return 48 * len(o.keys) }
func (o *MapObj) trace(mark func(Value)) {
	for i := range o.keys {
		mark(o.keys[i])
		mark(o.vals[i])
	}
}

// SetObj is an insertion-ordered set.
type SetObj struct {
	table
}

func (o *SetObj) typeName() string { return "set" }
func (o *SetObj) size() int        { return 32 * len(o.keys) }
func (o *SetObj) trace(mark func(Value)) {
	for _, v := range o.keys {
		mark(v)
	}
}

// RangeObj is an integer range. An open range has no end.
type RangeObj struct {
	start     int64
	end       int64
	inclusive bool
	open      bool
}

func (o *RangeObj) typeName() string  { return "range" }
func (o *RangeObj) trace(func(Value)) {}
func (o *RangeObj) size() int         { return 24 }

// contains reports whether n lies within the range.
func (o *RangeObj) contains(n int64) bool {
	if n < o.start {
		return false
	}
	switch {
	case o.open:
		return true
	case o.inclusive:
		return n <= o.end
	}
	return n < o.end
}

// length returns the element count, or -1 for open ranges.
func (o *RangeObj) length() int64 {
	if o.open {
		return -1
	}
	end := o.end
	if o.inclusive {
		end++
	}
	if end <= o.start {
		return 0
	}
	return end - o.start
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// ClosureObj is a function prototype paired with its captured variables.
// gmap translates the prototype's global slots into VM global slots.
type ClosureObj struct {
	fn       *bytecode.Function
	upvalues []Value
	gmap     []int
}

func (o *ClosureObj) typeName() string { return "function" }
func (o *ClosureObj) size() int        { return 16 * len(o.upvalues) }
func (o *ClosureObj) trace(mark func(Value)) {
	for _, v := range o.upvalues {
		mark(v)
	}
}

// UpvalueObj is a captured variable. While open it aliases a stack slot;
// once closed it owns the value.
type UpvalueObj struct {
	slot   int
	open   bool
	closed Value
}

func (o *UpvalueObj) typeName() string { return "upvalue" }
func (o *UpvalueObj) size() int        { return 24 }
func (o *UpvalueObj) trace(mark func(Value)) {
	if !o.open {
		mark(o.closed)
	}
}

// BoundMethodObj pairs a method with the receiver it was read from.
type BoundMethodObj struct {
	receiver Value
	method   Value
}

func (o *BoundMethodObj) typeName() string { return "function" }
func (o *BoundMethodObj) size() int        { return 32 }
func (o *BoundMethodObj) trace(mark func(Value)) {
	mark(o.receiver)
	mark(o.method)
}

// NativeObj is a function implemented in Go. Exactly one of host, builtin
// and method is set. minArgs and maxArgs bound the argument count; a
// negative maxArgs accepts any number. keywords names argument positions
// that may also be passed by keyword.
type NativeObj struct {
	name     string
	minArgs  int
	maxArgs  int
	keywords []string
	host     NativeFunc
	builtin  builtinFunc
	method   methodFunc
}

func (o *NativeObj) typeName() string  { return "function" }
func (o *NativeObj) trace(func(Value)) {}
func (o *NativeObj) size() int         { return 48 }

// arity returns the fixed argument count, or -1 when it varies.
func (o *NativeObj) arity() int {
	if o.minArgs == o.maxArgs {
		return o.minArgs
	}
	return -1
}

// ---------------------------------------------------------------------------
// Classes and instances
// ---------------------------------------------------------------------------

// ClassObj is a class. Its layout and method table are flattened: a
// subclass copies its superclass's at inheritance time and overlays its
// own entries.
type ClassObj struct {
	name    string
	isError bool
	doc     string
	super   Value
	fields  []bytecode.FieldDecl
	layout  []string
	index   map[string]int
	methods map[string]Value
}

func newClass(t *bytecode.ClassTemplate) *ClassObj {
	c := &ClassObj{
		name:    t.Name,
		isError: t.IsError,
		doc:     t.Doc,
		fields:  append([]bytecode.FieldDecl(nil), t.Fields...),
		index:   make(map[string]int, len(t.Layout)),
		methods: make(map[string]Value),
	}
	for _, name := range t.Layout {
		c.addSlot(name)
	}
	return c
}

func (o *ClassObj) typeName() string { return "class" }
func (o *ClassObj) size() int        { return 64 + 16*len(o.layout) + 32*len(o.methods) }
func (o *ClassObj) trace(mark func(Value)) {
	mark(o.super)
	for _, m := range o.methods {
		mark(m)
	}
}

func (o *ClassObj) addSlot(name string) {
	if _, ok := o.index[name]; ok {
		return
	}
	o.index[name] = len(o.layout)
	o.layout = append(o.layout, name)
}

// inherit copies super's layout, field declarations and methods. Own
// fields keep their position after the inherited ones.
func (o *ClassObj) inherit(superRef Value, super *ClassObj) {
	own := o.layout
	ownFields := o.fields

	o.super = superRef
	o.isError = o.isError || super.isError
	o.layout = nil
	o.index = make(map[string]int, len(super.layout)+len(own))
	for _, name := range super.layout {
		o.addSlot(name)
	}
	for _, name := range own {
		o.addSlot(name)
	}

	o.fields = append([]bytecode.FieldDecl(nil), super.fields...)
	for _, f := range ownFields {
		replaced := false
		for i := range o.fields {
			if o.fields[i].Name == f.Name {
				o.fields[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			o.fields = append(o.fields, f)
		}
	}

	for name, m := range super.methods {
		if _, ok := o.methods[name]; !ok {
			o.methods[name] = m
		}
	}
}

// InstanceObj is an instance of a class. Declared and constructor-assigned
// fields live in slots indexed by the class layout; any other assigned
// names live in the extra table.
type InstanceObj struct {
	classRef Value
	class    *ClassObj
	slots    []Value
	present  []bool

	extraNames []string
	extraVals  []Value
}

func (o *InstanceObj) typeName() string { return o.class.name }
func (o *InstanceObj) size() int {
	return 16*len(o.slots) + len(o.present) + 32*len(o.extraNames)
}
func (o *InstanceObj) trace(mark func(Value)) {
	mark(o.classRef)
	for _, v := range o.slots {
		mark(v)
	}
	for _, v := range o.extraVals {
		mark(v)
	}
}

// field returns the value of an assigned field.
func (o *InstanceObj) field(name string) (Value, bool) {
	if i, ok := o.class.index[name]; ok && o.present[i] {
		return o.slots[i], true
	}
	for i, n := range o.extraNames {
		if n == name {
			return o.extraVals[i], true
		}
	}
	return Nil, false
}

// setField assigns a field. It reports whether a new extra entry was added.
func (o *InstanceObj) setField(name string, v Value) bool {
	if i, ok := o.class.index[name]; ok {
		o.slots[i] = v
		o.present[i] = true
		return false
	}
	for i, n := range o.extraNames {
		if n == name {
			o.extraVals[i] = v
			return false
		}
	}
	o.extraNames = append(o.extraNames, name)
	o.extraVals = append(o.extraVals, v)
	return true
}

// each visits assigned fields: layout order first, then extras in
// assignment order.
func (o *InstanceObj) each(fn func(name string, v Value)) {
	for i, name := range o.class.layout {
		if o.present[i] {
			fn(name, o.slots[i])
		}
	}
	for i, name := range o.extraNames {
		fn(name, o.extraVals[i])
	}
}

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// EnumObj is an enum type.
type EnumObj struct {
	name     string
	isError  bool
	kind     bytecode.PayloadKind
	variants []Value
	byName   map[string]int
	methods  map[string]Value
}

func (o *EnumObj) typeName() string { return "enum" }
func (o *EnumObj) size() int        { return 64 + 24*len(o.variants) + 32*len(o.methods) }
func (o *EnumObj) trace(mark func(Value)) {
	for _, v := range o.variants {
		mark(v)
	}
	for _, m := range o.methods {
		mark(m)
	}
}

// VariantObj is one declared variant of an enum.
type VariantObj struct {
	enumRef Value
	enum    *EnumObj
	index   int
	name    string
	payload Value
}

func (o *VariantObj) typeName() string { return o.enum.name }
func (o *VariantObj) size() int        { return 48 }
func (o *VariantObj) trace(mark func(Value)) {
	mark(o.enumRef)
	mark(o.payload)
}

// ---------------------------------------------------------------------------
// Error values
// ---------------------------------------------------------------------------

// ErrorObj is a raised script error. Its payload is an error-enum variant
// or an error-class instance.
type ErrorObj struct {
	payload Value
}

func (o *ErrorObj) typeName() string { return "error" }
func (o *ErrorObj) size() int        { return 16 }
func (o *ErrorObj) trace(mark func(Value)) {
	mark(o.payload)
}
