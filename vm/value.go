package vm

import "math"

// Kind identifies the representation of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindObject
)

var kindNames = [...]string{"nil", "bool", "int", "float", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is an immutable script value: nil, a bool, a 64-bit integer, a
// 64-bit float, or a reference into the owning VM's heap.
//
// Object references encode an arena index in the high 32 bits and the
// slot generation in the low 32 bits. A reference whose generation no
// longer matches its slot is stale and resolves to no object.
type Value struct {
	kind Kind
	bits uint64
}

// Pre-defined values
var (
	Nil   = Value{}
	True  = Value{kind: KindBool, bits: 1}
	False = Value{kind: KindBool}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromBool creates a Value from a bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromInt creates a Value from an int64.
func FromInt(n int64) Value {
	return Value{kind: KindInt, bits: uint64(n)}
}

// FromFloat creates a Value from a float64.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, bits: math.Float64bits(f)}
}

func fromRef(index, gen uint32) Value {
	return Value{kind: KindObject, bits: uint64(index)<<32 | uint64(gen)}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the representation tag of v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsInt() bool    { return v.kind == KindInt }
func (v Value) IsFloat() bool  { return v.kind == KindFloat }
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsNumber reports whether v is an int or a float.
func (v Value) IsNumber() bool {
	return v.kind == KindInt || v.kind == KindFloat
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// AsBool returns the bool payload; false for non-bools.
func (v Value) AsBool() bool {
	return v.kind == KindBool && v.bits != 0
}

// AsInt returns the integer payload; 0 for non-ints.
func (v Value) AsInt() int64 {
	if v.kind != KindInt {
		return 0
	}
	return int64(v.bits)
}

// AsFloat returns the float payload; 0 for non-floats.
func (v Value) AsFloat() float64 {
	if v.kind != KindFloat {
		return 0
	}
	return math.Float64frombits(v.bits)
}

// AsNumber returns v as a float64, promoting ints.
func (v Value) AsNumber() float64 {
	switch v.kind {
	case KindInt:
		return float64(int64(v.bits))
	case KindFloat:
		return math.Float64frombits(v.bits)
	}
	return 0
}

func (v Value) refIndex() uint32 { return uint32(v.bits >> 32) }
func (v Value) refGen() uint32   { return uint32(v.bits) }

// Truthy reports whether v counts as true in a condition. Only nil and
// false are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.bits != 0
	}
	return true
}

// Identical reports whether a and b are the same value: equal scalars or
// references to the same heap object.
func Identical(a, b Value) bool {
	if a.kind == KindFloat && b.kind == KindFloat {
		return a.AsFloat() == b.AsFloat()
	}
	return a == b
}
