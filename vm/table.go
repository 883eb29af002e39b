package vm

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Ordered hash table shared by maps and sets
// ---------------------------------------------------------------------------

const (
	keyNil uint8 = iota
	keyBool
	keyInt
	keyFloat
	keyString
	keyTuple
	keyArray
	keyMap
	keySet
	keyRange
	keyCycle
	keyRef
)

// mapKey is the normalized, comparable form of a Value used for hashing.
// Integral floats normalize to ints so 1 and 1.0 name the same entry.
// Strings, containers and ranges hash by content; other objects by
// identity.
type mapKey struct {
	tag  uint8
	bits uint64
	str  string
}

// table keeps entries in insertion order.
type table struct {
	keys  []Value
	vals  []Value
	index map[mapKey]int
}

func (t *table) len() int { return len(t.keys) }

func (t *table) find(k mapKey) (int, bool) {
	i, ok := t.index[k]
	return i, ok
}

// put inserts or replaces an entry and reports whether it was added.
func (t *table) put(k mapKey, key, val Value) bool {
	if i, ok := t.index[k]; ok {
		t.vals[i] = val
		return false
	}
	if t.index == nil {
		t.index = make(map[mapKey]int)
	}
	t.index[k] = len(t.keys)
	t.keys = append(t.keys, key)
	t.vals = append(t.vals, val)
	return true
}

// remove deletes an entry, preserving the order of the rest.
func (t *table) remove(k mapKey) (Value, bool) {
	i, ok := t.index[k]
	if !ok {
		return Nil, false
	}
	val := t.vals[i]
	delete(t.index, k)
	t.keys = append(t.keys[:i], t.keys[i+1:]...)
	t.vals = append(t.vals[:i], t.vals[i+1:]...)
	for key, j := range t.index {
		if j > i {
			t.index[key] = j - 1
		}
	}
	return val, true
}

func (t *table) clear() {
	t.keys = nil
	t.vals = nil
	t.index = nil
}

// keyOf normalizes v for use as a map key or set element. Keys follow
// Equal: containers and ranges key by content, so a container mutated
// after insertion keeps the key it had when inserted.
func (vm *VM) keyOf(v Value) mapKey {
	return vm.key(v, nil)
}

// key builds the normalized key of v. visiting holds the containers being
// encoded so self-referencing ones terminate.
func (vm *VM) key(v Value, visiting map[Value]bool) mapKey {
	switch v.kind {
	case KindNil:
		return mapKey{tag: keyNil}
	case KindBool:
		return mapKey{tag: keyBool, bits: v.bits}
	case KindInt:
		return mapKey{tag: keyInt, bits: v.bits}
	case KindFloat:
		f := v.AsFloat()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return mapKey{tag: keyInt, bits: uint64(int64(f))}
		}
		return mapKey{tag: keyFloat, bits: v.bits}
	}

	obj := vm.heap.get(v)
	switch o := obj.(type) {
	case *StringObj:
		return mapKey{tag: keyString, str: o.s}
	case *ErrorObj:
		return vm.key(o.payload, visiting)
	case *RangeObj:
		var b strings.Builder
		b.WriteString(strconv.FormatInt(o.start, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(o.end, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(o.inclusive))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(o.open))
		return mapKey{tag: keyRange, str: b.String()}
	case *TupleObj, *ArrayObj, *MapObj, *SetObj:
		if visiting[v] {
			return mapKey{tag: keyCycle}
		}
		if visiting == nil {
			visiting = make(map[Value]bool)
		}
		visiting[v] = true
		defer delete(visiting, v)
	default:
		return mapKey{tag: keyRef, bits: v.bits}
	}

	switch o := obj.(type) {
	case *TupleObj:
		return mapKey{tag: keyTuple, bits: uint64(len(o.items)), str: vm.encodeSeq(o.items, visiting)}
	case *ArrayObj:
		return mapKey{tag: keyArray, bits: uint64(len(o.items)), str: vm.encodeSeq(o.items, visiting)}
	case *MapObj:
		entries := make([]string, len(o.keys))
		for i := range o.keys {
			var b strings.Builder
			writeKey(&b, vm.key(o.keys[i], visiting))
			writeKey(&b, vm.key(o.vals[i], visiting))
			entries[i] = b.String()
		}
		// Insertion order does not affect equality.
		slices.Sort(entries)
		return mapKey{tag: keyMap, bits: uint64(len(entries)), str: strings.Join(entries, "")}
	case *SetObj:
		entries := make([]string, len(o.keys))
		for i, k := range o.keys {
			var b strings.Builder
			writeKey(&b, vm.key(k, visiting))
			entries[i] = b.String()
		}
		slices.Sort(entries)
		return mapKey{tag: keySet, bits: uint64(len(entries)), str: strings.Join(entries, "")}
	}
	return mapKey{tag: keyRef, bits: v.bits}
}

func (vm *VM) encodeSeq(items []Value, visiting map[Value]bool) string {
	var b strings.Builder
	for _, item := range items {
		writeKey(&b, vm.key(item, visiting))
	}
	return b.String()
}

// writeKey appends a self-delimiting encoding of k.
func writeKey(b *strings.Builder, k mapKey) {
	b.WriteByte(k.tag)
	b.WriteString(strconv.FormatUint(k.bits, 10))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(k.str)))
	b.WriteByte(':')
	b.WriteString(k.str)
}
