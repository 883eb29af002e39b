package vm

import "github.com/chazu/aiscript/pkg/bytecode"

// ---------------------------------------------------------------------------
// Field slot caching
// ---------------------------------------------------------------------------

// fieldCache remembers, for one property instruction, which layout slot
// the named field occupies in the last receiver class seen there. Property
// sites are nearly always monomorphic, so one entry is enough; a class
// change simply refreshes it.
type fieldCache struct {
	class *ClassObj
	slot  int // -1 when the name is not a declared field
}

// fieldCachesFor returns fn's cache, one entry per code offset, shared by
// every frame running fn.
func (vm *VM) fieldCachesFor(fn *bytecode.Function) []fieldCache {
	if c, ok := vm.fieldCaches[fn]; ok {
		return c
	}
	c := make([]fieldCache, len(fn.Chunk.Code))
	vm.fieldCaches[fn] = c
	return c
}

// slotFor returns the layout slot of name in class.
func (c *fieldCache) slotFor(class *ClassObj, name string) (int, bool) {
	if c.class != class {
		slot, ok := class.index[name]
		if !ok {
			slot = -1
		}
		c.class, c.slot = class, slot
	}
	return c.slot, c.slot >= 0
}

// cachedGet reads a declared, assigned field through the cache at offset
// at. It reports false when the slow path must run.
func (vm *VM) cachedGet(caches []fieldCache, at int, recv Value, name string) (Value, bool) {
	inst, ok := vm.heap.get(recv).(*InstanceObj)
	if !ok {
		return Nil, false
	}
	slot, ok := caches[at].slotFor(inst.class, name)
	if !ok || !inst.present[slot] {
		return Nil, false
	}
	return inst.slots[slot], true
}

// cachedSet assigns a declared field through the cache at offset at.
func (vm *VM) cachedSet(caches []fieldCache, at int, recv Value, name string, v Value) bool {
	inst, ok := vm.heap.get(recv).(*InstanceObj)
	if !ok {
		return false
	}
	slot, ok := caches[at].slotFor(inst.class, name)
	if !ok {
		return false
	}
	inst.slots[slot] = v
	inst.present[slot] = true
	return true
}
