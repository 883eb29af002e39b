package vm

// ---------------------------------------------------------------------------
// Mark-sweep collector
// ---------------------------------------------------------------------------

// Collect runs a full collection cycle. It is safe to call between runs;
// the interpreter also collects on its own between instructions.
func (vm *VM) Collect() {
	vm.collect()
}

// collect marks everything reachable from the roots and frees the rest.
// It must only run between instructions, when every live value is either
// on the stack or reachable from another root.
func (vm *VM) collect() {
	h := vm.heap
	beforeBytes, beforeObjects := h.bytes, h.live

	gray := make([]uint32, 0, 256)
	mark := func(v Value) {
		if v.kind != KindObject {
			return
		}
		idx := v.refIndex()
		if int(idx) >= len(h.slots) {
			return
		}
		slot := &h.slots[idx]
		if slot.obj == nil || slot.marked || slot.gen != v.refGen() {
			return
		}
		slot.marked = true
		gray = append(gray, idx)
	}

	vm.markRoots(mark)
	for len(gray) > 0 {
		idx := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		h.slots[idx].obj.trace(mark)
	}

	live, bytes, freed := 0, 0, 0
	for i := range h.slots {
		slot := &h.slots[i]
		if slot.obj == nil {
			continue
		}
		if slot.marked {
			slot.marked = false
			live++
			bytes += objectHeader + slot.obj.size()
			continue
		}
		slot.obj = nil
		slot.gen++
		h.free = append(h.free, uint32(i))
		freed++
	}

	h.live = live
	h.bytes = bytes
	h.freed += freed
	h.collections++
	h.nextGC = int(float64(bytes) * vm.cfg.GCGrowthFactor)
	if h.nextGC < vm.cfg.GCInitialThreshold {
		h.nextGC = vm.cfg.GCInitialThreshold
	}

	if !vm.cfg.GCStress {
		log.Debugf("vm %s: gc #%d freed %d of %d objects, heap %d -> %d bytes, next at %d",
			vm.id, h.collections, freed, beforeObjects, beforeBytes, bytes, h.nextGC)
	}
}

// markRoots reports every root: the live stack, active frames, open
// upvalues, globals, natives, builtin methods, materialized constants,
// pinned values and the last result handed to the embedder.
func (vm *VM) markRoots(mark func(Value)) {
	for _, v := range vm.stack[:vm.sp] {
		mark(v)
	}
	for i := 0; i < vm.fc; i++ {
		mark(vm.frames[i].callee)
	}
	for _, up := range vm.openUpvalues {
		mark(up)
	}
	for _, v := range vm.globals {
		mark(v)
	}
	for _, v := range vm.natives {
		mark(v)
	}
	for _, table := range vm.methods {
		for _, v := range table {
			mark(v)
		}
	}
	for _, consts := range vm.constants {
		for _, v := range consts {
			mark(v)
		}
	}
	for _, v := range vm.pins {
		mark(v)
	}
	mark(vm.result)
	mark(vm.nativeErrorClass)
}
