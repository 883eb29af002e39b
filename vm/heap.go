package vm

// ---------------------------------------------------------------------------
// Heap: generation-checked object arena
// ---------------------------------------------------------------------------

// Object is a heap-allocated value owned by one VM.
type Object interface {
	// typeName is the script-visible type name used by type() and errors.
	typeName() string
	// trace reports every Value the object references.
	trace(mark func(Value))
	// size estimates the object's footprint in bytes for GC pacing.
	size() int
}

type heapSlot struct {
	obj    Object
	gen    uint32
	marked bool
}

// Heap is an arena of objects addressed by index. Freed slots bump their
// generation so stale references resolve to nothing instead of to a new
// occupant.
type Heap struct {
	slots []heapSlot
	free  []uint32

	live        int // objects currently allocated
	bytes       int // estimated bytes, including garbage since the last cycle
	nextGC      int // bytes threshold for the next cycle
	collections int
	freed       int // objects reclaimed over the heap's lifetime
}

// HeapStats is a snapshot of collector state.
type HeapStats struct {
	Objects     int
	Bytes       int
	NextGC      int
	Collections int
	Freed       int
}

const objectHeader = 32

func newHeap(threshold int) *Heap {
	return &Heap{
		slots:  make([]heapSlot, 0, 1024),
		nextGC: threshold,
	}
}

// alloc stores obj and returns a reference to it. Allocation never
// triggers a collection; the interpreter collects between instructions.
func (h *Heap) alloc(obj Object) Value {
	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[idx].obj = obj
	} else {
		idx = uint32(len(h.slots))
		h.slots = append(h.slots, heapSlot{obj: obj, gen: 1})
	}
	h.live++
	h.bytes += objectHeader + obj.size()
	return fromRef(idx, h.slots[idx].gen)
}

// get resolves a reference. It returns nil for non-objects and for stale
// references.
func (h *Heap) get(v Value) Object {
	if v.kind != KindObject {
		return nil
	}
	idx := v.refIndex()
	if int(idx) >= len(h.slots) {
		return nil
	}
	slot := &h.slots[idx]
	if slot.gen != v.refGen() {
		return nil
	}
	return slot.obj
}

// grew accounts for an object that grew in place, such as an array append.
func (h *Heap) grew(delta int) {
	h.bytes += delta
}

// shouldCollect reports whether allocation since the last cycle has
// crossed the pacing threshold.
func (h *Heap) shouldCollect() bool {
	return h.bytes > h.nextGC
}

func (h *Heap) stats() HeapStats {
	return HeapStats{
		Objects:     h.live,
		Bytes:       h.bytes,
		NextGC:      h.nextGC,
		Collections: h.collections,
		Freed:       h.freed,
	}
}
