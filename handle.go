package kiln

// AoSHandle is a packed reference into the handle table: the low 16 bits
// are a slot index, the high 16 bits are that slot's generation at the
// time the handle was issued. Schema-less ("AoS") component columns store
// one AoSHandle per row in place of inline field columns.
type AoSHandle uint32

func packHandle(index, generation uint16) AoSHandle {
	return AoSHandle(uint32(generation)<<16 | uint32(index))
}

func (h AoSHandle) index() uint16      { return uint16(h) }
func (h AoSHandle) generation() uint16 { return uint16(h >> 16) }

type handleSlot struct {
	generation uint16
	refcount   int32
	value      any
}

// handleTable replaces GC reachability for non-primitive component data
// (maps, slices, arbitrary structs) with explicit lifetime ownership: a
// slot vector, a free list, and a generation counter bumped on reuse so a
// stale handle is detected rather than silently resolving to someone
// else's value. Grounded on
// other_examples/654a46af_edwinsyarief-lazyecs__ecs.go.go's
// entityMeta/IsValid generation-check pattern.
type handleTable struct {
	slots []handleSlot
	free  []uint16
}

// newHandleTable creates an empty table with slot 0 permanently reserved
// and invalid, so the zero value of AoSHandle — what an AoS component's
// column holds before anything is ever assigned to it (its default row
// value) — never aliases a real, allocated handle.
func newHandleTable() *handleTable {
	return &handleTable{slots: []handleSlot{{}}}
}

// Alloc stores value behind a fresh handle with refcount 1.
func (t *handleTable) Alloc(value any) AoSHandle {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx].value = value
		t.slots[idx].refcount = 1
		return packHandle(idx, t.slots[idx].generation)
	}
	idx := uint16(len(t.slots))
	t.slots = append(t.slots, handleSlot{refcount: 1, value: value})
	return packHandle(idx, 0)
}

// NewAoSValue stores value behind a fresh handle and returns the handle's
// packed little-endian bytes, ready to use as the Data of a ComponentValue
// for an AoS-schema component type.
func (w *World) NewAoSValue(value any) []byte {
	h := w.handles.Alloc(value)
	return []byte{byte(h), byte(h >> 8), byte(h >> 16), byte(h >> 24)}
}

// AoSValue resolves an AoS component's packed handle bytes (as returned by
// World.GetComponent for an AoS-schema type) back to the stored value.
func (w *World) AoSValue(data []byte) (any, bool) {
	if len(data) < 4 {
		return nil, false
	}
	h := AoSHandle(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24)
	return w.handles.Get(h)
}

// releaseAoSColumns releases the handle-table slot backing every AoS-schema
// component typeID has at (chunkIdx,row), before that row is overwritten or
// dropped by a destroy or swap-and-pop. Handles are refcounted, not
// garbage collected.
func (w *World) releaseAoSColumns(a *archetype, chunkIdx, row int) {
	for _, typeID := range a.typeIDs {
		w.releaseAoSColumn(a, chunkIdx, row, typeID)
	}
}

// releaseAoSColumn releases typeID's handle at (chunkIdx,row) if typeID is
// an AoS-schema component; a no-op for every other kind.
func (w *World) releaseAoSColumn(a *archetype, chunkIdx, row int, typeID uint16) {
	if !w.reg.Layout(typeID).AoS {
		return
	}
	cols := a.chunks[chunkIdx].columns[typeID]
	h := *columnAt[AoSHandle](cols[0], row)
	w.handles.Release(h)
}

// Get resolves h to its value. ok is false for a handle whose slot was
// freed and reused (generation mismatch) or refcounted to zero.
func (t *handleTable) Get(h AoSHandle) (value any, ok bool) {
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[idx]
	if s.generation != h.generation() || s.refcount <= 0 {
		return nil, false
	}
	return s.value, true
}

// Retain increments h's refcount, e.g. when a second column copies the
// same handle rather than duplicating the underlying value.
func (t *handleTable) Retain(h AoSHandle) {
	idx := h.index()
	if int(idx) < len(t.slots) && t.slots[idx].generation == h.generation() {
		t.slots[idx].refcount++
	}
}

// Release decrements h's refcount, freeing the slot (bumping its
// generation so outstanding copies of h become stale) once it reaches
// zero. Called once per AoS column cell when an entity carrying it is
// destroyed or the component removed.
func (t *handleTable) Release(h AoSHandle) {
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return
	}
	s := &t.slots[idx]
	if s.generation != h.generation() || s.refcount <= 0 {
		return
	}
	s.refcount--
	if s.refcount == 0 {
		s.value = nil
		s.generation++
		t.free = append(t.free, idx)
	}
}
