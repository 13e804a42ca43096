package kiln

// Entity is a non-zero u32 identifier with lifecycle {free -> active ->
// free}. Zero is the reserved null entity. Components carry no
// identity of their own; they are addressed purely via (entity, type).
type Entity uint32

// NullEntity is never a valid, active entity.
const NullEntity Entity = 0

// World is the entity directory (C5) plus the owning registry, archetype
// table, string interner and handle table: the single object every other
// module (query engine, command buffer, executor, scheduler) is built
// around. Grounded on warehouse's storage.go (the package-level Storage
// implementation backing every Entity), restructured around chunked
// archetypes and a dense id allocator instead of table.Factory.
type World struct {
	reg      *ComponentRegistry
	interner *Interner
	handles  *handleTable
	logger   Logger
	warnOnce *warnOnceRegistry
	metrics  *Metrics

	archetypes       []*archetype
	byMask           map[Mask256]*archetype
	archetypeVersion int

	// Entity directory: parallel side-tables indexed by entity id.
	// archetypeOf[id]==nil means id is free.
	archetypeOf []*archetype
	chunkOf     []int
	rowOf       []int
	freeIDs     []uint32

	tick uint32

	cmds      *CommandBuffer
	prefabs   PrefabProvider
	relations *Relations
}

// NewWorld creates an empty world. Entity id 0 is reserved as NullEntity,
// so the directory's slice 0 is never assigned.
func NewWorld() *World {
	w := &World{
		reg:         NewComponentRegistry(),
		interner:    NewInterner(),
		logger:      Config.Logger,
		warnOnce:    newWarnOnceRegistry(),
		metrics:     Config.Metrics,
		byMask:      make(map[Mask256]*archetype),
		archetypeOf: make([]*archetype, 1),
		chunkOf:     make([]int, 1),
		rowOf:       make([]int, 1),
	}
	w.handles = newHandleTable()
	w.cmds = NewCommandBuffer()
	root := w.archetypeFor(Mask256{})
	_ = root
	return w
}

// Registry exposes the component registry for schema registration.
func (w *World) Registry() *ComponentRegistry { return w.reg }

// Interner exposes the string interner backing interned-string columns.
func (w *World) Interner() *Interner { return w.interner }

// Handles exposes the generational handle table backing AoS columns.
func (w *World) Handles() *handleTable { return w.handles }

// Commands returns the world's deferred command buffer.
func (w *World) Commands() *CommandBuffer { return w.cmds }

// Relations returns the world's parent/child and destroy-callback registry,
// creating it on first use. A world that never calls this pays nothing for
// the feature beyond the nil check.
func (w *World) Relations() *Relations {
	if w.relations == nil {
		w.relations = NewRelations()
	}
	return w.relations
}

// SetPrefabProvider installs the source the executor resolves
// INSTANTIATE_PREFAB* opcodes against.
func (w *World) SetPrefabProvider(p PrefabProvider) { w.prefabs = p }

// Tick returns the current change-detection tick.
func (w *World) Tick() uint32 { return w.tick }

// AdvanceTick increments the world's change-detection tick and returns the
// new value. The scheduler calls this once per fixed step.
func (w *World) AdvanceTick() uint32 {
	w.tick++
	return w.tick
}

// archetypeFor returns the archetype for mask, creating it (and wiring its
// sorted type-id list) if this is the first time mask has been observed.
func (w *World) archetypeFor(mask Mask256) *archetype {
	if a, ok := w.byMask[mask]; ok {
		return a
	}
	var typeIDs []uint16
	for i := 0; i < w.reg.Count(); i++ {
		if mask.Test(uint32(i)) {
			typeIDs = append(typeIDs, uint16(i))
		}
	}
	a := newArchetype(len(w.archetypes), mask, typeIDs, w.reg)
	w.archetypes = append(w.archetypes, a)
	w.byMask[mask] = a
	w.archetypeVersion++
	return a
}

// transitionAdd resolves (and memoizes on the source archetype) the
// archetype reached by adding typeID to src's mask.
func (w *World) transitionAdd(src *archetype, typeID uint16) *archetype {
	if t, ok := src.addTransition[typeID]; ok {
		return t
	}
	t := w.archetypeFor(src.mask.WithBit(uint32(typeID)))
	src.addTransition[typeID] = t
	return t
}

// transitionRemove resolves (and memoizes) the archetype reached by
// removing typeID from src's mask.
func (w *World) transitionRemove(src *archetype, typeID uint16) *archetype {
	if t, ok := src.removeTransition[typeID]; ok {
		return t
	}
	t := w.archetypeFor(src.mask.WithoutBit(uint32(typeID)))
	src.removeTransition[typeID] = t
	return t
}

func (w *World) allocID() uint32 {
	if n := len(w.freeIDs); n > 0 {
		id := w.freeIDs[n-1]
		w.freeIDs = w.freeIDs[:n-1]
		return id
	}
	id := uint32(len(w.archetypeOf))
	w.archetypeOf = append(w.archetypeOf, nil)
	w.chunkOf = append(w.chunkOf, 0)
	w.rowOf = append(w.rowOf, 0)
	return id
}

// IsActive reports whether e currently addresses a live row.
func (w *World) IsActive(e Entity) bool {
	id := uint32(e)
	return id != 0 && id < uint32(len(w.archetypeOf)) && w.archetypeOf[id] != nil
}

func (w *World) locate(e Entity) (*archetype, int, int, bool) {
	if !w.IsActive(e) {
		return nil, 0, 0, false
	}
	id := uint32(e)
	return w.archetypeOf[id], w.chunkOf[id], w.rowOf[id], true
}

// createInArchetype places a brand-new entity directly into target,
// writing values (typeID -> raw row bytes, defaulted when absent).
func (w *World) createInArchetype(target *archetype, values map[uint16][]byte) Entity {
	id := w.allocID()
	chunkIdx, row := target.appendEntity(id, w.tick)
	w.writeRow(target, chunkIdx, row, values)
	w.archetypeOf[id] = target
	w.chunkOf[id] = chunkIdx
	w.rowOf[id] = row
	return Entity(id)
}

// createBatchIdenticalInArchetype creates n entities in target, each
// written from the same values map.
func (w *World) createBatchIdenticalInArchetype(target *archetype, values map[uint16][]byte, n int) []Entity {
	out := make([]Entity, n)
	for i := 0; i < n; i++ {
		out[i] = w.createInArchetype(target, values)
	}
	return out
}

// createBatchInArchetype creates len(values) entities in target, each with
// its own component payload.
func (w *World) createBatchInArchetype(target *archetype, values []map[uint16][]byte) []Entity {
	out := make([]Entity, len(values))
	for i, v := range values {
		out[i] = w.createInArchetype(target, v)
	}
	return out
}

func (w *World) writeRow(a *archetype, chunkIdx, row int, values map[uint16][]byte) {
	c := a.chunks[chunkIdx]
	for _, typeID := range a.typeIDs {
		data := values[typeID]
		if data == nil {
			data = w.reg.DefaultValue(typeID)
		}
		writeColumns(c, typeID, row, w.reg.Layout(typeID), data)
		c.markDirty(typeID, row, w.tick)
	}
	a.invalidateDirty()
}

// writeColumns scatters a single component's packed default/payload bytes
// across its (possibly several, post schema-expansion) physical columns.
func writeColumns(c *chunk, typeID uint16, row int, layout *Layout, data []byte) {
	cols := c.columns[typeID]
	if layout.AoS {
		if len(cols) == 1 {
			copyElem2(cols[0], row, data)
		}
		return
	}
	off := 0
	for i, cd := range layout.Columns {
		sz := cd.Elem.Size()
		if off+sz <= len(data) {
			copyElem2(cols[i], row, data[off:off+sz])
		}
		off += sz
	}
}

func copyElem2(c *column, row int, data []byte) {
	sz := c.elem.Size()
	copy(c.raw[row*sz:row*sz+sz], data)
}

// readRow gathers a component's physical columns back into one packed byte
// slice, the inverse of writeColumns.
func readRow(c *chunk, typeID uint16, row int, layout *Layout) []byte {
	cols := c.columns[typeID]
	if layout.AoS {
		sz := cols[0].elem.Size()
		out := make([]byte, sz)
		copy(out, cols[0].raw[row*sz:row*sz+sz])
		return out
	}
	out := make([]byte, layout.ByteSize())
	off := 0
	for i, cd := range layout.Columns {
		sz := cd.Elem.Size()
		copy(out[off:off+sz], cols[i].raw[row*sz:row*sz+sz])
		off += sz
	}
	return out
}

// destroy removes e from its archetype and frees its id for reuse. The
// moved-entity fixup (if any) updates the directory so the entity that took
// e's old row still resolves correctly.
func (w *World) destroy(e Entity) {
	a, chunkIdx, row, ok := w.locate(e)
	if !ok {
		return
	}
	w.releaseAoSColumns(a, chunkIdx, row)
	movedID, moved := a.removeEntity(chunkIdx, row)
	if moved {
		w.chunkOf[movedID] = chunkIdx
		w.rowOf[movedID] = row
	}
	id := uint32(e)
	w.archetypeOf[id] = nil
	w.freeIDs = append(w.freeIDs, id)
	if w.relations != nil {
		w.relations.NotifyDestroyed(e)
	}
}

// addComponent moves e to the archetype reached by adding typeID, writing
// data into the new column. It returns ComponentExistsError, and changes
// nothing, if e already has typeID.
func (w *World) addComponent(e Entity, typeID uint16, data []byte) error {
	a, chunkIdx, row, ok := w.locate(e)
	if !ok {
		return InactiveEntityError{Entity: e}
	}
	if a.hasType(typeID) {
		return ComponentExistsError{TypeID: typeID}
	}
	target := w.transitionAdd(a, typeID)
	values := w.snapshotRow(a, chunkIdx, row)
	if data == nil {
		data = w.reg.DefaultValue(typeID)
	}
	values[typeID] = data
	w.moveEntity(e, a, chunkIdx, row, target, values)
	return nil
}

// removeComponent moves e to the archetype reached by removing typeID.
func (w *World) removeComponent(e Entity, typeID uint16) error {
	a, chunkIdx, row, ok := w.locate(e)
	if !ok {
		return InactiveEntityError{Entity: e}
	}
	if !a.hasType(typeID) {
		return ComponentNotFoundError{TypeID: typeID}
	}
	target := w.transitionRemove(a, typeID)
	values := w.snapshotRow(a, chunkIdx, row)
	delete(values, typeID)
	w.releaseAoSColumn(a, chunkIdx, row, typeID)
	w.moveEntity(e, a, chunkIdx, row, target, values)
	return nil
}

// setComponentData overwrites typeID's data on e in place, with no
// archetype move, marking the row dirty at the current tick.
func (w *World) setComponentData(e Entity, typeID uint16, data []byte) error {
	a, chunkIdx, row, ok := w.locate(e)
	if !ok {
		return InactiveEntityError{Entity: e}
	}
	if !a.hasType(typeID) {
		return ComponentNotFoundError{TypeID: typeID}
	}
	w.releaseAoSColumn(a, chunkIdx, row, typeID)
	c := a.chunks[chunkIdx]
	writeColumns(c, typeID, row, w.reg.Layout(typeID), data)
	c.markDirty(typeID, row, w.tick)
	a.invalidateDirty()
	return nil
}

func (w *World) hasComponent(e Entity, typeID uint16) bool {
	a, _, _, ok := w.locate(e)
	return ok && a.hasType(typeID)
}

func (w *World) snapshotRow(a *archetype, chunkIdx, row int) map[uint16][]byte {
	values := make(map[uint16][]byte, len(a.typeIDs))
	c := a.chunks[chunkIdx]
	for _, t := range a.typeIDs {
		values[t] = readRow(c, t, row, w.reg.Layout(t))
	}
	return values
}

// moveEntity relocates e from (src,chunkIdx,row) into target, writing
// values, and fixes up the directory for both e and whichever entity's row
// moved to fill the gap left behind.
func (w *World) moveEntity(e Entity, src *archetype, chunkIdx, row int, target *archetype, values map[uint16][]byte) {
	movedID, moved := src.removeEntity(chunkIdx, row)
	if moved {
		w.chunkOf[movedID] = chunkIdx
		w.rowOf[movedID] = row
	}
	newChunkIdx, newRow := target.appendEntity(uint32(e), w.tick)
	w.writeRow(target, newChunkIdx, newRow, values)
	id := uint32(e)
	w.archetypeOf[id] = target
	w.chunkOf[id] = newChunkIdx
	w.rowOf[id] = newRow
}
