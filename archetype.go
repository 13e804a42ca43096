package kiln

// archetype groups every entity sharing the same exact component-type set.
// Storage lives in its chunk list; identity lives in its mask.
// Grounded on warehouse's archetype.go (one storage.Storage per distinct
// component layout, looked up by mask), generalized to own a list of
// fixed-capacity chunks instead of one unbounded table, and to cache
// per-type dirty ticks and add/remove transitions the way
// other_examples/e0401dbd_delaneyj-arche__ecs-archetype.go.go's
// archetypeNode caches its edges.
type archetype struct {
	id      int
	mask    Mask256
	typeIDs []uint16 // sorted ascending; stable iteration and column order
	chunks  []*chunk
	reg     *ComponentRegistry

	addTransition    map[uint16]*archetype
	removeTransition map[uint16]*archetype

	maxDirtyCache map[uint16]uint32
	dirtyValid    bool
}

func newArchetype(id int, mask Mask256, typeIDs []uint16, reg *ComponentRegistry) *archetype {
	return &archetype{
		id:               id,
		mask:             mask,
		typeIDs:          typeIDs,
		reg:              reg,
		addTransition:    make(map[uint16]*archetype),
		removeTransition: make(map[uint16]*archetype),
	}
}

func (a *archetype) hasType(typeID uint16) bool {
	for _, t := range a.typeIDs {
		if t == typeID {
			return true
		}
	}
	return false
}

// appendEntity places entityID in the first chunk with room, allocating a
// new chunk if every existing one is full.
func (a *archetype) appendEntity(entityID uint32, tick uint32) (chunkIdx, row int) {
	for i, c := range a.chunks {
		if !c.full() {
			row = c.appendZero(entityID, tick)
			a.invalidateDirty()
			return i, row
		}
	}
	c := newChunk(Config.ChunkCapacity, a.typeIDs, a.reg)
	a.chunks = append(a.chunks, c)
	row = c.appendZero(entityID, tick)
	a.invalidateDirty()
	return len(a.chunks) - 1, row
}

// removeEntity swap-pops the row at (chunkIdx,row). If another entity moved
// into that slot to fill the gap, moved reports its id so the caller (the
// entity directory) can fix up its location table.
func (a *archetype) removeEntity(chunkIdx, row int) (movedEntity uint32, moved bool) {
	c := a.chunks[chunkIdx]
	movedEntity, moved = c.swapRemove(row)
	a.invalidateDirty()
	a.compact()
	return movedEntity, moved
}

// compact drops empty chunks from the tail of the list. Only the tail is
// ever safe to drop: interior chunk indices are load-bearing (the entity
// directory stores them), so a chunk can only disappear once every row
// after it is also gone.
func (a *archetype) compact() {
	for n := len(a.chunks); n > 0 && a.chunks[n-1].size == 0; n = len(a.chunks) {
		a.chunks = a.chunks[:n-1]
	}
}

func (a *archetype) entityCount() int {
	total := 0
	for _, c := range a.chunks {
		total += c.size
	}
	return total
}

// ChunkCount returns the number of chunks backing this archetype, for
// systems that iterate column data directly via Component[T].Slice
// instead of a Cursor.
func (a *archetype) ChunkCount() int { return len(a.chunks) }

// ChunkSize returns the number of live rows in chunk chunkIdx.
func (a *archetype) ChunkSize(chunkIdx int) int { return a.chunks[chunkIdx].size }

// EntityAt returns the entity occupying chunkIdx's row, for systems that
// iterate column data directly via Component[T].Slice and need to map a
// row back to its owning entity without a Cursor.
func (a *archetype) EntityAt(chunkIdx, row int) Entity {
	return Entity(a.chunks[chunkIdx].entityIDs[row])
}

func (a *archetype) invalidateDirty() { a.dirtyValid = false }

// maxDirty returns the highest dirty tick typeID has anywhere in this
// archetype, used by the query engine's broad-phase archetype cull to
// skip a whole archetype before inspecting any row.
func (a *archetype) maxDirty(typeID uint16) uint32 {
	if !a.dirtyValid {
		a.recomputeMaxDirty()
	}
	return a.maxDirtyCache[typeID]
}

func (a *archetype) recomputeMaxDirty() {
	a.maxDirtyCache = make(map[uint16]uint32, len(a.typeIDs))
	for _, t := range a.typeIDs {
		var max uint32
		for _, c := range a.chunks {
			if m := c.maxDirty(t); m > max {
				max = m
			}
		}
		a.maxDirtyCache[t] = max
	}
	a.dirtyValid = true
}

// dirtyMarker is a resolved (chunk, typeID) pair handed to component writers
// so marking a row dirty after a mutation costs one slice index, not a map
// lookup through the archetype and chunk again.
type dirtyMarker struct {
	owner  *archetype
	target *chunk
	typeID uint16
}

func (m dirtyMarker) mark(row int, tick uint32) {
	m.target.markDirty(m.typeID, row, tick)
	m.owner.invalidateDirty()
}

func (a *archetype) marker(chunkIdx int, typeID uint16) dirtyMarker {
	return dirtyMarker{owner: a, target: a.chunks[chunkIdx], typeID: typeID}
}
