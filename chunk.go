package kiln

import "unsafe"

// column is one physical column's backing storage: capacity*elemSize raw
// bytes, reinterpreted through the generic helpers below. This replaces
// warehouse's table.Table column storage (one column per *component*) with
// one column per declared *field* after schema expansion.
type column struct {
	elem Primitive
	raw  []byte
}

func newColumn(elem Primitive, capacity int) *column {
	return &column{elem: elem, raw: make([]byte, capacity*elem.Size())}
}

// columnAt returns a pointer to the value at row, typed as T. Callers must
// request T matching the column's declared Primitive; schema.go guarantees
// that correspondence at registration time.
func columnAt[T any](c *column, row int) *T {
	sz := int(unsafe.Sizeof(*new(T)))
	return (*T)(unsafe.Pointer(&c.raw[row*sz]))
}

// columnSlice returns the first n rows of c as a []T, giving systems direct
// slice access to a primitive column with no per-row wrapper object — the
// spec's "Flyweight reusable view objects" replacement.
func columnSlice[T any](c *column, n int) []T {
	if n == 0 {
		return nil
	}
	sz := int(unsafe.Sizeof(*new(T)))
	return unsafe.Slice((*T)(unsafe.Pointer(&c.raw[0])), n)[:n:(len(c.raw) / sz)]
}

// chunk is a fixed-capacity block of rows for one archetype. Every
// component type present in the archetype owns one column per primitive
// field plus one dirty-tick column; the same row index across every column
// of a chunk describes the same entity.
type chunk struct {
	capacity int
	size     int

	entityIDs []uint32

	// columns[typeID] holds the field columns for typeID, in the order its
	// Layout describes them.
	columns map[uint16][]*column

	// dirty[typeID][row] is the tick at which typeID's data at row was
	// last written.
	dirty map[uint16][]uint32
}

func newChunk(capacity int, typeIDs []uint16, reg *ComponentRegistry) *chunk {
	c := &chunk{
		capacity:  capacity,
		entityIDs: make([]uint32, capacity),
		columns:   make(map[uint16][]*column, len(typeIDs)),
		dirty:     make(map[uint16][]uint32, len(typeIDs)),
	}
	for _, t := range typeIDs {
		layout := reg.Layout(t)
		cols := make([]*column, len(layout.Columns))
		for i, cd := range layout.Columns {
			cols[i] = newColumn(cd.Elem, capacity)
		}
		if layout.AoS {
			cols = []*column{newColumn(U32, capacity)}
		}
		c.columns[t] = cols
		c.dirty[t] = make([]uint32, capacity)
	}
	return c
}

func (c *chunk) full() bool { return c.size >= c.capacity }

// appendZero reserves the next row, records entityID in it, stamps every
// dirty-tick column with tick, and returns the new row index. Column data
// is not cleared: a row freed by an earlier swap-and-pop keeps its old
// bytes until the caller writes the row.
func (c *chunk) appendZero(entityID uint32, tick uint32) int {
	row := c.size
	c.entityIDs[row] = entityID
	for t := range c.dirty {
		c.dirty[t][row] = tick
	}
	c.size++
	return row
}

// swapRemove removes row by overwriting it with the chunk's last row,
// decrementing size. When another entity is moved into row it reports that
// entity's id and true, so the caller can fix up the entity directory; if
// row was already last, nothing moves and it reports (0, false).
func (c *chunk) swapRemove(row int) (movedEntity uint32, moved bool) {
	last := c.size - 1
	selfID := c.entityIDs[row]
	if row != last {
		lastID := c.entityIDs[last]
		c.entityIDs[row] = lastID
		for t, cols := range c.columns {
			for _, col := range cols {
				copyElem(col, last, row)
			}
			c.dirty[t][row] = c.dirty[t][last]
		}
		c.size--
		return lastID, true
	}
	c.size--
	_ = selfID
	return 0, false
}

func copyElem(c *column, src, dst int) {
	sz := c.elem.Size()
	copy(c.raw[dst*sz:dst*sz+sz], c.raw[src*sz:src*sz+sz])
}

// multiSwapRemove removes a batch of rows in one chunk with a
// multi-swap-and-pop that yields a single mapping {movedEntity -> newRow}.
// It does not sort: rows must already be sorted descending.
func (c *chunk) multiSwapRemove(rowsDescending []int) map[uint32]int {
	moved := make(map[uint32]int)
	for _, row := range rowsDescending {
		movedID, didMove := c.swapRemove(row)
		if didMove {
			// movedID may already be in the map from an earlier swap in
			// this same batch; its entry just gets overwritten with the
			// newer, correct row.
			moved[movedID] = row
		}
	}
	return moved
}

// markDirty stamps typeID's dirty tick at row. A dirtyMarker (archetype.go)
// wraps this for the hot path so systems never re-resolve the column map
// per call.
func (c *chunk) markDirty(typeID uint16, row int, tick uint32) {
	c.dirty[typeID][row] = tick
}

func (c *chunk) maxDirty(typeID uint16) uint32 {
	max := uint32(0)
	for _, v := range c.dirty[typeID][:c.size] {
		if v > max {
			max = v
		}
	}
	return max
}
