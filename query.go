package kiln

// Query describes a set of archetypes by four component-type sets: with
// (all required), without (none of), any (at least one of), and react
// (required and change-monitored). Grounded on warehouse's
// query.go (Query holding With/Without masks, evaluated lazily against
// storage.Archetypes()), generalized to the four-set predicate and a
// change-tick aware reactive cursor.
type Query struct {
	world *World

	requiredMask Mask256
	excludedMask Mask256
	anyMask      Mask256
	reactMask    Mask256
	reactTypes   []uint16

	matching   []*archetype
	cachedAt   int // world.archetypeVersion snapshot the cache was built from
	primedTick uint32
}

// PrimedReactiveCursor returns a ReactiveCursor using whatever tick the
// scheduler last primed this query with, for systems that watch a query
// via Scheduler.WatchLogic (etc.) instead of tracking their own
// lastCompletedTick.
func (q *Query) PrimedReactiveCursor() *ReactiveCursor {
	return q.ReactiveCursor(q.primedTick)
}

// NewQuery creates an empty, unrestricted query bound to w. Call SetCriteria
// before using it.
func (w *World) NewQuery() *Query {
	return &Query{world: w, cachedAt: -1}
}

// SetCriteria replaces the query's four sets and forces a re-evaluation on
// the next Archetypes()/Cursor() call.
func (q *Query) SetCriteria(with, without, any, react []uint16) *Query {
	var required, excluded, anyM, reactM Mask256
	for _, t := range with {
		required.Mark(uint32(t))
	}
	for _, t := range react {
		required.Mark(uint32(t))
		reactM.Mark(uint32(t))
	}
	for _, t := range without {
		excluded.Mark(uint32(t))
	}
	for _, t := range any {
		anyM.Mark(uint32(t))
	}
	q.requiredMask = required
	q.excludedMask = excluded
	q.anyMask = anyM
	q.reactMask = reactM
	q.reactTypes = append([]uint16(nil), react...)
	q.cachedAt = -1
	return q
}

// matches implements the match predicate:
// (M & required)==required  and  (M & excluded)==0  and  (any==0 or (M&any)!=0).
func (q *Query) matches(mask Mask256) bool {
	if !mask.ContainsAll(q.requiredMask) {
		return false
	}
	if !mask.ContainsNone(q.excludedMask) {
		return false
	}
	if !q.anyMask.IsEmpty() && !mask.ContainsAny(q.anyMask) {
		return false
	}
	return true
}

// Archetypes returns the cached list of currently-matching archetypes,
// rebuilding it if the world has observed a new archetype since the last
// build.
func (q *Query) Archetypes() []*archetype {
	if q.cachedAt != q.world.archetypeVersion {
		q.rebuild()
	}
	return q.matching
}

func (q *Query) rebuild() {
	q.matching = q.matching[:0]
	for _, a := range q.world.archetypes {
		if q.matches(a.mask) {
			q.matching = append(q.matching, a)
		}
	}
	q.cachedAt = q.world.archetypeVersion
}

// Cursor returns a plain iterator over every row of every matching
// archetype.
func (q *Query) Cursor() *Cursor {
	return &Cursor{query: q, archIdx: -1, row: -1}
}

// ReactiveCursor returns an iterator that only visits rows where at least
// one react-set column changed after lastCompletedTick.
func (q *Query) ReactiveCursor(lastCompletedTick uint32) *ReactiveCursor {
	return &ReactiveCursor{query: q, lastTick: lastCompletedTick, archIdx: -1, row: -1}
}

// Cursor walks every row of every archetype a Query currently matches.
type Cursor struct {
	query    *Query
	archIdx  int
	chunkIdx int
	row      int
}

// Next advances the cursor to the next live row, returning false once
// every matching archetype is exhausted.
func (c *Cursor) Next() bool {
	archetypes := c.query.Archetypes()
	for {
		if c.archIdx < 0 {
			c.archIdx, c.chunkIdx, c.row = 0, 0, -1
		}
		if c.archIdx >= len(archetypes) {
			return false
		}
		a := archetypes[c.archIdx]
		if c.chunkIdx >= len(a.chunks) {
			c.archIdx++
			c.chunkIdx, c.row = 0, -1
			continue
		}
		c.row++
		if c.row >= a.chunks[c.chunkIdx].size {
			c.chunkIdx++
			c.row = -1
			continue
		}
		return true
	}
}

// Archetype returns the archetype owning the cursor's current row.
func (c *Cursor) Archetype() *archetype { return c.query.Archetypes()[c.archIdx] }

// ChunkIndex returns the index, within Archetype(), of the chunk owning
// the cursor's current row.
func (c *Cursor) ChunkIndex() int { return c.chunkIdx }

// Row returns the cursor's current row index within its chunk.
func (c *Cursor) Row() int { return c.row }

// Entity returns the entity addressed by the cursor's current row.
func (c *Cursor) Entity() Entity {
	a := c.Archetype()
	return Entity(a.chunks[c.chunkIdx].entityIDs[c.row])
}

// ReactiveCursor walks only rows whose react-set columns changed after
// lastTick, broad-phase culling whole archetypes via their cached
// max-dirty-tick before doing any per-row work.
type ReactiveCursor struct {
	query    *Query
	lastTick uint32
	archIdx  int
	chunkIdx int
	row      int
}

func (c *ReactiveCursor) archetypeRelevant(a *archetype) bool {
	for _, t := range c.query.reactTypes {
		if a.maxDirty(t) > c.lastTick {
			return true
		}
	}
	return false
}

func (c *ReactiveCursor) rowChanged(a *archetype, chunkIdx, row int) bool {
	ch := a.chunks[chunkIdx]
	for _, t := range c.query.reactTypes {
		if ch.dirty[t][row] > c.lastTick {
			return true
		}
	}
	return false
}

// Next advances to the next row satisfying hasChanged, skipping whole
// archetypes whose cached max-dirty-tick cannot possibly contain one.
func (c *ReactiveCursor) Next() bool {
	archetypes := c.query.Archetypes()
	if c.archIdx < 0 {
		c.archIdx, c.chunkIdx, c.row = 0, 0, -1
	}
	for {
		if c.archIdx >= len(archetypes) {
			return false
		}
		a := archetypes[c.archIdx]
		if len(c.query.reactTypes) > 0 && !c.archetypeRelevant(a) {
			c.archIdx++
			c.chunkIdx, c.row = 0, -1
			continue
		}
		if c.chunkIdx >= len(a.chunks) {
			c.archIdx++
			c.chunkIdx, c.row = 0, -1
			continue
		}
		c.row++
		if c.row >= a.chunks[c.chunkIdx].size {
			c.chunkIdx++
			c.row = -1
			continue
		}
		if len(c.query.reactTypes) > 0 && !c.rowChanged(a, c.chunkIdx, c.row) {
			continue
		}
		return true
	}
}

func (c *ReactiveCursor) Archetype() *archetype { return c.query.Archetypes()[c.archIdx] }
func (c *ReactiveCursor) ChunkIndex() int       { return c.chunkIdx }
func (c *ReactiveCursor) Row() int              { return c.row }

func (c *ReactiveCursor) Entity() Entity {
	a := c.Archetype()
	return Entity(a.chunks[c.chunkIdx].entityIDs[c.row])
}
