package kiln

import (
	"sort"
	"time"
)

// fieldOp is the net effect, after processing every record touching one
// (entity,typeId) pair in sort order, of that pair's sequence of
// add/set/remove commands: the last write wins.
type fieldOp struct {
	present bool
	data    []byte
}

type creationKind int

const (
	creationSingle creationKind = iota
	creationInArchetype
	creationIdentical
	creationVaried
	creationPrefab
	creationPrefabBatch
)

type creationRecord struct {
	kind   creationKind
	n      int
	values []ComponentValue   // single/in-archetype/identical/prefab overrides
	varied [][]ComponentValue // varied
	prefab string
}

// Flush runs the executor once: it consolidates every record in the
// frame's command buffer into deletions, batched modifications and
// creations, then executes each phase in a fixed order: deletions first
// (so a later move never has to account for a row that is about to
// vanish), then modifications, then creations. Called by the scheduler
// once per frame, after every system has returned. Grounded on
// warehouse's operation_queue.go Commit (single consolidation pass over
// recorded EntityOperations), generalized to a binary, sort-key-ordered
// log and a multi-phase consolidation.
func (w *World) Flush() error {
	start := time.Now()
	sorted := w.cmds.sortedIndex()

	deletions := make(map[Entity]struct{})
	fields := make(map[Entity]map[uint16]*fieldOp)
	var creations []creationRecord

	for _, rec := range sorted {
		d := newDecoder(w.cmds.log[rec.offset : rec.offset+uint32(rec.length)])
		op := Opcode(d.byte_())
		switch op {
		case OpDestroyEntity:
			e := Entity(d.u32())
			deletions[e] = struct{}{}
			delete(fields, e)

		case OpAddComponent:
			e := Entity(d.u32())
			typeID := d.u16()
			length := d.u16()
			data := append([]byte(nil), d.bytes(int(length))...)
			if _, dead := deletions[e]; dead {
				continue
			}
			if !w.validComponentType(typeID) {
				continue
			}
			ensureFields(fields, e)[typeID] = &fieldOp{present: true, data: data}

		case OpSetComponentData:
			e := Entity(d.u32())
			typeID := d.u16()
			length := d.u16()
			data := append([]byte(nil), d.bytes(int(length))...)
			if _, dead := deletions[e]; dead {
				continue
			}
			if !w.validComponentType(typeID) {
				continue
			}
			ensureFields(fields, e)[typeID] = &fieldOp{present: true, data: data}

		case OpRemoveComponent:
			e := Entity(d.u32())
			typeID := d.u16()
			if _, dead := deletions[e]; dead {
				continue
			}
			if !w.validComponentType(typeID) {
				continue
			}
			ensureFields(fields, e)[typeID] = &fieldOp{present: false}

		case OpDestroyEntitiesInQuery:
			ref := d.u32()
			q := w.cmds.queryRefs[ref]
			for c := q.Cursor(); c.Next(); {
				e := c.Entity()
				deletions[e] = struct{}{}
				delete(fields, e)
			}

		case OpAddComponentToQuery, OpSetComponentDataForQuery:
			ref := d.u32()
			typeID := d.u16()
			length := d.u16()
			data := append([]byte(nil), d.bytes(int(length))...)
			if !w.validComponentType(typeID) {
				continue
			}
			q := w.cmds.queryRefs[ref]
			for c := q.Cursor(); c.Next(); {
				e := c.Entity()
				if _, dead := deletions[e]; dead {
					continue
				}
				ensureFields(fields, e)[typeID] = &fieldOp{present: true, data: data}
			}

		case OpRemoveComponentFromQuery:
			ref := d.u32()
			typeID := d.u16()
			if !w.validComponentType(typeID) {
				continue
			}
			q := w.cmds.queryRefs[ref]
			for c := q.Cursor(); c.Next(); {
				e := c.Entity()
				if _, dead := deletions[e]; dead {
					continue
				}
				ensureFields(fields, e)[typeID] = &fieldOp{present: false}
			}

		case OpCreateEntity:
			creations = append(creations, creationRecord{kind: creationSingle, values: d.components()})

		case OpCreateEntityInArchetype:
			creations = append(creations, creationRecord{kind: creationInArchetype, values: d.components()})

		case OpCreateEntitiesIdentical:
			n := int(d.u32())
			creations = append(creations, creationRecord{kind: creationIdentical, n: n, values: d.components()})

		case OpCreateEntitiesVaried:
			n := int(d.u32())
			varied := make([][]ComponentValue, n)
			for i := range varied {
				varied[i] = d.components()
			}
			creations = append(creations, creationRecord{kind: creationVaried, varied: varied})

		case OpInstantiatePrefab:
			nameLen := int(d.u16())
			name := string(d.bytes(nameLen))
			creations = append(creations, creationRecord{kind: creationPrefab, prefab: name, values: d.components()})

		case OpInstantiatePrefabBatch:
			n := int(d.u32())
			nameLen := int(d.u16())
			name := string(d.bytes(nameLen))
			creations = append(creations, creationRecord{kind: creationPrefabBatch, n: n, prefab: name, values: d.components()})

		default:
			err := UnknownOpcodeError{Opcode: byte(op)}
			w.warnOnce.warn(w.logger, "unknown-opcode", err.Error())
		}
	}

	w.executeDeletions(deletions)
	w.executeModifications(fields, deletions)
	w.executeCreations(creations)

	created, destroyed := w.creationsCount(creations), len(deletions)
	w.metrics.addCreated(created)
	w.metrics.addDestroyed(destroyed)
	w.metrics.setCommandBytes(w.cmds.Len())
	w.metrics.setArchetypeCount(len(w.archetypes))

	w.cmds.Reset()
	w.metrics.observeFlush(time.Since(start))
	return nil
}

// validComponentType reports whether typeID is registered, logging and
// returning false for a stale or malformed id instead of panicking a row
// further down in Layout/ByteSize lookups.
func (w *World) validComponentType(typeID uint16) bool {
	if w.reg.HasType(typeID) {
		return true
	}
	err := UnknownComponentTypeError{TypeID: typeID}
	w.warnOnce.warn(w.logger, "unknown-component-type", err.Error())
	return false
}

func ensureFields(fields map[Entity]map[uint16]*fieldOp, e Entity) map[uint16]*fieldOp {
	m, ok := fields[e]
	if !ok {
		m = make(map[uint16]*fieldOp)
		fields[e] = m
	}
	return m
}

func (w *World) executeDeletions(deletions map[Entity]struct{}) {
	if len(deletions) == 0 {
		return
	}
	entities := make([]Entity, 0, len(deletions))
	for e := range deletions {
		entities = append(entities, e)
	}
	w.destroyBatch(entities)
}

// destroyBatch groups entities by (archetype, chunk) so each chunk
// performs one multi-swap-and-pop rather than N independent ones.
func (w *World) destroyBatch(entities []Entity) {
	byArchetype := make(map[*archetype]map[int][]int)
	touched := make(map[*archetype]struct{})
	for _, e := range entities {
		a, chunkIdx, row, ok := w.locate(e)
		if !ok {
			continue
		}
		w.releaseAoSColumns(a, chunkIdx, row)
		byChunk, exists := byArchetype[a]
		if !exists {
			byChunk = make(map[int][]int)
			byArchetype[a] = byChunk
		}
		byChunk[chunkIdx] = append(byChunk[chunkIdx], row)
		touched[a] = struct{}{}
	}
	for a, byChunk := range byArchetype {
		for chunkIdx, rows := range byChunk {
			sort.Sort(sort.Reverse(sort.IntSlice(rows)))
			c := a.chunks[chunkIdx]
			moved := c.multiSwapRemove(rows)
			for movedID, newRow := range moved {
				w.chunkOf[movedID] = chunkIdx
				w.rowOf[movedID] = newRow
			}
		}
		a.invalidateDirty()
	}
	for _, e := range entities {
		id := uint32(e)
		if int(id) < len(w.archetypeOf) && w.archetypeOf[id] != nil {
			w.archetypeOf[id] = nil
			w.freeIDs = append(w.freeIDs, id)
			if w.relations != nil {
				w.relations.NotifyDestroyed(e)
			}
		}
	}
	for a := range touched {
		a.compact()
	}
}

// entityMove is one entity's resolved structural move: its current
// location, the archetype it is moving to, and the full row of values
// (carried over plus edits) the target archetype should be written with.
type entityMove struct {
	entity   Entity
	chunkIdx int
	row      int
	target   *archetype
	values   map[uint16][]byte
}

// executeModifications resolves each entity's net add/remove set against
// its current archetype and applies it as either an in-place data update
// or a structural move. Moves are grouped by source archetype and handed
// to moveEntitiesInBatch together, so a chunk with many departing rows
// pays for one multi-swap-and-pop instead of N independent ones — the
// same consolidation destroyBatch already does for deletions. Entities
// already in deletions are skipped: destruction dominates any modification
// recorded against the same entity in the same frame.
func (w *World) executeModifications(fields map[Entity]map[uint16]*fieldOp, deletions map[Entity]struct{}) {
	bySource := make(map[*archetype][]entityMove)

	for e, ops := range fields {
		if _, dead := deletions[e]; dead {
			continue
		}
		a, chunkIdx, row, ok := w.locate(e)
		if !ok {
			w.warnOnce.warn(w.logger, "inactive-entity-modify", "skipping modification of inactive entity")
			continue
		}

		var addValues, inPlace []ComponentValue
		var removeTypes []uint16
		for typeID, op := range ops {
			hasNow := a.hasType(typeID)
			switch {
			case op.present && hasNow:
				inPlace = append(inPlace, ComponentValue{TypeID: typeID, Data: op.data})
			case op.present && !hasNow:
				addValues = append(addValues, ComponentValue{TypeID: typeID, Data: op.data})
			case !op.present && hasNow:
				removeTypes = append(removeTypes, typeID)
			}
		}

		if len(addValues) == 0 && len(removeTypes) == 0 {
			for _, v := range inPlace {
				w.releaseAoSColumn(a, chunkIdx, row, v.TypeID)
				c := a.chunks[chunkIdx]
				writeColumns(c, v.TypeID, row, w.reg.Layout(v.TypeID), v.Data)
				c.markDirty(v.TypeID, row, w.tick)
			}
			a.invalidateDirty()
			continue
		}

		target := a
		for _, t := range removeTypes {
			target = w.transitionRemove(target, t)
		}
		for _, v := range addValues {
			target = w.transitionAdd(target, v.TypeID)
		}
		values := w.snapshotRow(a, chunkIdx, row)
		for _, t := range removeTypes {
			delete(values, t)
			w.releaseAoSColumn(a, chunkIdx, row, t)
		}
		for _, v := range addValues {
			values[v.TypeID] = v.Data
		}
		for _, v := range inPlace {
			w.releaseAoSColumn(a, chunkIdx, row, v.TypeID)
			values[v.TypeID] = v.Data
		}
		bySource[a] = append(bySource[a], entityMove{entity: e, chunkIdx: chunkIdx, row: row, target: target, values: values})
	}

	for src, moves := range bySource {
		w.moveEntitiesInBatch(src, moves)
	}
}

// moveEntitiesInBatch relocates every move out of src in one pass: it
// groups moves by chunk and removes each chunk's departing rows with a
// single multiSwapRemove (mirroring destroyBatch), then appends each
// entity into its own target archetype with its resolved values. Moves
// may target different archetypes; only the removal side batches, since
// the destinations are themselves already deduplicated by transition
// caching in transitionAdd/transitionRemove.
func (w *World) moveEntitiesInBatch(src *archetype, moves []entityMove) {
	byChunk := make(map[int][]int, len(moves))
	for _, m := range moves {
		byChunk[m.chunkIdx] = append(byChunk[m.chunkIdx], m.row)
	}
	for chunkIdx, rows := range byChunk {
		sort.Sort(sort.Reverse(sort.IntSlice(rows)))
		c := src.chunks[chunkIdx]
		moved := c.multiSwapRemove(rows)
		for movedID, newRow := range moved {
			w.chunkOf[movedID] = chunkIdx
			w.rowOf[movedID] = newRow
		}
	}
	src.invalidateDirty()
	src.compact()

	for _, m := range moves {
		newChunkIdx, newRow := m.target.appendEntity(uint32(m.entity), w.tick)
		w.writeRow(m.target, newChunkIdx, newRow, m.values)
		id := uint32(m.entity)
		w.archetypeOf[id] = m.target
		w.chunkOf[id] = newChunkIdx
		w.rowOf[id] = newRow
	}
}

func (w *World) executeCreations(creations []creationRecord) {
	for _, cr := range creations {
		switch cr.kind {
		case creationSingle, creationInArchetype:
			values := valuesToMap(cr.values)
			target := w.archetypeFor(maskFromValues(cr.values))
			w.createInArchetype(target, values)

		case creationIdentical:
			values := valuesToMap(cr.values)
			target := w.archetypeFor(maskFromValues(cr.values))
			w.createBatchIdenticalInArchetype(target, values, cr.n)

		case creationVaried:
			for _, v := range cr.varied {
				target := w.archetypeFor(maskFromValues(v))
				w.createInArchetype(target, valuesToMap(v))
			}

		case creationPrefab:
			template, ok := w.resolvePrefab(cr.prefab)
			if !ok {
				err := UnknownPrefabError{Name: cr.prefab}
				w.logger.Warn(err.Error())
				continue
			}
			w.instantiatePrefabNode(template, cr.values, NullEntity)

		case creationPrefabBatch:
			template, ok := w.resolvePrefab(cr.prefab)
			if !ok {
				err := UnknownPrefabError{Name: cr.prefab}
				w.logger.Warn(err.Error())
				continue
			}
			for i := 0; i < cr.n; i++ {
				w.instantiatePrefabNode(template, cr.values, NullEntity)
			}
		}
	}
}

// instantiatePrefabNode creates one entity for node's own components
// (with overrides merged in, root call only), parents it to parent via
// Relations if parent is not NullEntity, then recursively instantiates
// every child as its own entity parented to the one just created.
// Children never receive overrides — those apply only to the node the
// caller named directly.
func (w *World) instantiatePrefabNode(node PrefabNode, overrides []ComponentValue, parent Entity) Entity {
	values := node.Components
	if overrides != nil {
		values = mergePrefab(node.Components, overrides)
	}
	target := w.archetypeFor(maskFromValues(values))
	e := w.createInArchetype(target, valuesToMap(values))
	if parent != NullEntity {
		w.Relations().SetParent(e, parent, nil)
	}
	for _, child := range node.Children {
		w.instantiatePrefabNode(child, nil, e)
	}
	return e
}

// creationsCount returns the number of root entities created this flush,
// for the metrics counter. Prefab child entities are additional rows but
// are not counted here.
func (w *World) creationsCount(creations []creationRecord) int {
	n := 0
	for _, cr := range creations {
		switch cr.kind {
		case creationSingle, creationInArchetype, creationPrefab:
			n++
		case creationIdentical, creationPrefabBatch:
			n += cr.n
		case creationVaried:
			n += len(cr.varied)
		}
	}
	return n
}

func (w *World) resolvePrefab(name string) (PrefabNode, bool) {
	if w.prefabs == nil {
		return PrefabNode{}, false
	}
	return w.prefabs.Prefab(name)
}

func maskFromValues(values []ComponentValue) Mask256 {
	var m Mask256
	for _, v := range values {
		m.Mark(uint32(v.TypeID))
	}
	return m
}

func valuesToMap(values []ComponentValue) map[uint16][]byte {
	out := make(map[uint16][]byte, len(values))
	for _, v := range values {
		out[v.TypeID] = v.Data
	}
	return out
}
