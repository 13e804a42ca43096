package kiln

import "encoding/binary"

// Opcode identifies the shape of one recorded command buffer entry.
type Opcode byte

const (
	OpCreateEntity             Opcode = 1
	OpDestroyEntity            Opcode = 2
	OpInstantiatePrefab        Opcode = 3
	OpCreateEntityInArchetype  Opcode = 4
	OpAddComponent             Opcode = 10
	OpRemoveComponent          Opcode = 11
	OpSetComponentData         Opcode = 12
	OpCreateEntitiesIdentical  Opcode = 20
	OpCreateEntitiesVaried     Opcode = 21
	OpInstantiatePrefabBatch   Opcode = 22
	OpDestroyEntitiesInQuery   Opcode = 30
	OpAddComponentToQuery      Opcode = 31
	OpRemoveComponentFromQuery Opcode = 32
	OpSetComponentDataForQuery Opcode = 33
)

const (
	phaseDestroy = 0
	phaseModify  = 128
	phaseCreate  = 255
)

// recordIndex is the buffer's parallel keyed index: one (sortKey, offset,
// length) triple per record, appended atomically with the record itself —
// the index and the record log can never desynchronize, since both are
// appended by the same call.
type recordIndex struct {
	sortKey uint64
	offset  uint32
	length  uint16
}

// ComponentValue is one (typeID, raw bytes) pair recorded inline in a
// creation or ADD_COMPONENT/SET_COMPONENT_DATA record.
type ComponentValue struct {
	TypeID uint16
	Data   []byte
}

// CommandBuffer is the deferred, append-only log systems record structural
// operations into. Recording never mutates world state; resolution happens
// once per frame in the executor. Grounded on warehouse's operation_queue.go
// (EntityOperationsQueue, one slice of recorded ops consumed by Commit),
// generalized to a binary, sort-key-indexed log so the executor can stably
// reorder before consolidating.
type CommandBuffer struct {
	log   []byte
	index []recordIndex

	createSeq uint32

	// queryRefs holds the *Query pointers a query-targeted opcode's record
	// carries by index, the way handle.go's handle table holds AoS values
	// behind a packed index instead of inlining them into the byte log — a
	// *Query can't be serialized into the log's byte stream, so a record
	// only ever stores its position in this slice.
	queryRefs []*Query
}

// NewCommandBuffer creates an empty, frame-scoped command buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Reset clears the buffer for the next frame. The underlying byte slice's
// capacity is kept so repeated frames don't re-grow it.
func (b *CommandBuffer) Reset() {
	b.log = b.log[:0]
	b.index = b.index[:0]
	b.queryRefs = b.queryRefs[:0]
	b.createSeq = 0
}

// queryRef records q and returns the index a query-targeted record uses to
// refer back to it at flush time.
func (b *CommandBuffer) queryRef(q *Query) uint32 {
	b.queryRefs = append(b.queryRefs, q)
	return uint32(len(b.queryRefs) - 1)
}

// Len reports the current byte size of the record log.
func (b *CommandBuffer) Len() int { return len(b.log) }

func (b *CommandBuffer) appendRecord(sortKey uint64, write func()) {
	offset := uint32(len(b.log))
	write()
	length := uint16(len(b.log) - int(offset))
	b.index = append(b.index, recordIndex{sortKey: sortKey, offset: offset, length: length})
}

func sortKey(phase, layer byte, primaryID uint32, secondaryID uint16) uint64 {
	return uint64(phase)<<56 | uint64(layer)<<48 | uint64(primaryID)<<16 | uint64(secondaryID)
}

func (b *CommandBuffer) putByte(v byte)    { b.log = append(b.log, v) }
func (b *CommandBuffer) putU16(v uint16)   { b.log = binary.LittleEndian.AppendUint16(b.log, v) }
func (b *CommandBuffer) putU32(v uint32)   { b.log = binary.LittleEndian.AppendUint32(b.log, v) }
func (b *CommandBuffer) putBytes(v []byte) { b.log = append(b.log, v...) }

func (b *CommandBuffer) putComponents(values []ComponentValue) {
	b.putU16(uint16(len(values)))
	for _, v := range values {
		b.putU16(v.TypeID)
		b.putU16(uint16(len(v.Data)))
		b.putBytes(v.Data)
	}
}

// DestroyEntity records a DESTROY_ENTITY command (phase DESTROY, primary =
// entity id, so destructions of the same entity recorded twice collapse
// via stable ordering into "destroyed").
func (b *CommandBuffer) DestroyEntity(e Entity) {
	key := sortKey(phaseDestroy, 0, uint32(e), 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpDestroyEntity))
		b.putU32(uint32(e))
	})
}

// AddComponent records an ADD_COMPONENT command. secondaryId=typeID groups
// same-type records on the same entity together while preserving the
// original add/set/remove sequence via the sort's stability.
func (b *CommandBuffer) AddComponent(e Entity, typeID uint16, data []byte, layer byte) {
	key := sortKey(phaseModify, layer, uint32(e), typeID)
	b.appendRecord(key, func() {
		b.putByte(byte(OpAddComponent))
		b.putU32(uint32(e))
		b.putU16(typeID)
		b.putU16(uint16(len(data)))
		b.putBytes(data)
	})
}

// RemoveComponent records a REMOVE_COMPONENT command.
func (b *CommandBuffer) RemoveComponent(e Entity, typeID uint16, layer byte) {
	key := sortKey(phaseModify, layer, uint32(e), typeID)
	b.appendRecord(key, func() {
		b.putByte(byte(OpRemoveComponent))
		b.putU32(uint32(e))
		b.putU16(typeID)
	})
}

// SetComponentData records a SET_COMPONENT_DATA command.
func (b *CommandBuffer) SetComponentData(e Entity, typeID uint16, data []byte, layer byte) {
	key := sortKey(phaseModify, layer, uint32(e), typeID)
	b.appendRecord(key, func() {
		b.putByte(byte(OpSetComponentData))
		b.putU32(uint32(e))
		b.putU16(typeID)
		b.putU16(uint16(len(data)))
		b.putBytes(data)
	})
}

// DestroyEntitiesInQuery records DESTROY_ENTITIES_IN_QUERY: every entity q
// matches at flush time is folded into the frame's deletions, instead of
// the caller recording one DestroyEntity per matched entity.
func (b *CommandBuffer) DestroyEntitiesInQuery(q *Query, layer byte) {
	ref := b.queryRef(q)
	key := sortKey(phaseDestroy, layer, ref, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpDestroyEntitiesInQuery))
		b.putU32(ref)
	})
}

// AddComponentToQuery records ADD_COMPONENT_TO_QUERY: typeID/data is added
// to every entity q matches at flush time.
func (b *CommandBuffer) AddComponentToQuery(q *Query, typeID uint16, data []byte, layer byte) {
	ref := b.queryRef(q)
	key := sortKey(phaseModify, layer, ref, typeID)
	b.appendRecord(key, func() {
		b.putByte(byte(OpAddComponentToQuery))
		b.putU32(ref)
		b.putU16(typeID)
		b.putU16(uint16(len(data)))
		b.putBytes(data)
	})
}

// RemoveComponentFromQuery records REMOVE_COMPONENT_FROM_QUERY: typeID is
// removed from every entity q matches at flush time.
func (b *CommandBuffer) RemoveComponentFromQuery(q *Query, typeID uint16, layer byte) {
	ref := b.queryRef(q)
	key := sortKey(phaseModify, layer, ref, typeID)
	b.appendRecord(key, func() {
		b.putByte(byte(OpRemoveComponentFromQuery))
		b.putU32(ref)
		b.putU16(typeID)
	})
}

// SetComponentDataForQuery records SET_COMPONENT_DATA_FOR_QUERY: typeID's
// data is overwritten on every entity q matches at flush time.
func (b *CommandBuffer) SetComponentDataForQuery(q *Query, typeID uint16, data []byte, layer byte) {
	ref := b.queryRef(q)
	key := sortKey(phaseModify, layer, ref, typeID)
	b.appendRecord(key, func() {
		b.putByte(byte(OpSetComponentDataForQuery))
		b.putU32(ref)
		b.putU16(typeID)
		b.putU16(uint16(len(data)))
		b.putBytes(data)
	})
}

// CreateEntity records a CREATE_ENTITY command. Creations have no entity id
// yet, so primaryId is the buffer's own creation sequence number, keeping
// creates ordered relative to each other under the stable sort.
func (b *CommandBuffer) CreateEntity(values []ComponentValue, layer byte) {
	seq := b.createSeq
	b.createSeq++
	key := sortKey(phaseCreate, layer, seq, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpCreateEntity))
		b.putComponents(values)
	})
}

// CreateEntityInArchetype records a CREATE_ENTITY_IN_ARCHETYPE command: the
// caller already knows the exact component set, so the executor resolves
// the target archetype directly rather than via transition edges.
func (b *CommandBuffer) CreateEntityInArchetype(values []ComponentValue, layer byte) {
	seq := b.createSeq
	b.createSeq++
	key := sortKey(phaseCreate, layer, seq, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpCreateEntityInArchetype))
		b.putComponents(values)
	})
}

// CreateEntitiesIdentical records CREATE_ENTITIES_IDENTICAL: n entities
// sharing one values payload, amortizing record size for bulk spawns.
func (b *CommandBuffer) CreateEntitiesIdentical(n int, values []ComponentValue, layer byte) {
	seq := b.createSeq
	b.createSeq++
	key := sortKey(phaseCreate, layer, seq, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpCreateEntitiesIdentical))
		b.putU32(uint32(n))
		b.putComponents(values)
	})
}

// CreateEntitiesVaried records CREATE_ENTITIES_VARIED: one independent
// values payload per new entity.
func (b *CommandBuffer) CreateEntitiesVaried(values [][]ComponentValue, layer byte) {
	seq := b.createSeq
	b.createSeq++
	key := sortKey(phaseCreate, layer, seq, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpCreateEntitiesVaried))
		b.putU32(uint32(len(values)))
		for _, v := range values {
			b.putComponents(v)
		}
	})
}

// InstantiatePrefab records INSTANTIATE_PREFAB: resolve name against the
// world's PrefabProvider at flush time, applying overrides on top.
func (b *CommandBuffer) InstantiatePrefab(name string, overrides []ComponentValue, layer byte) {
	seq := b.createSeq
	b.createSeq++
	key := sortKey(phaseCreate, layer, seq, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpInstantiatePrefab))
		b.putU16(uint16(len(name)))
		b.putBytes([]byte(name))
		b.putComponents(overrides)
	})
}

// InstantiatePrefabBatch records INSTANTIATE_PREFAB_BATCH: n copies of
// name, all carrying the same overrides.
func (b *CommandBuffer) InstantiatePrefabBatch(name string, n int, overrides []ComponentValue, layer byte) {
	seq := b.createSeq
	b.createSeq++
	key := sortKey(phaseCreate, layer, seq, 0)
	b.appendRecord(key, func() {
		b.putByte(byte(OpInstantiatePrefabBatch))
		b.putU32(uint32(n))
		b.putU16(uint16(len(name)))
		b.putBytes([]byte(name))
		b.putComponents(overrides)
	})
}

// sortedIndex returns the buffer's index entries in ascending sortKey
// order via an 8-pass LSD radix sort (least-significant byte first),
// stable by construction since each pass is a stable counting sort.
func (b *CommandBuffer) sortedIndex() []recordIndex {
	n := len(b.index)
	if n == 0 {
		return nil
	}
	src := make([]recordIndex, n)
	copy(src, b.index)
	dst := make([]recordIndex, n)

	var counts [256]int
	for pass := 0; pass < 8; pass++ {
		shift := uint(pass * 8)
		for i := range counts {
			counts[i] = 0
		}
		for _, r := range src {
			b := byte(r.sortKey >> shift)
			counts[b]++
		}
		sum := 0
		for i := 0; i < 256; i++ {
			c := counts[i]
			counts[i] = sum
			sum += c
		}
		for _, r := range src {
			b := byte(r.sortKey >> shift)
			dst[counts[b]] = r
			counts[b]++
		}
		src, dst = dst, src
	}
	return src
}

// decoder reads self-describing little-endian records sequentially out of
// one record's byte span.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder { return &decoder{buf: buf} }

func (d *decoder) byte_() byte {
	v := d.buf[d.pos]
	d.pos++
	return v
}

func (d *decoder) u16() uint16 {
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v
}

func (d *decoder) u32() uint32 {
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v
}

func (d *decoder) bytes(n int) []byte {
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v
}

func (d *decoder) components() []ComponentValue {
	count := d.u16()
	out := make([]ComponentValue, count)
	for i := range out {
		typeID := d.u16()
		length := d.u16()
		out[i] = ComponentValue{TypeID: typeID, Data: d.bytes(int(length))}
	}
	return out
}
