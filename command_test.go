package kiln

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBufferRecordsOneEntryPerCall(t *testing.T) {
	b := NewCommandBuffer()
	b.DestroyEntity(Entity(7))
	b.AddComponent(Entity(3), 1, []byte{1, 2, 3}, 0)
	require.Len(t, b.index, 2)
}

func TestCommandBufferSortOrdersDestroyBeforeModifyBeforeCreate(t *testing.T) {
	b := NewCommandBuffer()
	b.CreateEntity(nil, 0)
	b.AddComponent(Entity(1), 5, nil, 0)
	b.DestroyEntity(Entity(2))

	sorted := b.sortedIndex()
	require.Len(t, sorted, 3)

	opAt := func(r recordIndex) Opcode {
		return Opcode(b.log[r.offset])
	}
	assert.Equal(t, OpDestroyEntity, opAt(sorted[0]))
	assert.Equal(t, OpAddComponent, opAt(sorted[1]))
	assert.Equal(t, OpCreateEntity, opAt(sorted[2]))
}

func TestCommandBufferSortIsStableWithinEqualKeys(t *testing.T) {
	b := NewCommandBuffer()
	// Same entity, same type: add, set, remove, add again — same sort key
	// every time (phase=MODIFY, layer=0, primary=entity, secondary=type),
	// so recording order must survive the sort.
	b.AddComponent(Entity(9), 2, []byte{1}, 0)
	b.SetComponentData(Entity(9), 2, []byte{2}, 0)
	b.RemoveComponent(Entity(9), 2, 0)
	b.AddComponent(Entity(9), 2, []byte{3}, 0)

	sorted := b.sortedIndex()
	require.Len(t, sorted, 4)
	var ops []Opcode
	for _, r := range sorted {
		ops = append(ops, Opcode(b.log[r.offset]))
	}
	assert.Equal(t, []Opcode{OpAddComponent, OpSetComponentData, OpRemoveComponent, OpAddComponent}, ops)
}

func TestCommandBufferResetClearsLogAndIndex(t *testing.T) {
	b := NewCommandBuffer()
	b.DestroyEntity(Entity(1))
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Len(t, b.index, 0)
}

func TestFlushAppliesModifyAndCreateInOneFrame(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	e := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})

	w.Commands().AddComponent(e, velID, f64Row(1, 1), 0)
	w.Commands().CreateEntity([]ComponentValue{{TypeID: posID, Data: f64Row(9, 9)}}, 0)

	require.NoError(t, w.Flush())

	assert.True(t, w.HasComponent(e, velID))

	q := w.NewQuery().SetCriteria([]uint16{posID}, []uint16{velID}, nil, nil)
	count := 0
	c := q.Cursor()
	for c.Next() {
		count++
	}
	assert.Equal(t, 1, count, "the newly created Position-only entity should be the sole match")
}

func TestFlushDestructionDominatesSameFrameModification(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	e := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})

	w.Commands().AddComponent(e, velID, f64Row(1, 1), 0)
	w.Commands().DestroyEntity(e)

	require.NoError(t, w.Flush())
	assert.False(t, w.IsActive(e), "destruction must dominate any same-frame modification")
}

func TestFlushAddSetRemoveAddThenDestroySequence(t *testing.T) {
	// Mirrors the S5 executor-ordering scenario: an entity with {Position}
	// has addComponent(Velocity), setComponentData(Velocity), removeComponent
	// (Velocity), addComponent(Velocity) again, destroyEntity recorded in
	// that order within one frame. After flush it must be destroyed and
	// absent from every archetype.
	w, posID, velID, _ := newTestWorld(t)
	e := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})

	cmds := w.Commands()
	cmds.AddComponent(e, velID, f64Row(1, 1), 0)
	cmds.SetComponentData(e, velID, f64Row(2, 2), 0)
	cmds.RemoveComponent(e, velID, 0)
	cmds.AddComponent(e, velID, f64Row(3, 3), 0)
	cmds.DestroyEntity(e)

	require.NoError(t, w.Flush())

	assert.False(t, w.IsActive(e))
	for _, a := range w.archetypes {
		for _, ch := range a.chunks {
			for _, id := range ch.entityIDs[:ch.size] {
				assert.NotEqual(t, uint32(e), id)
			}
		}
	}
}

func TestFlushCreateEntitiesIdentical(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	w.Commands().CreateEntitiesIdentical(50, []ComponentValue{
		{TypeID: posID, Data: f64Row(0, 0)},
		{TypeID: velID, Data: f64Row(10, 10)},
	}, 0)
	require.NoError(t, w.Flush())

	q := w.NewQuery().SetCriteria([]uint16{posID, velID}, nil, nil, nil)
	count := 0
	c := q.Cursor()
	for c.Next() {
		count++
	}
	assert.Equal(t, 50, count)
}

func TestFlushInstantiatePrefabMergesOverrides(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	prefabs := NewMemoryPrefabs()
	prefabs.Define("pawn", PrefabNode{
		Components: []ComponentValue{
			{TypeID: posID, Data: f64Row(0, 0)},
			{TypeID: velID, Data: f64Row(1, 1)},
		},
	})
	w.SetPrefabProvider(prefabs)

	w.Commands().InstantiatePrefab("pawn", []ComponentValue{{TypeID: velID, Data: f64Row(5, 5)}}, 0)
	require.NoError(t, w.Flush())

	q := w.NewQuery().SetCriteria([]uint16{posID, velID}, nil, nil, nil)
	c := q.Cursor()
	require.True(t, c.Next())
	e := c.Entity()
	data, ok := w.GetComponent(e, velID)
	require.True(t, ok)
	assert.Equal(t, f64Row(5, 5), data, "override must replace the template's Velocity value")
}

func TestFlushUnknownPrefabIsSkippedNotFatal(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.SetPrefabProvider(NewMemoryPrefabs())
	w.Commands().InstantiatePrefab("missing", nil, 0)
	require.NoError(t, w.Flush())
}

func TestFlushInstantiatePrefabCreatesChildrenParentedToRoot(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	prefabs := NewMemoryPrefabs()
	prefabs.Define("squad", PrefabNode{
		Components: []ComponentValue{{TypeID: posID, Data: f64Row(0, 0)}},
		Children: []PrefabNode{
			{Components: []ComponentValue{{TypeID: velID, Data: f64Row(1, 1)}}},
			{Components: []ComponentValue{{TypeID: velID, Data: f64Row(2, 2)}}},
		},
	})
	w.SetPrefabProvider(prefabs)

	w.Commands().InstantiatePrefab("squad", nil, 0)
	require.NoError(t, w.Flush())

	rootQuery := w.NewQuery().SetCriteria([]uint16{posID}, []uint16{velID}, nil, nil)
	rc := rootQuery.Cursor()
	require.True(t, rc.Next())
	root := rc.Entity()
	assert.False(t, rc.Next(), "exactly one root entity should have been created")

	childQuery := w.NewQuery().SetCriteria([]uint16{velID}, []uint16{posID}, nil, nil)
	childCount := 0
	cc := childQuery.Cursor()
	for cc.Next() {
		childCount++
		assert.Equal(t, root, w.Relations().Parent(cc.Entity()), "each child must be parented to the instantiated root")
	}
	assert.Equal(t, 2, childCount)
}
