package kiln

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioRWM mirrors a read-write-modify benchmark scenario: spawn entities with Position
// {0,0} and Velocity{10,10}, run a fixed-step logic system for 60 steps of
// dt=1/60 that does pos += vel*dt and marks the row dirty, then checks
// every entity converged on pos≈{10,10}. The population is scaled down
// from the spec's 10^6 to keep the test's wall-clock bounded; the
// per-step math and convergence check are unchanged.
func TestScenarioRWM(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	const n = 2000
	w.Commands().CreateEntitiesIdentical(n, []ComponentValue{
		{TypeID: posID, Data: f64Row(0, 0)},
		{TypeID: velID, Data: f64Row(10, 10)},
	}, 0)
	require.NoError(t, w.Flush())

	q := w.NewQuery().SetCriteria([]uint16{posID, velID}, nil, nil, nil)
	const dt = 1.0 / 60.0
	for step := 0; step < 60; step++ {
		tick := w.AdvanceTick()
		c := q.Cursor()
		for c.Next() {
			a := c.Archetype()
			ch := a.chunks[c.ChunkIndex()]
			row := c.Row()
			posCols := ch.columns[posID]
			velCols := ch.columns[velID]
			px := columnAt[float64](posCols[0], row)
			py := columnAt[float64](posCols[1], row)
			vx := *columnAt[float64](velCols[0], row)
			vy := *columnAt[float64](velCols[1], row)
			*px += vx * dt
			*py += vy * dt
			ch.markDirty(posID, row, tick)
		}
	}

	c := q.Cursor()
	count := 0
	for c.Next() {
		a := c.Archetype()
		ch := a.chunks[c.ChunkIndex()]
		row := c.Row()
		x := *columnAt[float64](ch.columns[posID][0], row)
		y := *columnAt[float64](ch.columns[posID][1], row)
		assert.InDelta(t, 10.0, x, 1e-9)
		assert.InDelta(t, 10.0, y, 1e-9)
		count++
	}
	assert.Equal(t, n, count)
}

// TestScenarioChurn mirrors a steady-state churn benchmark scenario: a pool of N
// entities where every tick M are destroyed and M identical replacements
// are created. The active count must stay exactly N after every tick, and
// recycled ids must appear.
func TestScenarioChurn(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	extra, err := w.RegisterComponent("Churn", TagSchema())
	require.NoError(t, err)

	const poolSize = 500
	const perTick = 70

	w.Commands().CreateEntitiesIdentical(poolSize, []ComponentValue{
		{TypeID: posID, Data: f64Row(0, 0)},
		{TypeID: velID, Data: f64Row(0, 0)},
		{TypeID: extra, Data: nil},
	}, 0)
	require.NoError(t, w.Flush())

	q := w.NewQuery().SetCriteria([]uint16{posID, velID, extra}, nil, nil, nil)
	countActive := func() int {
		n := 0
		c := q.Cursor()
		for c.Next() {
			n++
		}
		return n
	}
	require.Equal(t, poolSize, countActive())

	var destroyedIDs []Entity
	for tick := 0; tick < 5; tick++ {
		c := q.Cursor()
		var toDestroy []Entity
		for i := 0; c.Next() && i < perTick; i++ {
			toDestroy = append(toDestroy, c.Entity())
		}
		for _, e := range toDestroy {
			w.Commands().DestroyEntity(e)
		}
		destroyedIDs = append(destroyedIDs, toDestroy...)
		w.Commands().CreateEntitiesIdentical(perTick, []ComponentValue{
			{TypeID: posID, Data: f64Row(0, 0)},
			{TypeID: velID, Data: f64Row(0, 0)},
			{TypeID: extra, Data: nil},
		}, 0)
		require.NoError(t, w.Flush())
		assert.Equal(t, poolSize, countActive())
	}

	recycled := false
	for _, e := range destroyedIDs {
		if w.IsActive(e) {
			recycled = true
			break
		}
	}
	assert.True(t, recycled, "at least one freed id should have been handed back out after tick 1")
}

// TestScenarioStructuralPingPong mirrors a structural ping-pong benchmark scenario: entities holding
// only A gain B on even ticks and lose it again on odd ticks. After every
// even tick the {A,B} count equals the population and the {A}-only count
// is zero; after every odd tick the reverse holds.
func TestScenarioStructuralPingPong(t *testing.T) {
	w := NewWorld()
	aID, err := w.RegisterComponent("A", TagSchema())
	require.NoError(t, err)
	bID, err := w.RegisterComponent("B", TagSchema())
	require.NoError(t, err)

	const n = 1100
	entities := w.SpawnBatchIdentical(map[uint16][]byte{aID: nil}, n)

	withB := w.NewQuery().SetCriteria([]uint16{aID, bID}, nil, nil, nil)
	withoutB := w.NewQuery().SetCriteria([]uint16{aID}, []uint16{bID}, nil, nil)
	count := func(q *Query) int {
		c := q.Cursor()
		n := 0
		for c.Next() {
			n++
		}
		return n
	}

	for tick := 0; tick < 6; tick++ {
		if tick%2 == 0 {
			for _, e := range entities {
				w.Commands().AddComponent(e, bID, nil, 0)
			}
		} else {
			for _, e := range entities {
				w.Commands().RemoveComponent(e, bID, 0)
			}
		}
		require.NoError(t, w.Flush())

		if tick%2 == 0 {
			assert.Equal(t, n, count(withB))
			assert.Equal(t, 0, count(withoutB))
		} else {
			assert.Equal(t, 0, count(withB))
			assert.Equal(t, n, count(withoutB))
		}
	}
}

func TestScenarioMask256XOROfArchetypeBits(t *testing.T) {
	w, posID, velID, benchID := newTestWorld(t)
	e := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0), velID: f64Row(0, 0), benchID: nil})
	a, _, _, ok := w.locate(e)
	require.True(t, ok)

	xored := XOROfBits([]uint32{uint32(posID), uint32(velID), uint32(benchID)})
	assert.True(t, xored.Equals(a.mask))
}
