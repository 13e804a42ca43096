package kiln

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inventory struct{ items []string }

func TestAoSValueRoundTripsThroughHandleTable(t *testing.T) {
	w := NewWorld()
	invID, err := w.RegisterComponent("Inventory", AoSSchema())
	require.NoError(t, err)

	data := w.NewAoSValue(&inventory{items: []string{"sword", "shield"}})
	e := w.Spawn(map[uint16][]byte{invID: data})

	got, ok := w.GetComponent(e, invID)
	require.True(t, ok)
	value, ok := w.AoSValue(got)
	require.True(t, ok)
	assert.Equal(t, []string{"sword", "shield"}, value.(*inventory).items)
}

func TestDestroyReleasesAoSHandle(t *testing.T) {
	w := NewWorld()
	invID, err := w.RegisterComponent("Inventory", AoSSchema())
	require.NoError(t, err)

	data := w.NewAoSValue(&inventory{items: []string{"potion"}})
	e := w.Spawn(map[uint16][]byte{invID: data})
	w.Destroy(e)

	_, ok := w.AoSValue(data)
	assert.False(t, ok, "the handle must no longer resolve once its owning entity is destroyed")
}

func TestRemoveComponentReleasesAoSHandle(t *testing.T) {
	w, posID, _, _ := newTestWorld(t)
	invID, err := w.RegisterComponent("Inventory", AoSSchema())
	require.NoError(t, err)

	data := w.NewAoSValue(&inventory{items: []string{"key"}})
	e := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0), invID: data})
	require.NoError(t, w.removeComponent(e, invID))

	_, ok := w.AoSValue(data)
	assert.False(t, ok, "removing the component must release its handle")
}

func TestAoSDefaultRowNeverAliasesARealHandle(t *testing.T) {
	w := NewWorld()
	invID, err := w.RegisterComponent("Inventory", AoSSchema())
	require.NoError(t, err)

	// Spawn without supplying Inventory data: the column gets its zero
	// default, which must never resolve to whatever is later allocated at
	// handle-table slot 0's former identity.
	e := w.Spawn(map[uint16][]byte{invID: nil})
	real := w.NewAoSValue(&inventory{items: []string{"real"}})
	_ = real

	zeroData := make([]byte, 4)
	got, ok := w.GetComponent(e, invID)
	require.True(t, ok)
	assert.Equal(t, zeroData, got)
	_, resolves := w.AoSValue(got)
	assert.False(t, resolves, "the default zero handle must never resolve to a real value")
}
