package kiln

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessibleComponentSliceAndMarkDirty(t *testing.T) {
	w := NewWorld()
	healthID, err := w.RegisterComponent("Health", Schema{Fields: []FieldDecl{
		{Name: "value", Kind: KindPrimitive, Of: F64},
	}})
	require.NoError(t, err)

	e := w.Spawn(map[uint16][]byte{healthID: f64Row(5)})

	health := Component[float64](w, healthID)
	a, chunkIdx, row, ok := w.locate(e)
	require.True(t, ok)

	require.Equal(t, 1, a.ChunkCount())
	require.Equal(t, 1, a.ChunkSize(chunkIdx))

	values := health.Slice(a, chunkIdx)
	assert.Equal(t, 5.0, values[row])

	before := a.maxDirty(healthID)
	w.AdvanceTick()
	*health.At(a, chunkIdx, row) = 99
	health.MarkDirty(a, chunkIdx, row)
	assert.Greater(t, a.maxDirty(healthID), before)
	assert.Equal(t, 99.0, health.Slice(a, chunkIdx)[row])
}
