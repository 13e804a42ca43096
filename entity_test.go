package kiln

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationsSetParentAndNotifyOnDestroy(t *testing.T) {
	w, posID, _, _ := newTestWorld(t)
	parent := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})
	child := w.Spawn(map[uint16][]byte{posID: f64Row(1, 1)})

	var notified Entity
	require.NoError(t, w.Relations().SetParent(child, parent, func(e Entity) { notified = e }))
	assert.Equal(t, parent, w.Relations().Parent(child))

	w.Destroy(child)
	assert.Equal(t, child, notified, "destroying the child must fire its registered callback")
}

func TestRelationsRejectsDoubleParenting(t *testing.T) {
	w, posID, _, _ := newTestWorld(t)
	a := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})
	b := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})
	c := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0)})

	require.NoError(t, w.Relations().SetParent(c, a, nil))
	err := w.Relations().SetParent(c, b, nil)
	require.Error(t, err)
	var relErr EntityRelationError
	require.ErrorAs(t, err, &relErr)
}

func TestComponentsAndComponentsAsString(t *testing.T) {
	w, posID, velID, _ := newTestWorld(t)
	e := w.Spawn(map[uint16][]byte{posID: f64Row(0, 0), velID: f64Row(0, 0)})

	ids := w.Components(e)
	assert.ElementsMatch(t, []uint16{posID, velID}, ids)
	assert.Contains(t, w.ComponentsAsString(e), "Position")
	assert.Contains(t, w.ComponentsAsString(e), "Velocity")
}
