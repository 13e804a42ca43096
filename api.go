package kiln

// RegisterComponent assigns name a component type id from schema,
// returning the same id on an idempotent re-registration.
func (w *World) RegisterComponent(name string, schema Schema) (uint16, error) {
	return w.reg.Register(name, schema)
}

// Spawn creates one entity directly, outside the deferred command buffer.
// Intended for world setup (registering initial entities before the
// scheduler starts) and tests; systems running inside a frame must record
// creation on w.Commands() instead — the rule against touching storage
// directly applies to systems, not to setup code run before Step begins.
func (w *World) Spawn(values map[uint16][]byte) Entity {
	return w.createInArchetype(w.archetypeFor(maskFromMap(values)), values)
}

// SpawnBatchIdentical creates n entities sharing one values map.
func (w *World) SpawnBatchIdentical(values map[uint16][]byte, n int) []Entity {
	target := w.archetypeFor(maskFromMap(values))
	return w.createBatchIdenticalInArchetype(target, values, n)
}

// SpawnBatchVaried creates len(values) entities, each from its own map.
func (w *World) SpawnBatchVaried(values []map[uint16][]byte) []Entity {
	out := make([]Entity, len(values))
	for i, v := range values {
		out[i] = w.Spawn(v)
	}
	return out
}

// Destroy removes e immediately, outside the deferred command buffer. See
// Spawn's doc comment for when immediate mutation is appropriate.
func (w *World) Destroy(e Entity) {
	w.destroy(e)
}

// HasComponent reports whether e currently carries typeID.
func (w *World) HasComponent(e Entity, typeID uint16) bool {
	return w.hasComponent(e, typeID)
}

func maskFromMap(values map[uint16][]byte) Mask256 {
	var m Mask256
	for t := range values {
		m.Mark(uint32(t))
	}
	return m
}
