package kiln

import "strings"

// EntityDestroyCallback is invoked with an entity after that entity has
// been destroyed, if a callback was registered for it via SetParent or
// SetDestroyCallback. Grounded on warehouse's entity.go destroy callback.
type EntityDestroyCallback func(Entity)

// relationship tracks one entity's parent and destroy callback. Kept as an
// opt-in convenience layered on top of the entity directory (C5); it never
// changes C8's destroy/move/create ordering, only runs after a destroy has
// already been consolidated.
type relationship struct {
	parent    Entity
	onDestroy EntityDestroyCallback
}

// Relations is the supplemental parent/child and destroy-callback registry.
// A World that never calls SetParent/SetDestroyCallback pays nothing for
// it beyond one empty map.
type Relations struct {
	byChild map[Entity]*relationship
}

// NewRelations creates an empty relationship registry.
func NewRelations() *Relations {
	return &Relations{byChild: make(map[Entity]*relationship)}
}

// SetParent records that child belongs to parent, invoking callback when
// child itself is later destroyed. Destroying parent neither destroys child
// nor runs child's callback. Re-parenting an entity that already has a
// parent is rejected.
func (r *Relations) SetParent(child, parent Entity, callback EntityDestroyCallback) error {
	if rel, ok := r.byChild[child]; ok && rel.parent != NullEntity {
		return EntityRelationError{Child: child, Parent: rel.parent}
	}
	r.byChild[child] = &relationship{parent: parent, onDestroy: callback}
	return nil
}

// Parent returns child's registered parent, or NullEntity if none.
func (r *Relations) Parent(child Entity) Entity {
	if rel, ok := r.byChild[child]; ok {
		return rel.parent
	}
	return NullEntity
}

// SetDestroyCallback registers callback to run when e is destroyed,
// independent of any parent relationship.
func (r *Relations) SetDestroyCallback(e Entity, callback EntityDestroyCallback) {
	rel, ok := r.byChild[e]
	if !ok {
		rel = &relationship{}
		r.byChild[e] = rel
	}
	rel.onDestroy = callback
}

// NotifyDestroyed runs e's destroy callback, if any, and forgets e. Called
// once e's directory entry is freed: from World.destroy for immediate
// destruction (World.Destroy), and from World.destroyBatch for destruction
// deferred through a flush.
func (r *Relations) NotifyDestroyed(e Entity) {
	rel, ok := r.byChild[e]
	if !ok {
		return
	}
	delete(r.byChild, e)
	if rel.onDestroy != nil {
		rel.onDestroy(e)
	}
}

// ComponentsAsString lists e's registered component names, space-separated
// in type-id order, a debug convenience warehouse's entity.go exposed by
// reflecting on Go values; here it reads straight from the registry since
// components are schema-described data rather than arbitrary structs.
func (w *World) ComponentsAsString(e Entity) string {
	a, _, _, ok := w.locate(e)
	if !ok {
		return ""
	}
	names := make([]string, len(a.typeIDs))
	for i, t := range a.typeIDs {
		names[i] = w.reg.Name(t)
	}
	return strings.Join(names, " ")
}

// Components returns e's registered component type-ids, in archetype order.
func (w *World) Components(e Entity) []uint16 {
	a, _, _, ok := w.locate(e)
	if !ok {
		return nil
	}
	out := make([]uint16, len(a.typeIDs))
	copy(out, a.typeIDs)
	return out
}
