package kiln

// ComponentType is one registered component: a dense type-id, the single
// mask bit matching that id, its parsed layout, and a cached zero-valued
// default row.
type ComponentType struct {
	ID      uint16
	Name    string
	Layout  *Layout
	Default []byte
}

// ComponentRegistry assigns each component type a dense u16 type-id and a
// unique bit in a 256-bit mask, and holds the parsed layout descriptors.
// Grounded on warehouse's storage.go schema.Register/RowIndexFor
// register-or-reuse pattern, generalized from "one column per component"
// to "one or more columns per component, described by a Layout".
type ComponentRegistry struct {
	types  []ComponentType
	byName map[string]uint16
}

// NewComponentRegistry creates an empty registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{byName: make(map[string]uint16)}
}

// Register assigns name a type-id, parsing schema into a Layout. Re-
// registering the same name with an equal layout returns the existing
// type-id (idempotent); re-registering with a different layout, or
// exceeding Config.MaxComponentTypes, is a fatal error.
func (r *ComponentRegistry) Register(name string, schema Schema) (uint16, error) {
	if id, ok := r.byName[name]; ok {
		layout, err := ParseSchema(name, schema)
		if err != nil {
			return 0, err
		}
		if !layout.Equal(r.types[id].Layout) {
			return 0, DuplicateComponentLayoutError{Name: name}
		}
		return id, nil
	}
	if len(r.types) >= Config.MaxComponentTypes {
		return 0, TooManyComponentTypesError{Max: Config.MaxComponentTypes}
	}
	layout, err := ParseSchema(name, schema)
	if err != nil {
		return 0, err
	}
	id := uint16(len(r.types))
	ct := ComponentType{
		ID:      id,
		Name:    name,
		Layout:  layout,
		Default: make([]byte, layout.ByteSize()),
	}
	r.types = append(r.types, ct)
	r.byName[name] = id
	return id, nil
}

// TypeIDByName looks up a previously-registered type's id.
func (r *ComponentRegistry) TypeIDByName(name string) (uint16, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Bitmask returns the single-bit Mask256 for typeID. Type-id and mask bit
// are the same integer: a dense u16 in [0,256) addresses one Mask256 bit.
func (r *ComponentRegistry) Bitmask(typeID uint16) Mask256 {
	var m Mask256
	m.Mark(uint32(typeID))
	return m
}

// HasType reports whether typeID was registered. Callers resolving a
// type-id recorded in a command buffer must check this before indexing
// into the registry, since an unregistered or stale id can reach the
// executor through a skipped or out-of-order command.
func (r *ComponentRegistry) HasType(typeID uint16) bool {
	return int(typeID) < len(r.types)
}

// Layout returns typeID's parsed layout descriptor, or nil if typeID was
// never registered.
func (r *ComponentRegistry) Layout(typeID uint16) *Layout {
	if !r.HasType(typeID) {
		return nil
	}
	return r.types[typeID].Layout
}

// DefaultValue returns typeID's cached zero-valued default row.
func (r *ComponentRegistry) DefaultValue(typeID uint16) []byte {
	return r.types[typeID].Default
}

// Name returns typeID's registered name.
func (r *ComponentRegistry) Name(typeID uint16) string {
	return r.types[typeID].Name
}

// Count returns the number of registered component types.
func (r *ComponentRegistry) Count() int {
	return len(r.types)
}

// ByteSize returns typeID's per-row byte size.
func (r *ComponentRegistry) ByteSize(typeID uint16) int {
	return r.types[typeID].Layout.ByteSize()
}
