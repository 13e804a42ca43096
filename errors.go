package kiln

import "fmt"

// Registration-time fatal errors. These abort process start; they
// are never recovered from inside the engine.

type TooManyComponentTypesError struct{ Max int }

func (e TooManyComponentTypesError) Error() string {
	return fmt.Sprintf("component registry is at its maximum capacity (%d types)", e.Max)
}

type DuplicateComponentLayoutError struct {
	Name string
}

func (e DuplicateComponentLayoutError) Error() string {
	return fmt.Sprintf("component %q already registered with a different layout", e.Name)
}

type InvalidSchemaError struct {
	Name   string
	Reason string
}

func (e InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema for component %q: %s", e.Name, e.Reason)
}

// Bad-command errors. The offending record is skipped; the frame
// proceeds.

type UnknownOpcodeError struct{ Opcode byte }

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("command buffer: unknown opcode 0x%02x", e.Opcode)
}

type UnknownComponentTypeError struct{ TypeID uint16 }

func (e UnknownComponentTypeError) Error() string {
	return fmt.Sprintf("command buffer: unknown component type id %d", e.TypeID)
}

type UnknownPrefabError struct{ Name string }

func (e UnknownPrefabError) Error() string {
	return fmt.Sprintf("executor: prefab %q not found, instantiation skipped", e.Name)
}

// Invariant-violation errors. No mutation occurs; the operation
// returns a "not applicable" result alongside one of these.

type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return "storage is currently locked"
}

type InactiveEntityError struct{ Entity Entity }

func (e InactiveEntityError) Error() string {
	return fmt.Sprintf("entity %v is not active", e.Entity)
}

type EntityRelationError struct {
	Child, Parent Entity
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("child (%v) already has parent %v", e.Child, e.Parent)
}

type ComponentExistsError struct {
	TypeID uint16
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component already exists on entity: type id %d", e.TypeID)
}

type ComponentNotFoundError struct {
	TypeID uint16
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity: type id %d", e.TypeID)
}

// Executor partial-failure errors: the specific move is aborted, the
// entity remains in its source archetype, and the frame proceeds.

type ArchetypeAllocationError struct {
	Mask   Mask256
	Reason string
}

func (e ArchetypeAllocationError) Error() string {
	return fmt.Sprintf("executor: could not allocate target archetype for mask %v: %s", e.Mask, e.Reason)
}
