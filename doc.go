// Package kiln is a data-oriented entity-component-system runtime aimed at
// simulations with very large, structurally churning entity populations.
//
// Components are pure data addressed by (entity, type); their memory
// layout is declared once via Schema and parsed into a Layout (schema.go),
// then stored column-by-column inside fixed-capacity chunks owned by one
// archetype per distinct component-type combination (chunk.go,
// archetype.go). A World (storage.go) owns the component registry, the
// archetype table, the string interner and handle table, and the entity
// directory mapping each live id to its (archetype, chunk, row).
//
// Structural changes made while a frame is running are recorded on a
// CommandBuffer (command.go) rather than applied immediately; a
// World.Flush call consolidates and executes them once per frame
// (executor.go). A Scheduler (scheduler.go) drives a fixed-timestep game
// loop across named system groups, calling Flush after every frame.
// Queries (query.go) describe archetype subsets by required/excluded/any
// component sets and, for reactive queries, a per-row change-tick
// threshold.
package kiln
