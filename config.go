package kiln

import "time"

// Config holds global configuration for the engine. Like warehouse's
// package-level Config value, it is a single struct with setter methods,
// not an env/flag-parsing layer — the core owns no CLI (see cmd/kilnbench
// for the host harness that does).
var Config config = config{
	ChunkCapacity:      1024,
	MaxComponentTypes:  256,
	FixedTimestep:      time.Second / 60,
	MaxAccumulatedTime: 5 * (time.Second / 60),
	Logger:             newBarkLogger(),
}

type config struct {
	// ChunkCapacity is the fixed row capacity of every archetype chunk.
	ChunkCapacity int

	// MaxComponentTypes bounds the component registry; the spec
	// fixes this at 256 (one bit per Mask256).
	MaxComponentTypes int

	// FixedTimestep is the logic group's inner-loop step duration.
	FixedTimestep time.Duration

	// MaxAccumulatedTime is the spiral-of-death clamp on the frame
	// accumulator.
	MaxAccumulatedTime time.Duration

	// Logger receives contextual warnings/errors.
	Logger Logger

	// Metrics is nil-safe; see metrics.go.
	Metrics *Metrics
}

// SetFixedTimestep configures the scheduler's inner-loop step and rescales
// the spiral-of-death clamp to 5x the new step.
func (c *config) SetFixedTimestep(d time.Duration) {
	c.FixedTimestep = d
	c.MaxAccumulatedTime = 5 * d
}

// SetChunkCapacity configures the archetype chunk row capacity. It only
// affects chunks allocated after the call (in new or existing archetypes);
// chunks that already exist keep their capacity.
func (c *config) SetChunkCapacity(n int) {
	c.ChunkCapacity = n
}

// SetLogger installs a logger for contextual warnings and errors.
func (c *config) SetLogger(l Logger) {
	c.Logger = l
}

// SetMetrics installs a metrics sink. Pass nil to disable instrumentation.
func (c *config) SetMetrics(m *Metrics) {
	c.Metrics = m
}
