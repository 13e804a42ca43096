package kiln

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional prometheus instrumentation sink (Config.Metrics).
// Every method is nil-receiver-safe so the scheduler and executor can call
// them unconditionally without branching on whether metrics were
// configured, the pattern arx-os-arxos's service layer uses for its
// prometheus counters.
type Metrics struct {
	frameDuration   prometheus.Histogram
	flushDuration   prometheus.Histogram
	entitiesCreated prometheus.Counter
	entitiesDestroy prometheus.Counter
	commandBytes    prometheus.Gauge
	archetypeCount  prometheus.Gauge
}

// NewMetrics registers kiln's collectors on reg and returns a Metrics sink.
// Pass nil to Config.SetMetrics to disable instrumentation entirely.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "kiln_frame_duration_seconds",
			Help: "Wall-clock duration of one scheduler frame.",
		}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "kiln_flush_duration_seconds",
			Help: "Wall-clock duration of one command buffer flush.",
		}),
		entitiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_entities_created_total",
			Help: "Entities created by flush, cumulative.",
		}),
		entitiesDestroy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_entities_destroyed_total",
			Help: "Entities destroyed by flush, cumulative.",
		}),
		commandBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiln_command_buffer_bytes",
			Help: "Size in bytes of the command buffer at last flush.",
		}),
		archetypeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiln_archetype_count",
			Help: "Number of distinct archetypes currently allocated.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.frameDuration, m.flushDuration, m.entitiesCreated, m.entitiesDestroy, m.commandBytes, m.archetypeCount)
	}
	return m
}

func (m *Metrics) observeFrame(d time.Duration) {
	if m == nil {
		return
	}
	m.frameDuration.Observe(d.Seconds())
}

func (m *Metrics) observeFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushDuration.Observe(d.Seconds())
}

func (m *Metrics) addCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesCreated.Add(float64(n))
}

func (m *Metrics) addDestroyed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entitiesDestroy.Add(float64(n))
}

func (m *Metrics) setCommandBytes(n int) {
	if m == nil {
		return
	}
	m.commandBytes.Set(float64(n))
}

func (m *Metrics) setArchetypeCount(n int) {
	if m == nil {
		return
	}
	m.archetypeCount.Set(float64(n))
}
