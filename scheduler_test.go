package kiln

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerLogicGroupRunsAtFixedTimestep(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	old := Config.FixedTimestep
	Config.SetFixedTimestep(10 * time.Millisecond)
	defer Config.SetFixedTimestep(old)

	s := NewScheduler(w)
	steps := 0
	s.AddLogicSystem("counter", func(f *Frame) error {
		steps++
		return nil
	})

	s.Step(35 * time.Millisecond)
	assert.Equal(t, 3, steps, "35ms of accumulated time at a 10ms step should run logic 3 times")
}

func TestSchedulerSpiralOfDeathClamp(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	old := Config.FixedTimestep
	Config.SetFixedTimestep(10 * time.Millisecond)
	defer Config.SetFixedTimestep(old)

	s := NewScheduler(w)
	steps := 0
	s.AddLogicSystem("counter", func(f *Frame) error {
		steps++
		return nil
	})

	s.Step(10 * time.Second)
	assert.Equal(t, 5, steps, "accumulator must clamp to 5x the fixed timestep")
}

func TestSchedulerSystemPanicDoesNotStopFrame(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	s := NewScheduler(w)

	ran := false
	s.AddLogicSystem("boom", func(f *Frame) error {
		panic("deliberate test panic")
	})
	s.AddLogicSystem("after", func(f *Frame) error {
		ran = true
		return nil
	})

	assert.NotPanics(t, func() { s.Step(Config.FixedTimestep) })
	assert.True(t, ran, "a later system in the group must still run after an earlier one panics")
}

func TestSchedulerFlushesExecutorEveryFrame(t *testing.T) {
	w, posID, _, _ := newTestWorld(t)
	s := NewScheduler(w)

	s.AddLogicSystem("spawner", func(f *Frame) error {
		f.World.Commands().CreateEntity([]ComponentValue{{TypeID: posID, Data: f64Row(1, 1)}}, 0)
		return nil
	})

	s.Step(Config.FixedTimestep)

	q := w.NewQuery().SetCriteria([]uint16{posID}, nil, nil, nil)
	count := 0
	c := q.Cursor()
	for c.Next() {
		count++
	}
	assert.Equal(t, 1, count)
}

// TestSchedulerWatchPrimesQueryWithGroupTick checks that a watched query is
// primed with the tick as of the group's *previous* completed run, not the
// one this same Step call is about to produce: the second Step's priming
// must equal whatever lastCompletedTick was left after the first Step.
func TestSchedulerWatchPrimesQueryWithGroupTick(t *testing.T) {
	w, posID, _, _ := newTestWorld(t)
	s := NewScheduler(w)
	q := w.NewQuery().SetCriteria([]uint16{posID}, nil, nil, []uint16{posID})
	s.WatchLogic(q)

	s.Step(Config.FixedTimestep)
	tickAfterFirstStep := s.logic.lastCompletedTick

	s.Step(Config.FixedTimestep)
	require.Equal(t, tickAfterFirstStep, q.primedTick)
}
