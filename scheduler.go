package kiln

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"
)

// System is one unit of scheduler work. Frame.DeltaTime is the step's
// elapsed time (FixedTimestep for logic, the group's interval for timed
// groups, the raw frame delta for input and visuals; visuals additionally
// receives Alpha).
type System func(ctx *Frame) error

// Frame is the per-call context a System receives: the world, the step's
// delta time, the running change-detection tick, and (for visuals) the
// interpolation factor between the last two completed logic steps.
type Frame struct {
	World             *World
	DeltaTime         time.Duration
	CurrentTick       uint32
	LastCompletedTick uint32
	Alpha             float64

	scheduler *Scheduler
}

// Spawn hands fn to the owning scheduler's task group: a fire-and-forget
// background task that must communicate back only by recording on a
// command buffer, never by touching world storage directly, since nothing
// synchronizes it against the next Flush. The scheduler waits for every
// spawned task to finish before Run returns.
func (f *Frame) Spawn(fn func() error) {
	f.scheduler.Spawn(fn)
}

// namedSystem pairs a System with the name used in panic/error logging and
// an optional teardown callback invoked on shutdown.
type namedSystem struct {
	name    string
	fn      System
	destroy func()
}

// group is one scheduler system group: an ordered list of systems, plus
// the reactive queries that get primed before each of its runs.
// lastCompletedTick is a snapshot taken before the group runs and updated
// after, so the NEXT run primes watchers with "what this group had already
// observed as of its last run" rather than the value it is about to
// produce. The logic group's snapshot is the world's own change-tick
// (AdvanceTick runs inside its loop); visuals tracks the logic tick it
// last saw, since visuals has no tick of its own (see Step).
type group struct {
	name              string
	systems           []namedSystem
	lastCompletedTick uint32
	reactive          []*Query // queries primed before this group runs
}

func (g *group) add(name string, fn System, destroy func()) {
	g.systems = append(g.systems, namedSystem{name: name, fn: fn, destroy: destroy})
}

// watch registers q to be primed with the calling group's priming tick
// before every run of this group.
func (g *group) watch(q *Query) { g.reactive = append(g.reactive, q) }

// timedGroup is an arbitrary named group driven by its own accumulator at
// a caller-chosen frequency, independent of the fixed logic step.
type timedGroup struct {
	group
	interval    time.Duration
	accumulator time.Duration
}

// Scheduler drives system groups through a fixed-timestep game loop with
// a spiral-of-death clamp and change-tick bookkeeping. Grounded on
// solidcoredata-dca's internal/start/start.go signal+context+errgroup
// shutdown pattern, generalized from "run one function until SIGINT" to
// "run bounded frames until SIGINT, flushing the executor after each".
type Scheduler struct {
	world *World

	input   group
	logic   group
	visuals group
	timed   map[string]*timedGroup

	accumulator time.Duration

	logger  Logger
	metrics *Metrics

	// tasks tracks fire-and-forget background work spawned by systems via
	// Frame.Spawn, so Run can wait for it to drain before returning.
	tasks *errgroup.Group

	// destroyOrder records every system registered with a destroy callback,
	// in registration order, so shutdown can invoke them in reverse.
	destroyOrder []namedSystem
}

// NewScheduler creates a scheduler bound to world, driving its logic group
// at Config.FixedTimestep.
func NewScheduler(world *World) *Scheduler {
	return &Scheduler{
		world:   world,
		input:   group{name: "input"},
		logic:   group{name: "logic"},
		visuals: group{name: "visuals"},
		timed:   make(map[string]*timedGroup),
		logger:  Config.Logger,
		metrics: Config.Metrics,
	}
}

func (s *Scheduler) AddInputSystem(name string, fn System)  { s.register(&s.input, name, fn, nil) }
func (s *Scheduler) AddLogicSystem(name string, fn System)  { s.register(&s.logic, name, fn, nil) }
func (s *Scheduler) AddVisualSystem(name string, fn System) { s.register(&s.visuals, name, fn, nil) }

// AddInputSystemWithDestroy/AddLogicSystemWithDestroy/AddVisualSystemWithDestroy
// register fn like their plain counterparts, additionally recording destroy
// to run at shutdown, in reverse registration order across every group.
func (s *Scheduler) AddInputSystemWithDestroy(name string, fn System, destroy func()) {
	s.register(&s.input, name, fn, destroy)
}

func (s *Scheduler) AddLogicSystemWithDestroy(name string, fn System, destroy func()) {
	s.register(&s.logic, name, fn, destroy)
}

func (s *Scheduler) AddVisualSystemWithDestroy(name string, fn System, destroy func()) {
	s.register(&s.visuals, name, fn, destroy)
}

func (s *Scheduler) register(g *group, name string, fn System, destroy func()) {
	g.add(name, fn, destroy)
	if destroy != nil {
		s.destroyOrder = append(s.destroyOrder, namedSystem{name: name, destroy: destroy})
	}
}

// AddTimedSystem registers fn under a named group driven at interval,
// independent of the fixed logic step.
func (s *Scheduler) AddTimedSystem(groupName string, interval time.Duration, name string, fn System) {
	s.addTimed(groupName, interval, name, fn, nil)
}

// AddTimedSystemWithDestroy registers fn like AddTimedSystem, additionally
// recording destroy to run at shutdown.
func (s *Scheduler) AddTimedSystemWithDestroy(groupName string, interval time.Duration, name string, fn System, destroy func()) {
	s.addTimed(groupName, interval, name, fn, destroy)
}

func (s *Scheduler) addTimed(groupName string, interval time.Duration, name string, fn System, destroy func()) {
	g, ok := s.timed[groupName]
	if !ok {
		g = &timedGroup{group: group{name: groupName}, interval: interval}
		s.timed[groupName] = g
	}
	g.add(name, fn, destroy)
	if destroy != nil {
		s.destroyOrder = append(s.destroyOrder, namedSystem{name: name, destroy: destroy})
	}
}

// Spawn hands fn to the scheduler's task group as a fire-and-forget
// background task. Called before Run has created the task group, it logs
// a warning and drops fn without running it.
func (s *Scheduler) Spawn(fn func() error) {
	if s.tasks == nil {
		s.logger.Warn("Spawn called before Run started the task group, dropping task")
		return
	}
	s.tasks.Go(fn)
}

// destroySystems invokes every registered destroy callback in reverse
// registration order, isolating panics the way runOne isolates system
// panics, so one misbehaving teardown doesn't block the rest.
func (s *Scheduler) destroySystems() {
	for i := len(s.destroyOrder) - 1; i >= 0; i-- {
		ns := s.destroyOrder[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("system destroy panicked", "system", ns.name, "recover", r)
				}
			}()
			ns.destroy()
		}()
	}
}

// WatchLogic/WatchVisuals/WatchInput prime q with the named group's
// lastCompletedTick before each of that group's runs.
func (s *Scheduler) WatchInput(q *Query)   { s.input.watch(q) }
func (s *Scheduler) WatchLogic(q *Query)   { s.logic.watch(q) }
func (s *Scheduler) WatchVisuals(q *Query) { s.visuals.watch(q) }

// prime stamps every query g watches with f's LastCompletedTick — the
// caller's already-computed threshold for this group's run — so a system
// can call query.PrimedReactiveCursor() without threading its own tick
// bookkeeping through.
func prime(g *group, f *Frame) {
	for _, q := range g.reactive {
		q.primedTick = f.LastCompletedTick
	}
}

// runGroup executes every system in g in configured order, isolating
// panics and logging errors by system name without stopping the frame.
// f.LastCompletedTick must already hold the threshold this run's reactive
// queries should be primed with; runGroup does not compute it, since
// input/logic/timed/visuals each derive it differently (a per-group
// snapshot vs. the logic group's current tick).
func (s *Scheduler) runGroup(g *group, f *Frame) {
	prime(g, f)
	for _, ns := range g.systems {
		s.runOne(ns, f)
	}
}

func (s *Scheduler) runOne(ns namedSystem, f *Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("system panicked", "system", ns.name, "recover", r)
		}
	}()
	if err := ns.fn(f); err != nil {
		s.logger.Error("system returned error", "system", ns.name, "err", err)
	}
}

// Step runs exactly one frame: input, the fixed-timestep logic loop
// (spiral-of-death clamped), every due timed group, visuals with
// interpolation alpha, and finally the executor flush.
func (s *Scheduler) Step(rawDeltaTime time.Duration) {
	start := time.Now()

	inputSnapshot := s.input.lastCompletedTick
	inputFrame := &Frame{World: s.world, DeltaTime: rawDeltaTime, CurrentTick: s.world.Tick(), LastCompletedTick: inputSnapshot, scheduler: s}
	s.runGroup(&s.input, inputFrame)
	s.input.lastCompletedTick = s.world.Tick()

	s.accumulator += rawDeltaTime
	if max := Config.MaxAccumulatedTime; s.accumulator > max {
		s.accumulator = max
	}

	for s.accumulator >= Config.FixedTimestep {
		snapshot := s.logic.lastCompletedTick
		tick := s.world.AdvanceTick()
		logicFrame := &Frame{World: s.world, DeltaTime: Config.FixedTimestep, CurrentTick: tick, LastCompletedTick: snapshot, scheduler: s}
		s.runGroup(&s.logic, logicFrame)
		s.logic.lastCompletedTick = tick
		s.accumulator -= Config.FixedTimestep
	}

	for _, tg := range s.timed {
		tg.accumulator += rawDeltaTime
		for tg.accumulator >= tg.interval {
			frame := &Frame{World: s.world, DeltaTime: tg.interval, CurrentTick: s.world.Tick(), LastCompletedTick: tg.lastCompletedTick, scheduler: s}
			s.runGroup(&tg.group, frame)
			tg.lastCompletedTick = s.world.Tick()
			tg.accumulator -= tg.interval
		}
	}

	alpha := float64(s.accumulator) / float64(Config.FixedTimestep)
	visualSnapshot := s.visuals.lastCompletedTick
	visualFrame := &Frame{World: s.world, DeltaTime: rawDeltaTime, CurrentTick: s.world.Tick(), LastCompletedTick: visualSnapshot, Alpha: alpha, scheduler: s}
	s.runGroup(&s.visuals, visualFrame)
	s.visuals.lastCompletedTick = s.logic.lastCompletedTick

	if err := s.world.Flush(); err != nil {
		s.logger.Error("executor flush failed", "err", err)
	}

	s.metrics.observeFrame(time.Since(start))
}

// Run drives Step on an interval-based loop until ctx is cancelled or an
// OS interrupt is received, then returns after the in-flight frame
// completes. Grounded on solidcoredata-dca's Start: signal.Notify +
// context cancellation + errgroup, adapted from "run one task" to "run
// bounded frames".
func (s *Scheduler) Run(ctx context.Context, frameInterval time.Duration) error {
	notify := make(chan os.Signal, 1)
	signal.Notify(notify, os.Interrupt)
	defer signal.Stop(notify)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks, ctx := errgroup.WithContext(ctx)
	s.tasks = tasks
	tasks.Go(func() error {
		select {
		case <-notify:
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	last := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			s.Step(now.Sub(last))
			last = now
		}
	}

	s.destroySystems()

	if err := tasks.Wait(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}
