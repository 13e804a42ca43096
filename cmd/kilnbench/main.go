// Command kilnbench runs the reference ECS scenarios against a kiln World
// and reports per-scenario timing and pass/fail status. It is a host
// harness, not part of the core: kiln owns no CLI, renderer, or process
// lifecycle of its own.
package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	root := &cobra.Command{
		Use:   "kilnbench",
		Short: "Run kiln's reference ECS scenarios",
	}

	var entityCount int
	rwm := &cobra.Command{
		Use:   "rwm",
		Short: "Read-modify-write scenario: N entities, 60 fixed steps, pos += vel*dt",
		Run: func(cmd *cobra.Command, args []string) {
			runScenario("rwm", func() error { return scenarioRWM(entityCount) })
		},
	}
	rwm.Flags().IntVar(&entityCount, "entities", 100000, "number of entities to spawn")

	var poolSize, churnPerTick, ticks int
	churn := &cobra.Command{
		Use:   "churn",
		Short: "Creation/destruction churn scenario",
		Run: func(cmd *cobra.Command, args []string) {
			runScenario("churn", func() error { return scenarioChurn(poolSize, churnPerTick, ticks) })
		},
	}
	churn.Flags().IntVar(&poolSize, "pool", 50000, "steady-state pool size")
	churn.Flags().IntVar(&churnPerTick, "per-tick", 7000, "entities destroyed and recreated per tick")
	churn.Flags().IntVar(&ticks, "ticks", 10, "number of ticks to run")

	var pingEntities, pingTicks int
	pingpong := &cobra.Command{
		Use:   "pingpong",
		Short: "Structural ping-pong scenario: alternating add/remove of B",
		Run: func(cmd *cobra.Command, args []string) {
			runScenario("pingpong", func() error { return scenarioPingPong(pingEntities, pingTicks) })
		},
	}
	pingpong.Flags().IntVar(&pingEntities, "entities", 11000, "number of entities carrying A")
	pingpong.Flags().IntVar(&pingTicks, "ticks", 6, "number of ticks to alternate over")

	reactive := &cobra.Command{
		Use:   "reactive",
		Short: "Reactive query scenario: visuals sees exactly the rows logic touched",
		Run: func(cmd *cobra.Command, args []string) {
			runScenario("reactive", func() error { return scenarioReactive() })
		},
	}

	order := &cobra.Command{
		Use:   "order",
		Short: "Executor ordering scenario: add/set/remove/add/destroy in one frame",
		Run: func(cmd *cobra.Command, args []string) {
			runScenario("order", func() error { return scenarioOrder() })
		},
	}

	intern := &cobra.Command{
		Use:   "intern",
		Short: "String interning scenario: idempotent handles, substring queries",
		Run: func(cmd *cobra.Command, args []string) {
			runScenario("intern", func() error { return scenarioIntern() })
		},
	}

	root.AddCommand(rwm, churn, pingpong, reactive, order, intern)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runScenario(name string, fn func() error) {
	fmt.Println(titleStyle.Render("kilnbench: " + name))
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s): %v", elapsed, err)))
		os.Exit(1)
	}
	fmt.Println(okStyle.Render(fmt.Sprintf("OK (%s)", elapsed)))
}

func f64Row(vals ...float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func scenarioRWM(n int) error {
	w := kiln.NewWorld()
	posID, err := w.RegisterComponent("Position", kiln.Schema{Fields: []kiln.FieldDecl{
		{Name: "x", Kind: kiln.KindPrimitive, Of: kiln.F64},
		{Name: "y", Kind: kiln.KindPrimitive, Of: kiln.F64},
	}})
	if err != nil {
		return err
	}
	velID, err := w.RegisterComponent("Velocity", kiln.Schema{Fields: []kiln.FieldDecl{
		{Name: "x", Kind: kiln.KindPrimitive, Of: kiln.F64},
		{Name: "y", Kind: kiln.KindPrimitive, Of: kiln.F64},
	}})
	if err != nil {
		return err
	}
	if _, err := w.RegisterComponent("Bench", kiln.TagSchema()); err != nil {
		return err
	}

	values := map[uint16][]byte{posID: f64Row(0, 0), velID: f64Row(10, 10)}
	w.SpawnBatchIdentical(values, n)

	pos := kiln.Component[float64](w, posID)
	vel := kiln.Component[float64](w, velID)
	q := w.NewQuery().SetCriteria([]uint16{posID, velID}, nil, nil, nil)

	s := kiln.NewScheduler(w)
	s.AddLogicSystem("move", func(f *kiln.Frame) error {
		dt := f.DeltaTime.Seconds()
		for _, a := range q.Archetypes() {
			for chunkIdx := 0; chunkIdx < a.ChunkCount(); chunkIdx++ {
				n := a.ChunkSize(chunkIdx)
				px := pos.Slice(a, chunkIdx)
				vx := vel.Slice(a, chunkIdx)
				for row := 0; row < n && row < len(px) && row < len(vx); row++ {
					px[row] += vx[row] * dt
				}
				for row := 0; row < n; row++ {
					pos.MarkDirty(a, chunkIdx, row)
				}
			}
		}
		return nil
	})

	for step := 0; step < 60; step++ {
		s.Step(time.Second / 60)
	}

	cursor := q.Cursor()
	for cursor.Next() {
		e := cursor.Entity()
		data, _ := w.GetComponent(e, posID)
		x := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
		if math.Abs(x-10.0) > 1e-6 {
			return fmt.Errorf("entity %d did not converge: x=%f", e, x)
		}
	}
	return nil
}

func scenarioChurn(pool, perTick, ticks int) error {
	w := kiln.NewWorld()
	posID, err := w.RegisterComponent("Position", kiln.Schema{Fields: []kiln.FieldDecl{
		{Name: "x", Kind: kiln.KindPrimitive, Of: kiln.F64},
		{Name: "y", Kind: kiln.KindPrimitive, Of: kiln.F64},
	}})
	if err != nil {
		return err
	}
	churnID, err := w.RegisterComponent("Churn", kiln.TagSchema())
	if err != nil {
		return err
	}

	w.SpawnBatchIdentical(map[uint16][]byte{posID: f64Row(0, 0), churnID: nil}, pool)

	q := w.NewQuery().SetCriteria([]uint16{posID, churnID}, nil, nil, nil)
	for tick := 0; tick < ticks; tick++ {
		c := q.Cursor()
		for i := 0; c.Next() && i < perTick; i++ {
			w.Commands().DestroyEntity(c.Entity())
		}
		w.Commands().CreateEntitiesIdentical(perTick, []kiln.ComponentValue{
			{TypeID: posID, Data: f64Row(0, 0)},
			{TypeID: churnID, Data: nil},
		}, 0)
		if err := w.Flush(); err != nil {
			return err
		}
		active := 0
		cc := q.Cursor()
		for cc.Next() {
			active++
		}
		if active != pool {
			return fmt.Errorf("tick %d: active count %d, want %d", tick, active, pool)
		}
	}
	return nil
}

func scenarioPingPong(n, ticks int) error {
	w := kiln.NewWorld()
	aID, err := w.RegisterComponent("A", kiln.TagSchema())
	if err != nil {
		return err
	}
	bID, err := w.RegisterComponent("B", kiln.TagSchema())
	if err != nil {
		return err
	}

	entities := w.SpawnBatchIdentical(map[uint16][]byte{aID: nil}, n)
	withB := w.NewQuery().SetCriteria([]uint16{aID, bID}, nil, nil, nil)
	withoutB := w.NewQuery().SetCriteria([]uint16{aID}, []uint16{bID}, nil, nil)
	count := func(q *kiln.Query) int {
		c, n := q.Cursor(), 0
		for c.Next() {
			n++
		}
		return n
	}

	for tick := 0; tick < ticks; tick++ {
		if tick%2 == 0 {
			for _, e := range entities {
				w.Commands().AddComponent(e, bID, nil, 0)
			}
		} else {
			for _, e := range entities {
				w.Commands().RemoveComponent(e, bID, 0)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		withBN, withoutBN := count(withB), count(withoutB)
		if tick%2 == 0 {
			if withBN != n || withoutBN != 0 {
				return fmt.Errorf("tick %d: {A,B}=%d {A}\\{B}=%d, want %d/0", tick, withBN, withoutBN, n)
			}
		} else {
			if withBN != 0 || withoutBN != n {
				return fmt.Errorf("tick %d: {A,B}=%d {A}\\{B}=%d, want 0/%d", tick, withBN, withoutBN, n)
			}
		}
	}
	return nil
}

func scenarioReactive() error {
	w := kiln.NewWorld()
	posID, err := w.RegisterComponent("Position", kiln.Schema{Fields: []kiln.FieldDecl{
		{Name: "x", Kind: kiln.KindPrimitive, Of: kiln.F64},
	}})
	if err != nil {
		return err
	}

	const n = 1000
	const touched = 100
	entities := w.SpawnBatchIdentical(map[uint16][]byte{posID: f64Row(0)}, n)
	watched := make(map[kiln.Entity]bool, touched)
	for _, e := range entities[:touched] {
		watched[e] = true
	}

	pos := kiln.Component[float64](w, posID)
	r := w.NewQuery().SetCriteria([]uint16{posID}, nil, nil, []uint16{posID})

	s := kiln.NewScheduler(w)
	s.WatchVisuals(r)
	s.AddLogicSystem("touch", func(f *kiln.Frame) error {
		for _, a := range r.Archetypes() {
			for chunkIdx := 0; chunkIdx < a.ChunkCount(); chunkIdx++ {
				n := a.ChunkSize(chunkIdx)
				px := pos.Slice(a, chunkIdx)
				for row := 0; row < n && row < len(px); row++ {
					e := a.EntityAt(chunkIdx, row)
					if watched[e] {
						px[row] += 1
						pos.MarkDirty(a, chunkIdx, row)
					}
				}
			}
		}
		return nil
	})

	var seen map[kiln.Entity]bool
	s.AddVisualSystem("check", func(f *kiln.Frame) error {
		seen = make(map[kiln.Entity]bool)
		rc := r.PrimedReactiveCursor()
		for rc.Next() {
			seen[rc.Entity()] = true
		}
		return nil
	})

	s.Step(time.Second / 60)

	if len(seen) != touched {
		return fmt.Errorf("reactive cursor saw %d changed rows, want %d", len(seen), touched)
	}
	for e := range watched {
		if !seen[e] {
			return fmt.Errorf("entity %d was touched but not seen as changed", e)
		}
	}
	return nil
}

func scenarioOrder() error {
	w := kiln.NewWorld()
	aID, err := w.RegisterComponent("A", kiln.TagSchema())
	if err != nil {
		return err
	}
	bID, err := w.RegisterComponent("B", kiln.Schema{Fields: []kiln.FieldDecl{
		{Name: "v", Kind: kiln.KindPrimitive, Of: kiln.F64},
	}})
	if err != nil {
		return err
	}

	e := w.Spawn(map[uint16][]byte{aID: nil})
	w.Commands().AddComponent(e, bID, f64Row(1), 0)
	w.Commands().SetComponentData(e, bID, f64Row(2), 0)
	w.Commands().RemoveComponent(e, bID, 0)
	w.Commands().AddComponent(e, bID, f64Row(3), 0)
	w.Commands().DestroyEntity(e)
	if err := w.Flush(); err != nil {
		return err
	}

	if w.IsActive(e) {
		return fmt.Errorf("entity %d still active after a frame that ends in destroy", e)
	}
	return nil
}

func scenarioIntern() error {
	w := kiln.NewWorld()
	in := w.Interner()
	h1 := in.Intern("Goblin Grunt")
	h2 := in.Intern("Goblin Grunt")
	if h1 != h2 {
		return fmt.Errorf("interning the same string twice returned different handles")
	}
	if !in.StartsWith(h1, "Goblin") {
		return fmt.Errorf("expected handle to start with %q", "Goblin")
	}
	if in.Equals(h1, "Goblin Grunts") {
		return fmt.Errorf("handle for %q should not equal %q", "Goblin Grunt", "Goblin Grunts")
	}
	return nil
}
