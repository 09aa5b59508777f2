package model

import (
	"reflect"
	"sort"
	"testing"

	"github.com/dd0wney/cluso-resilsim/pkg/block"
	"github.com/dd0wney/cluso-resilsim/pkg/flow"
)

// chainModel is a three-stage pipeline: a dynamic source feeding two static
// stages through shared flows. The source emits its "out" state; the relay
// copies line_1 onto line_2; the sink mirrors line_2 into its own state.
func chainModel(t *testing.T) *Model {
	t.Helper()
	m := New("chain", SimParams{Start: 0, End: 10, Dt: 1, Units: "hr"})

	if err := m.AddFlow(flow.MustNew("line_1", flow.Num("level", 0.0))); err != nil {
		t.Fatalf("AddFlow: %v", err)
	}
	if err := m.AddFlow(flow.MustNew("line_2", flow.Num("level", 0.0))); err != nil {
		t.Fatalf("AddFlow: %v", err)
	}

	source := block.MustNew(block.Spec{
		Name:  "source",
		Class: "Source",
		State: []block.Var{{Name: "out", Init: 1.0}, {Name: "steps", Init: 0.0}},
		Modes: []block.FaultMode{
			{Name: "dry", Rate: 1e-5, Units: "hr"},
		},
		Flows: []string{"line_1"},
		Dynamic: func(b *block.Block, t float64) {
			b.State().Inc("steps", 1)
			out := b.State().Num("out")
			if b.Mode().HasFault("dry") {
				out = 0
			}
			b.Flow("line_1").SetNumber("level", out)
		},
	})
	relay := block.MustNew(block.Spec{
		Name:  "relay",
		Class: "Relay",
		Modes: []block.FaultMode{
			{Name: "short", Rate: 2e-5, Units: "hr"},
		},
		Flows: []string{"line_1", "line_2"},
		Static: func(b *block.Block, t float64) {
			level := b.Flow("line_1").Number("level")
			if b.Mode().HasFault("short") {
				level = 0
			}
			b.Flow("line_2").SetNumber("level", level)
		},
	})
	sink := block.MustNew(block.Spec{
		Name:  "sink",
		Class: "Sink",
		State: []block.Var{{Name: "seen", Init: 0.0}},
		Modes: []block.FaultMode{
			{Name: "clogged", Rate: 1e-5, Units: "hr"},
		},
		Flows: []string{"line_2"},
		Static: func(b *block.Block, t float64) {
			b.State().SetNum("seen", b.Flow("line_2").Number("level"))
		},
	})

	for _, b := range []*block.Block{source, relay, sink} {
		if err := m.AddBlock(b); err != nil {
			t.Fatalf("AddBlock(%s): %v", b.Name(), err)
		}
	}
	if err := m.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func TestAddValidation(t *testing.T) {
	m := New("m", SimParams{Start: 0, End: 1, Dt: 1})
	fl := flow.MustNew("f", flow.Num("x", 0))
	if err := m.AddFlow(fl); err != nil {
		t.Fatalf("AddFlow: %v", err)
	}
	if err := m.AddFlow(flow.MustNew("f", flow.Num("x", 0))); err == nil {
		t.Error("duplicate flow succeeded, want error")
	}

	b := block.MustNew(block.Spec{Name: "b", Flows: []string{"f"}})
	if err := m.AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := m.AddBlock(block.MustNew(block.Spec{Name: "b", Flows: []string{"f"}})); err == nil {
		t.Error("duplicate block succeeded, want error")
	}
	if err := m.AddBlock(block.MustNew(block.Spec{Name: "c", Flows: []string{"ghost"}})); err == nil {
		t.Error("block with unknown flow succeeded, want error")
	}

	if err := m.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := m.Build(); err == nil {
		t.Error("second Build succeeded, want error")
	}
	if err := m.AddFlow(flow.MustNew("late", flow.Num("x", 0))); err == nil {
		t.Error("AddFlow after build succeeded, want error")
	}
	if err := m.AddBlock(block.MustNew(block.Spec{Name: "late", Flows: []string{"f"}})); err == nil {
		t.Error("AddBlock after build succeeded, want error")
	}
}

func TestBuildDisconnectedCheck(t *testing.T) {
	m := New("m", SimParams{Start: 0, End: 1, Dt: 1})
	if err := m.AddFlow(flow.MustNew("orphan", flow.Num("x", 0))); err != nil {
		t.Fatalf("AddFlow: %v", err)
	}
	if err := m.AddBlock(block.MustNew(block.Spec{Name: "island"})); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := m.Build(); err == nil {
		t.Error("disconnected graph built, want error")
	}

	m2 := New("m2", SimParams{Start: 0, End: 1, Dt: 1})
	m2.AddFlow(flow.MustNew("orphan", flow.Num("x", 0)))
	m2.AddBlock(block.MustNew(block.Spec{Name: "island"}))
	if err := m2.BuildWith(BuildOptions{AllowDisconnected: true}); err != nil {
		t.Errorf("BuildWith(AllowDisconnected): %v", err)
	}
}

func TestSetBlockOrder(t *testing.T) {
	m := New("m", SimParams{Start: 0, End: 1, Dt: 1})
	m.AddFlow(flow.MustNew("f", flow.Num("x", 0)))
	for _, name := range []string{"a", "b", "c"} {
		m.AddBlock(block.MustNew(block.Spec{Name: name, Flows: []string{"f"}}))
	}

	if err := m.SetBlockOrder("c", "a", "b"); err != nil {
		t.Fatalf("SetBlockOrder: %v", err)
	}
	if !reflect.DeepEqual(m.BlockNames(), []string{"c", "a", "b"}) {
		t.Errorf("BlockNames = %v", m.BlockNames())
	}

	if err := m.SetBlockOrder("a", "b"); err == nil {
		t.Error("short order succeeded, want error")
	}
	if err := m.SetBlockOrder("a", "b", "ghost"); err == nil {
		t.Error("order with unknown block succeeded, want error")
	}
	if err := m.SetBlockOrder("a", "a", "b"); err == nil {
		t.Error("order with repeat succeeded, want error")
	}
}

func TestSetBlockOrderAfterBuild(t *testing.T) {
	// The adjacency arena is derived from the order at Build time, so a
	// later reorder must be rejected rather than silently desynchronize the
	// execution plan from the arena.
	m := chainModel(t)
	if err := m.SetBlockOrder("sink", "relay", "source"); err == nil {
		t.Fatal("reorder after build succeeded, want error")
	}

	if err := m.Step(0, nil, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}
	v, _ := m.GetVar("blocks.sink.seen")
	if v.Num() != 1.0 {
		t.Errorf("sink.seen = %g, want 1", v.Num())
	}
}

func TestTopologyAccessors(t *testing.T) {
	m := chainModel(t)

	if !reflect.DeepEqual(m.BlockNames(), []string{"source", "relay", "sink"}) {
		t.Errorf("BlockNames = %v", m.BlockNames())
	}
	if !reflect.DeepEqual(m.FlowNames(), []string{"line_1", "line_2"}) {
		t.Errorf("FlowNames = %v", m.FlowNames())
	}
	if !reflect.DeepEqual(m.StaticBlockNames(), []string{"relay", "sink"}) {
		t.Errorf("StaticBlockNames = %v", m.StaticBlockNames())
	}
	if !reflect.DeepEqual(m.DynamicBlockNames(), []string{"source"}) {
		t.Errorf("DynamicBlockNames = %v", m.DynamicBlockNames())
	}
	if !reflect.DeepEqual(m.BlocksOfClass("Relay"), []string{"relay"}) {
		t.Errorf("BlocksOfClass = %v", m.BlocksOfClass("Relay"))
	}

	adj, err := m.AdjacentBlocks("relay")
	if err != nil {
		t.Fatalf("AdjacentBlocks: %v", err)
	}
	sort.Strings(adj)
	if !reflect.DeepEqual(adj, []string{"sink", "source"}) {
		t.Errorf("AdjacentBlocks(relay) = %v", adj)
	}
	if _, err := m.AdjacentBlocks("ghost"); err == nil {
		t.Error("unknown block succeeded, want error")
	}
}

func TestVars(t *testing.T) {
	m := chainModel(t)

	tests := []struct {
		path string
		want float64
	}{
		{"blocks.source.out", 1.0},
		{"flows.line_1.level", 0.0},
		{"source.out", 1.0}, // shorthand
		{"line_1.level", 0.0},
	}
	for _, tc := range tests {
		v, err := m.GetVar(tc.path)
		if err != nil {
			t.Errorf("GetVar(%s): %v", tc.path, err)
			continue
		}
		if v.Num() != tc.want {
			t.Errorf("GetVar(%s) = %g, want %g", tc.path, v.Num(), tc.want)
		}
	}

	if err := m.SetVar("blocks.source.out", flow.Number(0.5)); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	v, _ := m.GetVar("source.out")
	if v.Num() != 0.5 {
		t.Errorf("out = %g after SetVar, want 0.5", v.Num())
	}

	for _, path := range []string{"noattr", "blocks.ghost.x", "flows.ghost.x", "ghost.x", "blocks.source"} {
		if _, err := m.GetVar(path); err == nil {
			t.Errorf("GetVar(%s) succeeded, want error", path)
		}
	}
}

func TestSnapshotKeys(t *testing.T) {
	m := chainModel(t)
	snap := m.Snapshot()

	keys := make([]string, len(snap))
	for i, e := range snap {
		keys[i] = e.Key
	}
	want := []string{
		"flows.line_1.level",
		"flows.line_2.level",
		"blocks.source.out",
		"blocks.source.steps",
		"blocks.source.mode",
		"blocks.source.faults",
		"blocks.relay.mode",
		"blocks.relay.faults",
		"blocks.sink.seen",
		"blocks.sink.mode",
		"blocks.sink.faults",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("snapshot keys = %v, want %v", keys, want)
	}
}

func TestCopyIndependence(t *testing.T) {
	m := chainModel(t)
	if err := m.Step(0, map[string][]string{"relay": {"short"}}, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}

	cp, err := m.Copy()
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	// The copy carries the current state.
	rb, _ := cp.Block("relay")
	if !rb.Mode().HasFault("short") {
		t.Error("copy lost the active fault")
	}

	// Advancing the copy must not touch the original.
	if err := cp.Step(1, map[string][]string{"source": {"dry"}}, nil); err != nil {
		t.Fatalf("copy Step: %v", err)
	}
	sb, _ := m.Block("source")
	if sb.Mode().HasFault("dry") {
		t.Error("stepping the copy faulted the original")
	}
	if sb.State().Num("steps") != 1 {
		t.Errorf("original steps = %g, want 1", sb.State().Num("steps"))
	}

	// Copy before build is an error.
	unbuilt := New("u", SimParams{Start: 0, End: 1, Dt: 1})
	if _, err := unbuilt.Copy(); err == nil {
		t.Error("Copy before build succeeded, want error")
	}
}

func TestReset(t *testing.T) {
	m := chainModel(t)
	if err := m.Step(0, map[string][]string{"source": {"dry"}}, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}

	m.Reset()
	if len(m.Faults()) != 0 {
		t.Errorf("Faults after Reset = %v", m.Faults())
	}
	v, _ := m.GetVar("blocks.source.steps")
	if v.Num() != 0 {
		t.Errorf("steps after Reset = %g", v.Num())
	}
	fl, _ := m.Flow("line_1")
	if fl.Number("level") != 0 {
		t.Errorf("line_1 after Reset = %g", fl.Number("level"))
	}
}

func TestSeedPropagation(t *testing.T) {
	m := chainModel(t)
	m.UpdateSeed(99)
	if m.Seed() != 99 {
		t.Errorf("Seed = %d", m.Seed())
	}

	// Per-block seeds derive deterministically from the model seed.
	b, _ := m.Block("source")
	first := b.Rand().Seed()
	m.UpdateSeed(99)
	if b.Rand().Seed() != first {
		t.Error("block seed not reproducible for the same model seed")
	}
	m.UpdateSeed(100)
	if b.Rand().Seed() == first {
		t.Error("block seed unchanged for a new model seed")
	}

	m.SetStochastic(true)
	if !b.Rand().Stochastic {
		t.Error("stochastic flag did not propagate")
	}
}
