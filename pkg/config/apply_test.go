package config

import (
	"testing"

	"github.com/dd0wney/cluso-resilsim/pkg/block"
	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New("line", model.SimParams{Start: 0, End: 10, Dt: 1, Units: "hr"})

	if err := m.AddFlow(flow.MustNew("line_1", flow.Num("level", 1.0))); err != nil {
		t.Fatalf("AddFlow: %v", err)
	}
	if err := m.AddFlow(flow.MustNew("line_2", flow.Num("level", 1.0))); err != nil {
		t.Fatalf("AddFlow: %v", err)
	}

	source := block.MustNew(block.Spec{
		Name:  "source",
		Modes: []block.FaultMode{{Name: "dry", Rate: 1e-5, Units: "hr"}},
		Flows: []string{"line_1"},
		Static: func(b *block.Block, t float64) {
			level := 1.0
			if b.Mode().HasFault("dry") {
				level = 0
			}
			b.Flow("line_1").SetNumber("level", level)
		},
	})
	relay := block.MustNew(block.Spec{
		Name: "relay",
		Modes: []block.FaultMode{
			{Name: "short", Rate: 2e-5, Units: "hr"},
			{Name: "leak", Rate: 1e-5, Units: "hr"},
		},
		Flows: []string{"line_1", "line_2"},
		Static: func(b *block.Block, t float64) {
			level := b.Flow("line_1").Number("level")
			switch {
			case b.Mode().HasFault("short"):
				level = 0
			case b.Mode().HasFault("leak"):
				level *= 0.5
			}
			b.Flow("line_2").SetNumber("level", level)
		},
	})

	for _, b := range []*block.Block{source, relay} {
		if err := m.AddBlock(b); err != nil {
			t.Fatalf("AddBlock(%s): %v", b.Name(), err)
		}
	}
	if err := m.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func TestApply(t *testing.T) {
	cfg, err := Parse([]byte(`
sim: {start: 0, end: 10, dt: 1, units: hr, seed: 42}
domains:
  - {name: relay_faults, select: block, args: [relay]}
samples:
  - {name: midpoint, domain: relay_faults, method: times, times: [5]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	m := testModel(t)
	sa, err := cfg.Apply(m)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.Seed() != 42 {
		t.Errorf("seed = %d, want 42", m.Seed())
	}

	scens := sa.Scenarios()
	if len(scens) != 2 {
		t.Fatalf("got %d scenarios, want 2", len(scens))
	}
	names := map[string]bool{}
	for _, s := range scens {
		names[s.Name] = true
		if s.Rate <= 0 {
			t.Errorf("scenario %q has rate %g", s.Name, s.Rate)
		}
	}
	for _, want := range []string{"relay_short_t5", "relay_leak_t5"} {
		if !names[want] {
			t.Errorf("missing scenario %q in %v", want, names)
		}
	}
}

func TestApplyExplicitFaults(t *testing.T) {
	cfg, err := Parse([]byte(`
sim: {start: 0, end: 10, dt: 1, units: hr}
domains:
  - name: chosen
    select: faults
    faults:
      - {block: source, mode: dry}
      - {block: relay, mode: leak}
samples:
  - {name: s, domain: chosen, method: times, times: [2, 7]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sa, err := cfg.Apply(testModel(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := len(sa.Scenarios()); got != 4 {
		t.Errorf("got %d scenarios, want 4", got)
	}
}

func TestApplyPhasedSample(t *testing.T) {
	cfg, err := Parse([]byte(`
sim: {start: 0, end: 10, dt: 1, units: hr}
phase_maps:
  - name: op
    phases:
      - {name: startup, start: 0, end: 2}
      - {name: cruise, start: 3, end: 10}
domains:
  - {name: everything, select: all}
samples:
  - {name: phased, domain: everything, phase_map: op, method: even, n: 1}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sa, err := cfg.Apply(testModel(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// 3 fault modes, one sample time per phase.
	if got := len(sa.Scenarios()); got != 6 {
		t.Errorf("got %d scenarios, want 6", got)
	}
	pm, err := sa.PhaseMap("op")
	if err != nil {
		t.Fatalf("PhaseMap: %v", err)
	}
	if len(pm.Phases()) != 2 {
		t.Errorf("phases = %v", pm.Phases())
	}
}

func TestApplyErrors(t *testing.T) {
	// Config-level validation passes; the failure surfaces against the model.
	badFault, err := Parse([]byte(`
sim: {start: 0, end: 10, dt: 1}
domains:
  - name: chosen
    select: faults
    faults:
      - {block: relay, mode: meltdown}
samples:
  - {name: s, domain: chosen, method: times, times: [5]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := badFault.Apply(testModel(t)); err == nil {
		t.Error("unknown fault mode succeeded, want error")
	}

	jointEven, err := Parse([]byte(`
sim: {start: 0, end: 10, dt: 1}
domains:
  - {name: d, select: block, args: [relay]}
samples:
  - {name: s, domain: d, method: even, n: 2, joint: {k: 2, policy: ind}}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := jointEven.Apply(testModel(t)); err == nil {
		t.Error("joint sampling with method even succeeded, want error")
	}
}

func TestApplyJointSample(t *testing.T) {
	cfg, err := Parse([]byte(`
sim: {start: 0, end: 10, dt: 1, units: hr}
domains:
  - {name: d, select: block, args: [relay]}
samples:
  - {name: pairs, domain: d, method: times, times: [5], joint: {k: 2, policy: ind}}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sa, err := cfg.Apply(testModel(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	scens := sa.Scenarios()
	// C(2,2) combinations at one time.
	if len(scens) != 1 {
		t.Fatalf("got %d scenarios, want 1", len(scens))
	}
	if scens[0].Name != "relay_short_relay_leak_t5" {
		t.Errorf("scenario name = %q", scens[0].Name)
	}
	want := (2e-5 * 11) * (1e-5 * 11)
	if scens[0].Rate != want {
		t.Errorf("rate = %g, want %g", scens[0].Rate, want)
	}
}
