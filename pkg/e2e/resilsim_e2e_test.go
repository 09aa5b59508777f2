package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-resilsim/pkg/block"
	"github.com/dd0wney/cluso-resilsim/pkg/config"
	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/history"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/propagate"
	"github.com/dd0wney/cluso-resilsim/pkg/sample"
)

// newSupplyChain builds a three-stage source -> relay -> sink model. The
// source is dynamic (it integrates delivered volume), the relay and sink are
// static, so a relay fault must cascade to the sink within a single step.
func newSupplyChain(t *testing.T) *model.Model {
	t.Helper()

	mdl := model.New("supply_chain", model.SimParams{Start: 0, End: 10, Dt: 1, Units: "hr"})

	require.NoError(t, mdl.AddFlow(flow.MustNew("line_1", flow.Num("level", 1.0))))
	require.NoError(t, mdl.AddFlow(flow.MustNew("line_2", flow.Num("level", 1.0))))

	source := block.MustNew(block.Spec{
		Name:  "source",
		Class: "Source",
		State: []block.Var{{Name: "delivered", Init: 0.0}},
		Modes: []block.FaultMode{
			{Name: "dry", Rate: 1e-5, Units: "hr", RepairCost: 1000},
		},
		Flows: []string{"line_1"},
		Static: func(b *block.Block, t float64) {
			if b.Mode().HasFault("dry") {
				b.Flow("line_1").SetNumber("level", 0)
			} else {
				b.Flow("line_1").SetNumber("level", 1)
			}
		},
		Dynamic: func(b *block.Block, t float64) {
			b.State().Inc("delivered", b.Flow("line_1").Number("level"))
		},
	})

	relay := block.MustNew(block.Spec{
		Name:  "relay",
		Class: "Relay",
		Modes: []block.FaultMode{
			{Name: "short", Rate: 2e-5, Units: "hr", RepairCost: 500},
			{Name: "leak", Rate: 1e-5, Units: "hr", RepairCost: 200},
		},
		Flows: []string{"line_1", "line_2"},
		Static: func(b *block.Block, t float64) {
			in := b.Flow("line_1").Number("level")
			switch {
			case b.Mode().HasFault("short"):
				b.Flow("line_2").SetNumber("level", 0)
			case b.Mode().HasFault("leak"):
				b.Flow("line_2").SetNumber("level", 0.5*in)
			default:
				b.Flow("line_2").SetNumber("level", in)
			}
		},
	})

	sink := block.MustNew(block.Spec{
		Name:  "sink",
		Class: "Sink",
		State: []block.Var{{Name: "received", Init: 1.0}},
		Modes: []block.FaultMode{
			{Name: "clogged", Rate: 1e-5, Units: "hr", RepairCost: 300},
		},
		Flows: []string{"line_2"},
		Static: func(b *block.Block, t float64) {
			if b.Mode().HasFault("clogged") {
				b.State().SetNum("received", 0)
				return
			}
			b.State().SetNum("received", b.Flow("line_2").Number("level"))
		},
	})

	for _, b := range []*block.Block{source, relay, sink} {
		require.NoError(t, mdl.AddBlock(b))
	}
	require.NoError(t, mdl.Build())
	return mdl
}

// TestCompleteAnalysisWorkflow walks the full journey: build a model, run it
// nominally, sample its fault space, run the batch, and persist a history.
func TestCompleteAnalysisWorkflow(t *testing.T) {
	mdl := newSupplyChain(t)
	opts := propagate.Options{Workers: 2}

	t.Log("Step 1: nominal run...")
	nominal, err := propagate.Nominal(mdl, opts)
	require.NoError(t, err)
	require.False(t, nominal.Failed())
	assert.Equal(t, "nominal", nominal.Scenario.Name)
	assert.Equal(t, 11, nominal.History.Len(), "one snapshot per step from 0 to 10")
	assert.Empty(t, nominal.EndFaults, "nominal run must end fault-free")

	received, err := nominal.History.Last("blocks.sink.received")
	require.NoError(t, err)
	assert.Equal(t, 1.0, received.Num())

	t.Log("Step 2: single fault cascades through static blocks...")
	faulted, err := propagate.OneFault(mdl, "relay", "short", 5, opts)
	require.NoError(t, err)
	require.False(t, faulted.Failed())
	assert.Equal(t, "relay_short_t5", faulted.Scenario.Name)

	times, err := faulted.History.FaultyTimes(nominal.History, "blocks.sink.received")
	require.NoError(t, err)
	require.NotEmpty(t, times, "the short must reach the sink")
	assert.Equal(t, 5.0, times[0], "divergence starts at the injection step")
	atInjection, err := faulted.History.At("blocks.sink.received", 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, atInjection.Num())

	t.Log("Step 3: the original model is untouched by scenario runs...")
	mdl.Reset()
	assert.Empty(t, mdl.Faults())

	t.Log("Step 4: sample the whole fault space...")
	fd := sample.NewFaultDomain(mdl)
	require.NoError(t, fd.AddAll())
	assert.Equal(t, 4, fd.Len(), "dry, short, leak, clogged")

	fs := sample.NewFaultSample(fd, nil)
	require.NoError(t, fs.AddSingleFaultTimes([]float64{2, 7}, nil))
	assert.Len(t, fs.Scenarios(), 8)

	results, err := propagate.FaultSample(context.Background(), fs, opts)
	require.NoError(t, err)
	require.Len(t, results, 9, "nominal plus eight fault scenarios")
	for _, res := range results {
		assert.False(t, res.Failed(), "scenario %s", res.Scenario.Name)
		assert.NotEmpty(t, res.RunID)
	}
	assert.Greater(t, propagate.ExpectedCost(results), 0.0)

	t.Log("Step 5: persist and reload a history...")
	path := filepath.Join(t.TempDir(), "faulted.hist")
	require.NoError(t, faulted.History.Save(path))
	loaded, err := history.Load(path)
	require.NoError(t, err)
	assert.Equal(t, faulted.History.Times(), loaded.Times())
	reloaded, err := loaded.At("blocks.sink.received", 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reloaded.Num())
}

// TestConfigDrivenWorkflow drives the same model from a YAML run
// configuration instead of code.
func TestConfigDrivenWorkflow(t *testing.T) {
	raw := []byte(`
sim:
  start: 0
  end: 10
  dt: 1
  units: hr
  seed: 42
domains:
  - name: relay_faults
    select: block
    args: [relay]
samples:
  - name: midpoint
    domain: relay_faults
    method: times
    times: [5]
run:
  workers: 2
`)
	cfg, err := config.Parse(raw)
	require.NoError(t, err)

	mdl := newSupplyChain(t)
	sa, err := cfg.Apply(mdl)
	require.NoError(t, err)

	scens := sa.Scenarios()
	require.Len(t, scens, 2, "short and leak at t=5")

	results, err := propagate.Approach(context.Background(), sa, propagate.Options{Workers: cfg.Run.Workers})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := make(map[string]propagate.Result, len(results))
	for _, res := range results {
		require.False(t, res.Failed(), "scenario %s", res.Scenario.Name)
		byName[res.Scenario.Name] = res
	}
	short, ok := byName["relay_short_t5"]
	require.True(t, ok)
	v, err := short.History.Last("blocks.sink.received")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Num())

	leak, ok := byName["relay_leak_t5"]
	require.True(t, ok)
	v, err = leak.History.Last("blocks.sink.received")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.Num())
}

// TestConcurrentScenarioIsolation runs a batch wide enough to exercise the
// worker pool and checks that scenarios do not contaminate each other.
func TestConcurrentScenarioIsolation(t *testing.T) {
	mdl := newSupplyChain(t)

	fd := sample.NewFaultDomain(mdl)
	require.NoError(t, fd.AddAll())
	fs := sample.NewFaultSample(fd, nil)
	require.NoError(t, fs.AddSingleFaultTimes([]float64{1, 3, 5, 7, 9}, nil))

	results, err := propagate.FaultSample(context.Background(), fs, propagate.Options{Workers: 8})
	require.NoError(t, err)
	require.Len(t, results, 21)

	// Results come back in scenario order regardless of worker scheduling.
	scens := fs.Scenarios()
	assert.Equal(t, "nominal", results[0].Scenario.Name)
	for i, res := range results[1:] {
		assert.Equal(t, scens[i].Name, res.Scenario.Name)
	}

	// The nominal result must be untouched by the twenty fault runs.
	v, err := results[0].History.Last("blocks.sink.received")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Num())
	assert.Empty(t, results[0].EndFaults)

	// Every fault run ends with exactly its own injected fault.
	for i, res := range results[1:] {
		require.Len(t, res.EndFaults, 1, "scenario %s", res.Scenario.Name)
		want := scens[i].Faults[0]
		assert.Equal(t, []string{want.Mode}, res.EndFaults[want.Block])
	}
}
