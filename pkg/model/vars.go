package model

import (
	"sort"
	"strings"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/history"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Variable paths address state anywhere in the model:
//
//	blocks.<block>.<var>   block state variable
//	flows.<flow>.<field>   flow field
//	<name>.<rest>          shorthand; blocks shadow flows on a name clash
//
// Paths resolve to an error, never to a silent no-op, so a typo in a
// disturbance or a tracked variable surfaces immediately.

func (m *Model) resolve(path string) (kind, name, rest string, err error) {
	head, rest, ok := strings.Cut(path, ".")
	if !ok {
		return "", "", "", simerr.Config("model", m.name, "variable path %q has no attribute", path)
	}
	switch head {
	case "blocks":
		name, rest, ok = strings.Cut(rest, ".")
		if !ok {
			return "", "", "", simerr.Config("model", m.name, "variable path %q has no attribute", path)
		}
		if _, exists := m.blocks[name]; !exists {
			return "", "", "", simerr.Config("block", name, "not in model %q", m.name)
		}
		return "blocks", name, rest, nil
	case "flows":
		name, rest, ok = strings.Cut(rest, ".")
		if !ok {
			return "", "", "", simerr.Config("model", m.name, "variable path %q has no attribute", path)
		}
		if _, exists := m.flows[name]; !exists {
			return "", "", "", simerr.Config("flow", name, "not in model %q", m.name)
		}
		return "flows", name, rest, nil
	}
	if _, exists := m.blocks[head]; exists {
		return "blocks", head, rest, nil
	}
	if _, exists := m.flows[head]; exists {
		return "flows", head, rest, nil
	}
	return "", "", "", simerr.Config("model", m.name, "variable path %q matches no block or flow", path)
}

// SetVar assigns one addressed variable.
func (m *Model) SetVar(path string, v flow.Value) error {
	kind, name, rest, err := m.resolve(path)
	if err != nil {
		return err
	}
	if kind == "blocks" {
		return m.blocks[name].State().Set(rest, v.Num())
	}
	return m.flows[name].Set(rest, v)
}

// GetVar reads one addressed variable.
func (m *Model) GetVar(path string) (flow.Value, error) {
	kind, name, rest, err := m.resolve(path)
	if err != nil {
		return flow.Value{}, err
	}
	if kind == "blocks" {
		n, err := m.blocks[name].State().Get(rest)
		if err != nil {
			return flow.Value{}, err
		}
		return flow.Number(n), nil
	}
	return m.flows[name].Get(rest)
}

// ApplyDisturbances assigns the given path -> value overrides in
// deterministic (sorted-path) order. An unresolvable path fails the step.
func (m *Model) ApplyDisturbances(disturbances map[string]float64) error {
	if len(disturbances) == 0 {
		return nil
	}
	paths := make([]string, 0, len(disturbances))
	for p := range disturbances {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := m.SetVar(p, flow.Number(disturbances[p])); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot captures every flow field, block state variable, operational mode
// and active fault set under dotted history keys, in deterministic order.
func (m *Model) Snapshot() []history.Entry {
	var out []history.Entry
	for _, fname := range m.flowOrder {
		fl := m.flows[fname]
		for _, fv := range fl.Status() {
			out = append(out, history.Entry{Key: "flows." + fname + "." + fv.Name, Value: fv.Value})
		}
	}
	for _, bname := range m.blockOrder {
		b := m.blocks[bname]
		for _, fv := range b.State().Status() {
			out = append(out, history.Entry{Key: "blocks." + bname + "." + fv.Name, Value: fv.Value})
		}
		out = append(out, history.Entry{Key: "blocks." + bname + ".mode", Value: flow.Label(b.Mode().Oper())})
		out = append(out, history.Entry{Key: "blocks." + bname + ".faults", Value: flow.Label(strings.Join(b.Mode().Faults(), "|"))})
	}
	return out
}

// Faults returns the active fault modes of every block, keyed by block name.
// Blocks with no active faults are omitted.
func (m *Model) Faults() map[string][]string {
	out := make(map[string][]string)
	for _, bname := range m.blockOrder {
		if faults := m.blocks[bname].Mode().Faults(); len(faults) > 0 {
			out[bname] = faults
		}
	}
	return out
}

// Classification is the end-state assessment of one simulated scenario.
type Classification struct {
	Rate         float64
	Cost         float64
	ExpectedCost float64

	// Extra carries model-specific metrics (e.g. unsafe flight time).
	Extra map[string]float64
}

// Classifier maps a finished run to a classification. It sees the model in
// its end state plus the run's history; rate is the scenario rate computed
// by the sampler.
type Classifier func(m *Model, rate float64, hist *history.History) Classification

// SetClassifier installs the model's classification hook.
func (m *Model) SetClassifier(c Classifier) { m.classifier = c }

// Classify assesses the model's end state after a run. Without an installed
// classifier the default applies: unit cost, expected cost equal to the
// scenario rate.
func (m *Model) Classify(rate float64, hist *history.History) Classification {
	if m.classifier != nil {
		return m.classifier(m, rate, hist)
	}
	return Classification{Rate: rate, Cost: 1, ExpectedCost: rate}
}

// ScenRate computes the expected rate of injecting the named fault mode at
// time t, folding in the phase weighting, simulated duration, rate units and
// the sample weight. A nil pm falls back to the model's own phase map.
func (m *Model) ScenRate(blockName, modeName string, t float64, pm *phases.PhaseMap, weight float64) (float64, error) {
	b, err := m.Block(blockName)
	if err != nil {
		return 0, err
	}
	fm, err := b.Mode().Get(modeName)
	if err != nil {
		return 0, err
	}
	if pm == nil {
		pm = m.sp.Phases
	}
	return fm.CalcRate(t, pm, m.sp.Duration(), m.sp.Units, weight)
}
