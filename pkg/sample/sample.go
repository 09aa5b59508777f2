package sample

import (
	"sort"

	"github.com/dd0wney/cluso-resilsim/pkg/metrics"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/scenario"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// TimeMethod names a time-sampling policy.
type TimeMethod string

const (
	MethodEven TimeMethod = "even"
	MethodQuad TimeMethod = "quad"
)

// PhasePolicy configures how injection times are drawn within one phase.
type PhasePolicy struct {
	Method TimeMethod

	// N is the number of points for MethodEven.
	N int

	// Nodes and Weights define the quadrature for MethodQuad.
	Nodes   []float64
	Weights []float64
}

// EvenPolicy samples n evenly-spaced interior points.
func EvenPolicy(n int) PhasePolicy {
	return PhasePolicy{Method: MethodEven, N: n}
}

// QuadPolicy samples at the given quadrature nodes and weights.
func QuadPolicy(nodes, weights []float64) PhasePolicy {
	return PhasePolicy{Method: MethodQuad, Nodes: nodes, Weights: weights}
}

// FaultSample turns a FaultDomain plus a timing policy into concrete,
// weighted scenarios. The optional phase map scopes candidate times to
// operational phases and supplies the implicit per-phase weights.
type FaultSample struct {
	domain  *FaultDomain
	pm      *phases.PhaseMap
	metrics *metrics.Registry

	scenarios []scenario.Scenario
	times     map[float64]bool
}

// NewFaultSample creates an empty sample over the given domain. pm may be
// nil, in which case the whole simulated duration is one implicit phase.
func NewFaultSample(domain *FaultDomain, pm *phases.PhaseMap) *FaultSample {
	return &FaultSample{domain: domain, pm: pm, times: make(map[float64]bool)}
}

// Domain returns the fault domain the sample draws from.
func (fs *FaultSample) Domain() *FaultDomain { return fs.domain }

// SetMetrics installs a registry that counts generated scenarios and
// distinct injection times. nil disables recording.
func (fs *FaultSample) SetMetrics(reg *metrics.Registry) { fs.metrics = reg }

// noteScenario updates the distinct-time set and the generation counters for
// one appended scenario.
func (fs *FaultSample) noteScenario(kind string, t float64) {
	if fs.metrics != nil {
		fs.metrics.RecordGenerated(kind, 1)
		if !fs.times[t] {
			fs.metrics.RecordSampleTime()
		}
	}
	fs.times[t] = true
}

// Scenarios returns the generated scenarios in generation order.
func (fs *FaultSample) Scenarios() []scenario.Scenario {
	out := make([]scenario.Scenario, len(fs.scenarios))
	copy(out, fs.scenarios)
	return out
}

// Times returns the distinct injection times, ascending.
func (fs *FaultSample) Times() []float64 {
	out := make([]float64, 0, len(fs.times))
	for t := range fs.times {
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}

// AddSingleFaultScenario generates one scenario injecting the given fault at
// time t with the given sample weight.
func (fs *FaultSample) AddSingleFaultScenario(f scenario.Fault, t, weight float64) error {
	rate, err := fs.domain.mdl.ScenRate(f.Block, f.Mode, t, fs.pm, weight)
	if err != nil {
		return err
	}
	fs.scenarios = append(fs.scenarios, scenario.SingleFault(f.Block, f.Mode, t, rate))
	fs.noteScenario("single", t)
	return nil
}

// weightAt resolves the sample weight for times[i]: the explicit weight when
// given, otherwise 1/n over the samples landing in the same phase, otherwise
// 1.
func (fs *FaultSample) weightAt(times, weights []float64, i int) (float64, error) {
	if len(weights) > 0 {
		if len(weights) != len(times) {
			return 0, simerr.Config("sample", "times", "%d times but %d weights", len(times), len(weights))
		}
		return weights[i], nil
	}
	if fs.pm != nil {
		p, err := fs.pm.FindPhase(times[i])
		if err != nil {
			return 0, err
		}
		counts := fs.pm.SamplesInPhases(times...)
		return 1 / float64(counts[p.Name]), nil
	}
	return 1.0, nil
}

// AddSingleFaultTimes generates a scenario for every domain fault at every
// given time.
func (fs *FaultSample) AddSingleFaultTimes(times []float64, weights []float64) error {
	for _, f := range fs.domain.Faults() {
		for i, t := range times {
			weight, err := fs.weightAt(times, weights, i)
			if err != nil {
				return err
			}
			if err := fs.AddSingleFaultScenario(f, t, weight); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddSingleFaultPhases samples injection times per phase with the default
// policy (or a per-phase override) and generates scenarios for every domain
// fault at the sampled times. With no phase names given, every phase of the
// phase map is sampled; without a phase map, the model's whole simulated
// duration forms a single phase.
func (fs *FaultSample) AddSingleFaultPhases(deflt PhasePolicy, overrides map[string]PhasePolicy, phaseNames ...string) error {
	sp := fs.domain.mdl.Params()

	order, phaseTimes, err := fs.candidateTimes(phaseNames)
	if err != nil {
		return err
	}
	for _, phase := range order {
		policy := deflt
		if overrides != nil {
			if p, ok := overrides[phase]; ok {
				policy = p
			}
		}
		var sampleTimes, weights []float64
		switch policy.Method {
		case MethodEven:
			sampleTimes, weights, err = SampleTimesEven(phaseTimes[phase], policy.N, sp.Dt)
		case MethodQuad:
			sampleTimes, weights, err = SampleTimesQuad(phaseTimes[phase], policy.Nodes, policy.Weights)
		default:
			return simerr.Config("sample", string(policy.Method), "unknown time method (want even or quad)")
		}
		if err != nil {
			return err
		}
		if err := fs.AddSingleFaultTimes(sampleTimes, weights); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FaultSample) candidateTimes(phaseNames []string) ([]string, map[string][]float64, error) {
	sp := fs.domain.mdl.Params()
	if fs.pm != nil {
		return fs.pm.SampleTimes(sp.Dt, phaseNames...)
	}
	if len(phaseNames) > 0 {
		return nil, nil, simerr.Config("sample", "phases", "phase names given but sample has no phase map")
	}
	return []string{"op"}, map[string][]float64{"op": sp.Times()}, nil
}

// AddJointFaultScenario generates one scenario injecting all the given
// faults simultaneously at time t. Individual rates combine under the given
// policy; pcond is the conditional probability consulted by RateBase, which
// scales the first fault's own rate.
func (fs *FaultSample) AddJointFaultScenario(t, weight float64, policy scenario.RatePolicy, pcond float64, faults ...scenario.Fault) error {
	if len(faults) < 2 {
		return simerr.Config("sample", "joint", "need at least two faults, got %d", len(faults))
	}
	rates := make([]float64, len(faults))
	for i, f := range faults {
		r, err := fs.domain.mdl.ScenRate(f.Block, f.Mode, t, fs.pm, 1.0)
		if err != nil {
			return err
		}
		rates[i] = r
	}
	rate, err := scenario.CombineRates(policy, rates, rates[0], pcond)
	if err != nil {
		return err
	}
	fs.scenarios = append(fs.scenarios, scenario.JointFault(t, rate*weight, faults...))
	fs.noteScenario("joint", t)
	return nil
}

// AddJointFaultTimes generates a joint scenario for the given fault set at
// every given time.
func (fs *FaultSample) AddJointFaultTimes(times, weights []float64, policy scenario.RatePolicy, pcond float64, faults ...scenario.Fault) error {
	for i, t := range times {
		weight, err := fs.weightAt(times, weights, i)
		if err != nil {
			return err
		}
		if err := fs.AddJointFaultScenario(t, weight, policy, pcond, faults...); err != nil {
			return err
		}
	}
	return nil
}

// AddFaultCombinations generates joint scenarios for every k-combination of
// the domain's faults at every given time.
func (fs *FaultSample) AddFaultCombinations(k int, times, weights []float64, policy scenario.RatePolicy, pcond float64) error {
	combos, err := fs.domain.combinations(k)
	if err != nil {
		return err
	}
	for _, combo := range combos {
		if err := fs.AddJointFaultTimes(times, weights, policy, pcond, combo...); err != nil {
			return err
		}
	}
	return nil
}
