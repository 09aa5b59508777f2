package model

import (
	"sort"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// passCeiling bounds the static fixed-point iteration within one step.
// Hitting it means the model oscillates and the step result would be
// meaningless, so the step fails instead of truncating silently.
const passCeiling = 1000

// Step advances the whole model from time t in three phases:
//
//  1. disturbances override named state variables,
//  2. every dynamic block runs exactly once in execution order, with the
//     step's faults injected into their target blocks beforehand,
//  3. the static blocks re-run until no block state and no flow changes,
//     bounded by passCeiling.
//
// faults maps block name to the fault modes to inject this step;
// disturbances maps dotted variable paths to override values. Both may be
// nil. Injecting into an unknown block or an undefined mode fails the step.
func (m *Model) Step(t float64, faults map[string][]string, disturbances map[string]float64) error {
	if !m.built {
		return simerr.Config("model", m.name, "step before build")
	}
	for name := range faults {
		if _, ok := m.blocks[name]; !ok {
			return simerr.Config("block", name, "cannot inject faults: not in model %q", m.name)
		}
	}

	if err := m.ApplyDisturbances(disturbances); err != nil {
		return err
	}

	// Dynamic pass. Blocks targeted by injection but without a dynamic
	// behavior still get their faults activated and their guard evaluated,
	// after the dynamic pipeline, in name order.
	ran := make(map[string]bool, len(m.dynamicBlocks))
	for _, bi := range m.dynamicBlocks {
		name := m.blockOrder[bi]
		if err := m.blocks[name].RunDynamic(t, faults[name]); err != nil {
			return err
		}
		ran[name] = true
	}
	var rest []string
	for name := range faults {
		if !ran[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		if err := m.blocks[name].RunDynamic(t, faults[name]); err != nil {
			return err
		}
	}

	return m.propagateStatic(t, faults)
}

// propagateStatic runs the static blocks to a model-wide fixed point.
//
// Every static block is active on the first pass. A block stays active for
// the next pass if its own mutable state changed; a change on a flow
// activates every static block connected to that flow. Flow change detection
// compares against a cache that persists across steps, so a flow modified
// during the dynamic pass correctly wakes its static neighbors on pass one.
func (m *Model) propagateStatic(t float64, faults map[string][]string) error {
	if m.flowStates == nil {
		m.flowStates = make([][]flow.Value, len(m.flowOrder))
		for _, fi := range m.staticFlows {
			m.flowStates[fi] = m.flows[m.flowOrder[fi]].Mutables()
		}
	}

	active := make([]bool, len(m.blockOrder))
	next := make([]bool, len(m.blockOrder))
	nActive := len(m.staticBlocks)
	for _, bi := range m.staticBlocks {
		active[bi] = true
	}

	flowChecked := make([]bool, len(m.flowOrder))
	m.lastPasses = 0
	for pass := 1; nActive > 0; pass++ {
		if pass > passCeiling {
			return m.convergenceFailure(t, active, faults)
		}
		m.lastPasses = pass

		for _, fi := range m.staticFlows {
			flowChecked[fi] = false
		}
		for _, bi := range m.staticBlocks {
			if !active[bi] {
				continue
			}
			b := m.blocks[m.blockOrder[bi]]
			old := b.Mutables()
			b.RunStatic(t)
			if !flow.EqualMutables(old, b.Mutables()) {
				next[bi] = true
			}
			for _, fi := range m.blockFlows[bi] {
				if flowChecked[fi] || m.flowStates[fi] == nil {
					continue
				}
				if !flow.EqualMutables(m.flowStates[fi], m.flows[m.flowOrder[fi]].Mutables()) {
					for _, nbi := range m.flowBlocks[fi] {
						if m.isStaticBlock[nbi] {
							next[nbi] = true
						}
					}
					flowChecked[fi] = true
				}
			}
		}
		// Flows touched only by inactive or dynamic blocks still need a
		// change check.
		for _, fi := range m.staticFlows {
			if flowChecked[fi] {
				continue
			}
			if !flow.EqualMutables(m.flowStates[fi], m.flows[m.flowOrder[fi]].Mutables()) {
				for _, nbi := range m.flowBlocks[fi] {
					if m.isStaticBlock[nbi] {
						next[nbi] = true
					}
				}
			}
		}

		for _, fi := range m.staticFlows {
			m.flowStates[fi] = m.flows[m.flowOrder[fi]].Mutables()
		}

		active, next = next, active
		nActive = 0
		for bi := range next {
			next[bi] = false
		}
		for _, on := range active {
			if on {
				nActive++
			}
		}
	}
	return nil
}

func (m *Model) convergenceFailure(t float64, active []bool, faults map[string][]string) error {
	cerr := &simerr.ConvergenceError{
		Time:   t,
		Passes: passCeiling,
		Faults: make(map[string][]string, len(faults)),
	}
	for bi, on := range active {
		if on {
			cerr.Active = append(cerr.Active, m.blockOrder[bi])
		}
	}
	for name, modes := range faults {
		cerr.Faults[name] = append([]string(nil), modes...)
	}
	return cerr
}
