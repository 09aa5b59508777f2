// Package phases partitions simulated time into named operational phases.
// Phase maps drive phase-weighted fault sampling: samples are drawn per
// phase, and a fault mode's opportunity of occurring can be conditioned on
// the phase it is injected in.
package phases

import (
	"math"

	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Phase is one named closed interval [Start, End] of simulated time.
type Phase struct {
	Name  string
	Start float64
	End   float64
}

// Duration returns the length of the phase interval.
func (p Phase) Duration() float64 { return p.End - p.Start }

// Contains reports whether t falls within the phase.
func (p Phase) Contains(t float64) bool { return t >= p.Start && t <= p.End }

// PhaseMap is an ordered set of non-overlapping phases covering the
// simulated duration, with optional per-phase opportunity weights used in
// rate calculations.
type PhaseMap struct {
	phases []Phase
	index  map[string]int

	// Opportunity maps phase name to the conditional probability that a
	// phase-conditioned fault occurs in that phase. Missing entries default
	// to the phase's share of the total duration.
	Opportunity map[string]float64
}

// New validates and builds a PhaseMap. Phases must be uniquely named, ordered
// by start time, and non-overlapping.
func New(phases ...Phase) (*PhaseMap, error) {
	if len(phases) == 0 {
		return nil, simerr.Config("phasemap", "", "no phases given")
	}
	pm := &PhaseMap{
		phases: make([]Phase, 0, len(phases)),
		index:  make(map[string]int, len(phases)),
	}
	prevEnd := math.Inf(-1)
	for _, p := range phases {
		if p.End < p.Start {
			return nil, simerr.Config("phase", p.Name, "end %g before start %g", p.End, p.Start)
		}
		if _, dup := pm.index[p.Name]; dup {
			return nil, simerr.Config("phase", p.Name, "duplicate phase name")
		}
		if p.Start < prevEnd {
			return nil, simerr.Config("phase", p.Name, "overlaps previous phase (starts at %g, previous ends at %g)", p.Start, prevEnd)
		}
		pm.index[p.Name] = len(pm.phases)
		pm.phases = append(pm.phases, p)
		prevEnd = p.End
	}
	return pm, nil
}

// MustNew is New for statically-known phase sets.
func MustNew(phases ...Phase) *PhaseMap {
	pm, err := New(phases...)
	if err != nil {
		panic(err)
	}
	return pm
}

// Phases returns the phases in declaration order.
func (pm *PhaseMap) Phases() []Phase {
	out := make([]Phase, len(pm.phases))
	copy(out, pm.phases)
	return out
}

// Phase looks up a phase by name.
func (pm *PhaseMap) Phase(name string) (Phase, error) {
	i, ok := pm.index[name]
	if !ok {
		return Phase{}, simerr.Config("phase", name, "not in phase map")
	}
	return pm.phases[i], nil
}

// FindPhase returns the phase containing t. Ties at shared boundaries
// resolve to the earlier phase.
func (pm *PhaseMap) FindPhase(t float64) (Phase, error) {
	for _, p := range pm.phases {
		if p.Contains(t) {
			return p, nil
		}
	}
	return Phase{}, simerr.Config("phasemap", "", "time %g outside all phases", t)
}

// TotalDuration returns the summed duration of all phases.
func (pm *PhaseMap) TotalDuration() float64 {
	var d float64
	for _, p := range pm.phases {
		d += p.Duration()
	}
	return d
}

// PhaseOpportunity returns the conditional probability mass assigned to the
// named phase: the explicit Opportunity entry if present, otherwise the
// phase's share of the total duration.
func (pm *PhaseMap) PhaseOpportunity(name string) (float64, error) {
	p, err := pm.Phase(name)
	if err != nil {
		return 0, err
	}
	if pm.Opportunity != nil {
		if opp, ok := pm.Opportunity[name]; ok {
			return opp, nil
		}
	}
	total := pm.TotalDuration()
	if total <= 0 {
		return 0, simerr.Config("phasemap", "", "zero total duration")
	}
	return p.Duration() / total, nil
}

// SampleTimes returns the candidate injection times for each requested phase
// at step dt. With no names given, every phase is included. Ordering follows
// the phase declaration order.
func (pm *PhaseMap) SampleTimes(dt float64, names ...string) ([]string, map[string][]float64, error) {
	if len(names) == 0 {
		for _, p := range pm.phases {
			names = append(names, p.Name)
		}
	}
	out := make(map[string][]float64, len(names))
	for _, name := range names {
		p, err := pm.Phase(name)
		if err != nil {
			return nil, nil, err
		}
		out[name] = IntervalTimes(p.Start, p.End, dt)
	}
	return names, out, nil
}

// SamplesInPhases counts how many of the given times land in each phase.
// Used to derive implicit 1/n weights so each phase carries unit probability
// mass regardless of how many discrete times were chosen inside it.
func (pm *PhaseMap) SamplesInPhases(times ...float64) map[string]int {
	counts := make(map[string]int, len(pm.phases))
	for _, t := range times {
		if p, err := pm.FindPhase(t); err == nil {
			counts[p.Name]++
		}
	}
	return counts
}

// IntervalTimes enumerates the times in [start, end] at step dt, always
// including start. The end point is included when it lands on the grid.
func IntervalTimes(start, end, dt float64) []float64 {
	if dt <= 0 || end < start {
		return nil
	}
	n := int(math.Floor((end-start)/dt+1e-9)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start+float64(i)*dt)
	}
	return out
}
