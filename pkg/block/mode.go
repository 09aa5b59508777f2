package block

import (
	"strings"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// FaultMode describes one named failure mode of a block. The base rate is an
// expected event count per unit of exposure time given by Units. "Nominal"
// (no active fault) is implicit and never stored as a mode.
type FaultMode struct {
	Name       string
	Rate       float64 // base failure rate per Units of exposure, must be >= 0
	Units      string  // exposure unit ("hr" when empty)
	RepairCost float64

	// Opportunity optionally conditions the mode on operational phases:
	// phase name -> probability the fault occurs in that phase. Phases
	// without an entry fall back to their share of the total duration.
	Opportunity map[string]float64
}

// Exposure-time unit factors, in hours.
var unitHours = map[string]float64{
	"sec": 1.0 / 3600.0,
	"min": 1.0 / 60.0,
	"hr":  1.0,
	"day": 24.0,
}

func unitFactor(from, to string) (float64, error) {
	if from == "" {
		from = "hr"
	}
	if to == "" {
		to = "hr"
	}
	fh, ok := unitHours[from]
	if !ok {
		return 0, simerr.Config("units", from, "unknown time unit")
	}
	th, ok := unitHours[to]
	if !ok {
		return 0, simerr.Config("units", to, "unknown time unit")
	}
	return fh / th, nil
}

// CalcRate converts the base rate into the expected rate of a scenario that
// injects this mode at time t. The result is a pure function of the base
// rate, the phase weighting, the total simulated duration and the sample
// weight, so identical inputs always produce identical rates.
func (fm *FaultMode) CalcRate(t float64, pm *phases.PhaseMap, simDuration float64, simUnits string, weight float64) (float64, error) {
	factor, err := unitFactor(simUnits, fm.Units)
	if err != nil {
		return 0, err
	}
	rate := fm.Rate * simDuration * factor
	if pm != nil {
		phase, err := pm.FindPhase(t)
		if err != nil {
			return 0, err
		}
		opp, ok := fm.Opportunity[phase.Name]
		if !ok {
			opp, err = pm.PhaseOpportunity(phase.Name)
			if err != nil {
				return 0, err
			}
		}
		rate *= opp
	}
	return rate * weight, nil
}

// Mode is a block's fault-mode registry plus its currently-active fault set.
// Multiple modes may be active at once; activation order is preserved so that
// the mutable tuple is deterministic.
type Mode struct {
	owner string

	modes map[string]*FaultMode
	order []string

	active    []string
	activeSet map[string]struct{}

	operModes   []string
	oper        string
	initialOper string
}

// NewMode builds a mode container for the named owner block. operModes, when
// non-empty, restricts the operational mode label to the listed values.
func NewMode(owner string, initialOper string, operModes ...string) *Mode {
	return &Mode{
		owner:       owner,
		modes:       make(map[string]*FaultMode),
		activeSet:   make(map[string]struct{}),
		operModes:   operModes,
		oper:        initialOper,
		initialOper: initialOper,
	}
}

// Define registers a fault mode. Rates must be non-negative and names unique
// within the block.
func (m *Mode) Define(fm FaultMode) error {
	if fm.Name == "" {
		return simerr.Config("mode", "", "fault mode for block %q has no name", m.owner)
	}
	if fm.Rate < 0 {
		return simerr.Config("mode", fm.Name, "negative rate %g", fm.Rate)
	}
	if _, dup := m.modes[fm.Name]; dup {
		return simerr.Config("mode", fm.Name, "already defined for block %q", m.owner)
	}
	cp := fm
	m.modes[fm.Name] = &cp
	m.order = append(m.order, fm.Name)
	return nil
}

// Get looks up a defined fault mode by name.
func (m *Mode) Get(name string) (*FaultMode, error) {
	fm, ok := m.modes[name]
	if !ok {
		return nil, simerr.Config("mode", name, "not defined for block %q", m.owner)
	}
	return fm, nil
}

// FaultModes returns the defined mode names in definition order.
func (m *Mode) FaultModes() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Activate marks the named modes as active. Requesting a mode the block does
// not define is a fatal configuration error, never silently ignored.
func (m *Mode) Activate(names ...string) error {
	for _, name := range names {
		if _, ok := m.modes[name]; !ok {
			return simerr.Config("mode", name, "cannot inject: not defined for block %q", m.owner)
		}
		if _, already := m.activeSet[name]; already {
			continue
		}
		m.activeSet[name] = struct{}{}
		m.active = append(m.active, name)
	}
	return nil
}

// HasFault reports whether any of the given modes is currently active.
func (m *Mode) HasFault(names ...string) bool {
	for _, name := range names {
		if _, ok := m.activeSet[name]; ok {
			return true
		}
	}
	return false
}

// Faults returns the active fault names in activation order.
func (m *Mode) Faults() []string {
	out := make([]string, len(m.active))
	copy(out, m.active)
	return out
}

// Oper returns the current operational mode label.
func (m *Mode) Oper() string { return m.oper }

// SetOper assigns the operational mode label, validating it against the
// declared set when one was given.
func (m *Mode) SetOper(name string) error {
	if len(m.operModes) > 0 {
		found := false
		for _, om := range m.operModes {
			if om == name {
				found = true
				break
			}
		}
		if !found {
			return simerr.Config("mode", name, "not an operational mode of block %q", m.owner)
		}
	}
	m.oper = name
	return nil
}

// InMode reports whether the operational mode is any of the given labels.
func (m *Mode) InMode(names ...string) bool {
	for _, name := range names {
		if m.oper == name {
			return true
		}
	}
	return false
}

// Mutables returns the comparable value tuple for change detection: the
// operational mode plus the active fault set.
func (m *Mode) Mutables() []flow.Value {
	return []flow.Value{
		flow.Label(m.oper),
		flow.Label(strings.Join(m.active, "|")),
	}
}

// Reset clears all active faults and restores the initial operational mode.
func (m *Mode) Reset() {
	m.active = m.active[:0]
	m.activeSet = make(map[string]struct{})
	m.oper = m.initialOper
}

// Copy returns an independent mode container with the same registry and
// active set.
func (m *Mode) Copy() *Mode {
	cp := &Mode{
		owner:       m.owner,
		modes:       m.modes, // registry is immutable after build
		order:       m.order,
		active:      make([]string, len(m.active)),
		activeSet:   make(map[string]struct{}, len(m.activeSet)),
		operModes:   m.operModes,
		oper:        m.oper,
		initialOper: m.initialOper,
	}
	copy(cp.active, m.active)
	for name := range m.activeSet {
		cp.activeSet[name] = struct{}{}
	}
	return cp
}
