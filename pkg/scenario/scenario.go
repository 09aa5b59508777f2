// Package scenario defines the immutable run plans produced by sampling: a
// scenario names what gets injected into a model, when, and at what assessed
// rate. Scenarios carry no model references, so they are safe to distribute
// across workers.
package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Fault identifies one injectable (block, mode) pair.
type Fault struct {
	Block string
	Mode  string
}

func (f Fault) String() string { return f.Block + "_" + f.Mode }

// Injection is everything scheduled at one time step of a scenario.
type Injection struct {
	Faults       map[string][]string
	Disturbances map[string]float64
}

// Scenario is an immutable record of one run plan: a time-indexed sequence
// of injections, an assessed rate, a deterministic name and the primary
// injection time.
type Scenario struct {
	Name string
	Rate float64
	Time float64

	// Faults lists the injected (block, mode) pairs of the primary
	// injection, in insertion order.
	Faults []Fault

	sequence map[float64]Injection
	times    []float64
}

// TimeKey renders a time for scenario names: %g format with '.' replaced by
// 'p', so names stay filesystem- and identifier-safe.
func TimeKey(t float64) string {
	return "t" + strings.ReplaceAll(fmt.Sprintf("%g", t), ".", "p")
}

// Name derives the deterministic scenario name for a fault set injected at
// time t. Identical inputs always produce identical names.
func Name(faults []Fault, t float64) string {
	parts := make([]string, 0, len(faults)+1)
	for _, f := range faults {
		parts = append(parts, f.String())
	}
	parts = append(parts, TimeKey(t))
	return strings.Join(parts, "_")
}

// Nominal is the no-fault baseline scenario.
func Nominal() Scenario {
	return Scenario{Name: "nominal", Rate: 1.0}
}

// New assembles a scenario from a full sequence. Most callers use
// SingleFault or JointFault instead.
func New(name string, rate float64, t float64, faults []Fault, sequence map[float64]Injection) Scenario {
	s := Scenario{
		Name:     name,
		Rate:     rate,
		Time:     t,
		Faults:   append([]Fault(nil), faults...),
		sequence: make(map[float64]Injection, len(sequence)),
	}
	for time, inj := range sequence {
		s.sequence[time] = copyInjection(inj)
		s.times = append(s.times, time)
	}
	sort.Float64s(s.times)
	return s
}

// SingleFault builds a scenario injecting exactly one fault mode at time t.
func SingleFault(block, mode string, t, rate float64) Scenario {
	faults := []Fault{{Block: block, Mode: mode}}
	return New(Name(faults, t), rate, t, faults, map[float64]Injection{
		t: {Faults: map[string][]string{block: {mode}}},
	})
}

// JointFault builds a scenario injecting several fault modes simultaneously
// at time t, with the given combined rate.
func JointFault(t, rate float64, faults ...Fault) Scenario {
	inj := Injection{Faults: make(map[string][]string, len(faults))}
	for _, f := range faults {
		inj.Faults[f.Block] = append(inj.Faults[f.Block], f.Mode)
	}
	return New(Name(faults, t), rate, t, faults, map[float64]Injection{t: inj})
}

// Times returns the injection times in ascending order.
func (s Scenario) Times() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}

// At returns the injection scheduled at time t, if any.
func (s Scenario) At(t float64) (Injection, bool) {
	inj, ok := s.sequence[t]
	if !ok {
		return Injection{}, false
	}
	return copyInjection(inj), true
}

func copyInjection(inj Injection) Injection {
	cp := Injection{}
	if inj.Faults != nil {
		cp.Faults = make(map[string][]string, len(inj.Faults))
		for block, modes := range inj.Faults {
			cp.Faults[block] = append([]string(nil), modes...)
		}
	}
	if inj.Disturbances != nil {
		cp.Disturbances = make(map[string]float64, len(inj.Disturbances))
		for path, v := range inj.Disturbances {
			cp.Disturbances[path] = v
		}
	}
	return cp
}

// RatePolicy selects how individual fault rates combine into a joint rate.
type RatePolicy string

const (
	// RateIndependent multiplies the individual rates, assuming the
	// faults occur independently.
	RateIndependent RatePolicy = "ind"
	// RateMax takes the largest individual rate.
	RateMax RatePolicy = "max"
	// RateBase scales a caller-supplied base rate by an explicit
	// conditional probability.
	RateBase RatePolicy = "base"
)

// CombineRates folds individual scenario rates into one joint rate under the
// given policy. base and pcond are only consulted by RateBase. An unknown
// policy or an empty rate list is a fatal sampling error.
func CombineRates(policy RatePolicy, rates []float64, base, pcond float64) (float64, error) {
	if len(rates) == 0 {
		return 0, simerr.Config("sample", string(policy), "no rates to combine")
	}
	switch policy {
	case RateIndependent:
		rate := 1.0
		for _, r := range rates {
			rate *= r
		}
		return rate, nil
	case RateMax:
		rate := rates[0]
		for _, r := range rates[1:] {
			if r > rate {
				rate = r
			}
		}
		return rate, nil
	case RateBase:
		return base * pcond, nil
	default:
		return 0, simerr.Config("sample", string(policy), "unknown rate policy (want ind, max or base)")
	}
}
