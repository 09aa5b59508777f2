package sample

import (
	"sort"

	"github.com/dd0wney/cluso-resilsim/pkg/metrics"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/scenario"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// SampleApproach aggregates named fault domains and fault samples over one
// model, giving a whole-model scenario set in one place.
type SampleApproach struct {
	mdl     *model.Model
	metrics *metrics.Registry

	phaseMaps map[string]*phases.PhaseMap

	domainOrder []string
	domains     map[string]*FaultDomain

	sampleOrder []string
	samples     map[string]*FaultSample
}

// NewApproach creates an empty approach over the given model.
func NewApproach(mdl *model.Model) *SampleApproach {
	return &SampleApproach{
		mdl:       mdl,
		phaseMaps: make(map[string]*phases.PhaseMap),
		domains:   make(map[string]*FaultDomain),
		samples:   make(map[string]*FaultSample),
	}
}

// Model returns the model the approach samples.
func (sa *SampleApproach) Model() *model.Model { return sa.mdl }

// SetMetrics installs a registry that counts scenario generation. It applies
// to fault samples created afterwards.
func (sa *SampleApproach) SetMetrics(reg *metrics.Registry) { sa.metrics = reg }

// AddPhaseMap registers a named phase map for later reference by samples.
func (sa *SampleApproach) AddPhaseMap(name string, pm *phases.PhaseMap) error {
	if _, dup := sa.phaseMaps[name]; dup {
		return simerr.Config("sample", name, "phase map already registered")
	}
	sa.phaseMaps[name] = pm
	return nil
}

// PhaseMap returns a registered phase map by name.
func (sa *SampleApproach) PhaseMap(name string) (*phases.PhaseMap, error) {
	pm, ok := sa.phaseMaps[name]
	if !ok {
		return nil, simerr.Config("sample", name, "no such phase map")
	}
	return pm, nil
}

// NewDomain creates, registers and returns a named fault domain.
func (sa *SampleApproach) NewDomain(name string) (*FaultDomain, error) {
	if _, dup := sa.domains[name]; dup {
		return nil, simerr.Config("sample", name, "fault domain already registered")
	}
	fd := NewFaultDomain(sa.mdl)
	sa.domains[name] = fd
	sa.domainOrder = append(sa.domainOrder, name)
	return fd, nil
}

// Domain returns a registered fault domain by name.
func (sa *SampleApproach) Domain(name string) (*FaultDomain, error) {
	fd, ok := sa.domains[name]
	if !ok {
		return nil, simerr.Config("sample", name, "no such fault domain")
	}
	return fd, nil
}

// NewSample creates, registers and returns a named fault sample over the
// named domain. phaseMapName may be empty for unphased sampling.
func (sa *SampleApproach) NewSample(name, domainName, phaseMapName string) (*FaultSample, error) {
	if _, dup := sa.samples[name]; dup {
		return nil, simerr.Config("sample", name, "fault sample already registered")
	}
	fd, err := sa.Domain(domainName)
	if err != nil {
		return nil, err
	}
	var pm *phases.PhaseMap
	if phaseMapName != "" {
		pm, err = sa.PhaseMap(phaseMapName)
		if err != nil {
			return nil, err
		}
	}
	fs := NewFaultSample(fd, pm)
	fs.SetMetrics(sa.metrics)
	sa.samples[name] = fs
	sa.sampleOrder = append(sa.sampleOrder, name)
	return fs, nil
}

// Sample returns a registered fault sample by name.
func (sa *SampleApproach) Sample(name string) (*FaultSample, error) {
	fs, ok := sa.samples[name]
	if !ok {
		return nil, simerr.Config("sample", name, "no such fault sample")
	}
	return fs, nil
}

// Scenarios returns every generated scenario across all samples, in sample
// registration order.
func (sa *SampleApproach) Scenarios() []scenario.Scenario {
	var out []scenario.Scenario
	for _, name := range sa.sampleOrder {
		out = append(out, sa.samples[name].Scenarios()...)
	}
	return out
}

// Times returns the distinct injection times across all samples, ascending.
func (sa *SampleApproach) Times() []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, name := range sa.sampleOrder {
		for _, t := range sa.samples[name].Times() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Float64s(out)
	return out
}
