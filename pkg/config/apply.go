package config

import (
	"fmt"

	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/sample"
	"github.com/dd0wney/cluso-resilsim/pkg/scenario"
)

// SimParams converts the sim section into model parameters.
func (c *Config) SimParams() model.SimParams {
	return model.SimParams{
		Start: c.Sim.Start,
		End:   c.Sim.End,
		Dt:    c.Sim.Dt,
		Units: c.Sim.Units,
	}
}

// BuildPhaseMap materializes one declared phase map.
func (pmc PhaseMapConfig) BuildPhaseMap() (*phases.PhaseMap, error) {
	ps := make([]phases.Phase, len(pmc.Phases))
	for i, pc := range pmc.Phases {
		ps[i] = phases.Phase{Name: pc.Name, Start: pc.Start, End: pc.End}
	}
	pm, err := phases.New(ps...)
	if err != nil {
		return nil, err
	}
	if len(pmc.Opportunities) > 0 {
		pm.Opportunity = pmc.Opportunities
	}
	return pm, nil
}

// Apply builds a sample approach over the given model from the configured
// phase maps, domains and samples. The model must already be built; its
// seed is updated from the sim section when set.
func (c *Config) Apply(mdl *model.Model) (*sample.SampleApproach, error) {
	if c.Sim.Seed != 0 {
		mdl.UpdateSeed(c.Sim.Seed)
	}
	sa := sample.NewApproach(mdl)
	sa.SetMetrics(c.Metrics)

	for _, pmc := range c.PhaseMaps {
		pm, err := pmc.BuildPhaseMap()
		if err != nil {
			return nil, fmt.Errorf("phase map %q: %w", pmc.Name, err)
		}
		if err := sa.AddPhaseMap(pmc.Name, pm); err != nil {
			return nil, err
		}
	}

	for _, dc := range c.Domains {
		fd, err := sa.NewDomain(dc.Name)
		if err != nil {
			return nil, err
		}
		if err := applyDomain(fd, dc); err != nil {
			return nil, fmt.Errorf("domain %q: %w", dc.Name, err)
		}
	}

	for _, sc := range c.Samples {
		fs, err := sa.NewSample(sc.Name, sc.Domain, sc.PhaseMap)
		if err != nil {
			return nil, err
		}
		if err := applySample(fs, sc); err != nil {
			return nil, fmt.Errorf("sample %q: %w", sc.Name, err)
		}
	}
	return sa, nil
}

func applyDomain(fd *sample.FaultDomain, dc DomainConfig) error {
	switch dc.Select {
	case "all":
		return fd.AddAll()
	case "modes":
		exact := true
		if dc.Exact != nil {
			exact = *dc.Exact
		}
		return fd.AddAllModes(exact, dc.Args...)
	case "class":
		return fd.AddAllClassModes(dc.Args...)
	case "block":
		return fd.AddAllBlockModes(dc.Args...)
	case "single_component":
		return fd.AddSingleComponentModes(dc.Args...)
	case "faults":
		for _, ref := range dc.Faults {
			if err := fd.AddFault(ref.Block, ref.Mode); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown selection rule %q", dc.Select)
	}
}

func applySample(fs *sample.FaultSample, sc SampleConfig) error {
	if sc.Joint != nil {
		return applyJointSample(fs, sc)
	}
	switch sc.Method {
	case "even":
		return fs.AddSingleFaultPhases(sample.EvenPolicy(sc.N), nil)
	case "quad":
		return fs.AddSingleFaultPhases(sample.QuadPolicy(sc.Nodes, sc.Weights), nil)
	case "times":
		return fs.AddSingleFaultTimes(sc.Times, sc.Weights)
	default:
		return fmt.Errorf("unknown method %q", sc.Method)
	}
}

func applyJointSample(fs *sample.FaultSample, sc SampleConfig) error {
	policy := scenario.RatePolicy(sc.Joint.Policy)
	if sc.Method != "times" {
		return fmt.Errorf("joint sampling needs method: times")
	}
	return fs.AddFaultCombinations(sc.Joint.K, sc.Times, sc.Weights, policy, sc.Joint.Pcond)
}
