// Package config loads simulation-run configuration from YAML: time
// parameters, operational phase maps, fault domains, sampling policies and
// runner options. Model structure itself (blocks, flows, behaviors) is code;
// config selects what to sample from an already-built model and how.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-resilsim/pkg/metrics"
)

// validate is a singleton validator instance
var validate = validator.New()

// Config is the root of a run configuration file.
type Config struct {
	Sim       SimConfig        `yaml:"sim" validate:"required"`
	PhaseMaps []PhaseMapConfig `yaml:"phase_maps" validate:"omitempty,dive"`
	Domains   []DomainConfig   `yaml:"domains" validate:"min=1,dive"`
	Samples   []SampleConfig   `yaml:"samples" validate:"min=1,dive"`
	Run       RunConfig        `yaml:"run"`

	// Metrics optionally receives scenario-generation counters during
	// Apply. Set programmatically; not part of the file format.
	Metrics *metrics.Registry `yaml:"-" validate:"-"`
}

// SimConfig sets the simulated time range and rate units.
type SimConfig struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end" validate:"gtfield=Start"`
	Dt    float64 `yaml:"dt" validate:"gt=0"`
	Units string  `yaml:"units" validate:"omitempty,oneof=sec min hr day"`
	Seed  int64   `yaml:"seed"`
}

// PhaseMapConfig declares a named phase map.
type PhaseMapConfig struct {
	Name   string        `yaml:"name" validate:"required"`
	Phases []PhaseConfig `yaml:"phases" validate:"min=1,dive"`

	// Opportunities optionally fixes per-phase fault opportunity.
	Opportunities map[string]float64 `yaml:"opportunities"`
}

// PhaseConfig is one named time interval.
type PhaseConfig struct {
	Name  string  `yaml:"name" validate:"required"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end" validate:"gtefield=Start"`
}

// DomainConfig declares a fault domain via one selection rule.
type DomainConfig struct {
	Name string `yaml:"name" validate:"required"`

	// Select picks the selection rule: all, modes, class, block,
	// single_component or faults.
	Select string `yaml:"select" validate:"required,oneof=all modes class block single_component faults"`

	// Args parameterizes the rule (mode names, class labels, block names).
	Args []string `yaml:"args"`

	// Exact toggles exact mode-name matching for select: modes.
	Exact *bool `yaml:"exact"`

	// Faults lists explicit pairs for select: faults.
	Faults []FaultRef `yaml:"faults" validate:"omitempty,dive"`
}

// FaultRef names one (block, mode) pair.
type FaultRef struct {
	Block string `yaml:"block" validate:"required"`
	Mode  string `yaml:"mode" validate:"required"`
}

// SampleConfig declares one fault sample over a domain.
type SampleConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Domain   string `yaml:"domain" validate:"required"`
	PhaseMap string `yaml:"phase_map"`

	// Method picks the timing policy: even, quad or times.
	Method string `yaml:"method" validate:"required,oneof=even quad times"`

	N       int       `yaml:"n" validate:"omitempty,min=1"`
	Nodes   []float64 `yaml:"nodes" validate:"omitempty,dive,gte=-1,lte=1"`
	Weights []float64 `yaml:"weights"`
	Times   []float64 `yaml:"times"`

	// Joint switches the sample to k-fault combinations.
	Joint *JointConfig `yaml:"joint"`
}

// JointConfig configures joint-fault combination sampling.
type JointConfig struct {
	K      int     `yaml:"k" validate:"min=2"`
	Policy string  `yaml:"policy" validate:"required,oneof=ind max base"`
	Pcond  float64 `yaml:"pcond" validate:"gte=0,lte=1"`
}

// RunConfig tunes the scenario runner.
type RunConfig struct {
	Workers  int    `yaml:"workers" validate:"omitempty,min=1"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// Track restricts recorded history to these keys or key prefixes.
	Track []string `yaml:"track"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints plus the cross-references between
// sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	phaseMaps := make(map[string]bool, len(c.PhaseMaps))
	for _, pmc := range c.PhaseMaps {
		if phaseMaps[pmc.Name] {
			return fmt.Errorf("duplicate phase map %q", pmc.Name)
		}
		phaseMaps[pmc.Name] = true
	}
	domains := make(map[string]bool, len(c.Domains))
	for _, dc := range c.Domains {
		if domains[dc.Name] {
			return fmt.Errorf("duplicate domain %q", dc.Name)
		}
		domains[dc.Name] = true
		if dc.Select == "faults" && len(dc.Faults) == 0 {
			return fmt.Errorf("domain %q selects explicit faults but lists none", dc.Name)
		}
		if (dc.Select == "modes" || dc.Select == "class" || dc.Select == "block") && len(dc.Args) == 0 {
			return fmt.Errorf("domain %q needs args for select: %s", dc.Name, dc.Select)
		}
	}
	samples := make(map[string]bool, len(c.Samples))
	for _, sc := range c.Samples {
		if samples[sc.Name] {
			return fmt.Errorf("duplicate sample %q", sc.Name)
		}
		samples[sc.Name] = true
		if !domains[sc.Domain] {
			return fmt.Errorf("sample %q references unknown domain %q", sc.Name, sc.Domain)
		}
		if sc.PhaseMap != "" && !phaseMaps[sc.PhaseMap] {
			return fmt.Errorf("sample %q references unknown phase map %q", sc.Name, sc.PhaseMap)
		}
		switch sc.Method {
		case "even":
			if sc.N < 1 {
				return fmt.Errorf("sample %q: method even needs n >= 1", sc.Name)
			}
		case "quad":
			if len(sc.Nodes) == 0 || len(sc.Nodes) != len(sc.Weights) {
				return fmt.Errorf("sample %q: method quad needs matching nodes and weights", sc.Name)
			}
		case "times":
			if len(sc.Times) == 0 {
				return fmt.Errorf("sample %q: method times needs explicit times", sc.Name)
			}
		}
	}
	return nil
}
