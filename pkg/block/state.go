package block

import (
	"golang.org/x/exp/constraints"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Var declares one continuous state variable with its initial value.
type Var struct {
	Name string
	Init float64
}

// State holds a block's continuous variables in declaration order.
type State struct {
	owner    string
	names    []string
	index    map[string]int
	values   []float64
	defaults []float64
}

// NewState builds a state container for the named owner block.
func NewState(owner string, vars ...Var) (*State, error) {
	s := &State{
		owner:    owner,
		names:    make([]string, 0, len(vars)),
		index:    make(map[string]int, len(vars)),
		values:   make([]float64, 0, len(vars)),
		defaults: make([]float64, 0, len(vars)),
	}
	for _, v := range vars {
		if _, dup := s.index[v.Name]; dup {
			return nil, simerr.Config("block", owner, "duplicate state variable %q", v.Name)
		}
		s.index[v.Name] = len(s.names)
		s.names = append(s.names, v.Name)
		s.values = append(s.values, v.Init)
		s.defaults = append(s.defaults, v.Init)
	}
	return s, nil
}

// Names returns the variable names in declaration order.
func (s *State) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Get returns a variable's value. Unknown variables are a configuration
// error; this is the path disturbances resolve through.
func (s *State) Get(name string) (float64, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, simerr.Config("block", s.owner, "unknown state variable %q", name)
	}
	return s.values[i], nil
}

// Set assigns a variable. Unknown variables are a configuration error.
func (s *State) Set(name string, v float64) error {
	i, ok := s.index[name]
	if !ok {
		return simerr.Config("block", s.owner, "unknown state variable %q", name)
	}
	s.values[i] = v
	return nil
}

// Num returns a variable's value, panicking on unknown names. Intended for
// behavior bodies where variable names are static.
func (s *State) Num(name string) float64 {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// SetNum assigns a variable, panicking on unknown names.
func (s *State) SetNum(name string, v float64) {
	if err := s.Set(name, v); err != nil {
		panic(err)
	}
}

// Inc adds delta to a variable.
func (s *State) Inc(name string, delta float64) {
	s.SetNum(name, s.Num(name)+delta)
}

// Limit clamps a variable into [lo, hi].
func (s *State) Limit(name string, lo, hi float64) {
	s.SetNum(name, clamp(s.Num(name), lo, hi))
}

// Status returns an ordered snapshot of the state variables.
func (s *State) Status() []flow.FieldValue {
	out := make([]flow.FieldValue, len(s.names))
	for i, name := range s.names {
		out[i] = flow.FieldValue{Name: name, Value: flow.Number(s.values[i])}
	}
	return out
}

// Mutables returns the comparable value tuple for change detection.
func (s *State) Mutables() []flow.Value {
	out := make([]flow.Value, len(s.values))
	for i, v := range s.values {
		out[i] = flow.Number(v)
	}
	return out
}

// Reset restores all variables to their initial values.
func (s *State) Reset() {
	copy(s.values, s.defaults)
}

// Copy returns an independent state container with the same current values.
func (s *State) Copy() *State {
	cp := &State{
		owner:    s.owner,
		names:    s.names,
		index:    s.index,
		values:   make([]float64, len(s.values)),
		defaults: s.defaults,
	}
	copy(cp.values, s.values)
	return cp
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
