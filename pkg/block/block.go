// Package block defines the functional units of a model: blocks with state,
// fault modes, timers and behaviors, connected to each other through shared
// flows. A block's behaviors come in two kinds: a dynamic behavior executed
// exactly once per time step in pipeline order, and a static behavior re-run
// until its block and connected flows stop changing within the step.
package block

import (
	"sort"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Capability tags which behavior steps a block participates in. It is fixed
// at construction.
type Capability uint8

const (
	CapNone Capability = iota
	CapStatic
	CapDynamic
	CapBoth
)

func (c Capability) String() string {
	switch c {
	case CapStatic:
		return "static"
	case CapDynamic:
		return "dynamic"
	case CapBoth:
		return "static+dynamic"
	default:
		return "none"
	}
}

// HasStatic reports whether the capability includes a static behavior.
func (c Capability) HasStatic() bool { return c == CapStatic || c == CapBoth }

// HasDynamic reports whether the capability includes a dynamic behavior.
func (c Capability) HasDynamic() bool { return c == CapDynamic || c == CapBoth }

// Behavior is a block update step. Behaviors read and write the block's own
// containers and its bound flows; they must not touch other blocks.
type Behavior func(b *Block, t float64)

// Component declares a sub-component of a block together with the fault
// modes it contributes. Component modes are registered on the block itself;
// the grouping exists so fault domains can pick one representative component
// out of a family of identical ones.
type Component struct {
	Name  string
	Modes []FaultMode
}

// Spec declares a block. Flows lists the model flow names the block
// references; Aliases optionally maps block-local names onto them.
type Spec struct {
	Name  string
	Class string

	State       []Var
	Modes       []FaultMode
	OperModes   []string
	InitialOper string
	Timers      []string
	Components  []Component

	Flows   []string
	Aliases map[string]string

	// CondFaults is a guard evaluated before each behavior body; it may
	// self-activate fault modes based on the current state.
	CondFaults Behavior
	Static     Behavior
	Dynamic    Behavior
}

// Block is one functional unit of a model.
type Block struct {
	name  string
	class string

	state  *State
	mode   *Mode
	timers *Timers
	rand   *Rand

	capability Capability
	condFaults Behavior
	static     Behavior
	dynamic    Behavior

	flowNames []string
	aliases   map[string]string
	flows     map[string]*flow.Flow

	compOrder []string
	compModes map[string][]string
}

// New builds a block from its spec. Fault-mode rates are validated here;
// flows are bound later when the block is added to a model.
func New(spec Spec) (*Block, error) {
	if spec.Name == "" {
		return nil, simerr.Config("block", "", "block has no name")
	}
	state, err := NewState(spec.Name, spec.State...)
	if err != nil {
		return nil, err
	}
	timers, err := NewTimers(spec.Name, spec.Timers...)
	if err != nil {
		return nil, err
	}
	mode := NewMode(spec.Name, spec.InitialOper, spec.OperModes...)
	for _, fm := range spec.Modes {
		if err := mode.Define(fm); err != nil {
			return nil, err
		}
	}

	b := &Block{
		name:       spec.Name,
		class:      spec.Class,
		state:      state,
		mode:       mode,
		timers:     timers,
		rand:       NewRand(0),
		condFaults: spec.CondFaults,
		static:     spec.Static,
		dynamic:    spec.Dynamic,
		flowNames:  append([]string(nil), spec.Flows...),
		aliases:    spec.Aliases,
		flows:      make(map[string]*flow.Flow),
		compModes:  make(map[string][]string),
	}
	for _, comp := range spec.Components {
		if _, dup := b.compModes[comp.Name]; dup {
			return nil, simerr.Config("block", spec.Name, "duplicate component %q", comp.Name)
		}
		names := make([]string, 0, len(comp.Modes))
		for _, fm := range comp.Modes {
			if err := mode.Define(fm); err != nil {
				return nil, err
			}
			names = append(names, fm.Name)
		}
		b.compOrder = append(b.compOrder, comp.Name)
		b.compModes[comp.Name] = names
	}

	switch {
	case spec.Static != nil && spec.Dynamic != nil:
		b.capability = CapBoth
	case spec.Static != nil:
		b.capability = CapStatic
	case spec.Dynamic != nil:
		b.capability = CapDynamic
	default:
		b.capability = CapNone
	}
	return b, nil
}

// MustNew is New for statically-known specs.
func MustNew(spec Spec) *Block {
	b, err := New(spec)
	if err != nil {
		panic(err)
	}
	return b
}

// Name returns the block's model-unique name.
func (b *Block) Name() string { return b.name }

// Class returns the block's class label, used by fault-domain selection.
func (b *Block) Class() string { return b.class }

// Capability returns the block's behavior capability.
func (b *Block) Capability() Capability { return b.capability }

// State returns the block's continuous-state container.
func (b *Block) State() *State { return b.state }

// Mode returns the block's fault-mode container.
func (b *Block) Mode() *Mode { return b.mode }

// Timers returns the block's timer container.
func (b *Block) Timers() *Timers { return b.timers }

// Rand returns the block's random container.
func (b *Block) Rand() *Rand { return b.rand }

// FlowNames returns the model flow names the block references, in
// declaration order.
func (b *Block) FlowNames() []string {
	out := make([]string, len(b.flowNames))
	copy(out, b.flowNames)
	return out
}

// Components returns the block's component names in declaration order.
func (b *Block) Components() []string {
	out := make([]string, len(b.compOrder))
	copy(out, b.compOrder)
	return out
}

// ComponentModes returns the fault-mode names contributed by the named
// component.
func (b *Block) ComponentModes(comp string) ([]string, error) {
	modes, ok := b.compModes[comp]
	if !ok {
		return nil, simerr.Config("block", b.name, "unknown component %q", comp)
	}
	out := make([]string, len(modes))
	copy(out, modes)
	return out, nil
}

// BindFlow attaches a shared flow under its model name (and any alias
// declared for it). Called by the owning model at build and copy time.
func (b *Block) BindFlow(name string, fl *flow.Flow) {
	b.flows[name] = fl
	for local, modelName := range b.aliases {
		if modelName == name {
			b.flows[local] = fl
		}
	}
}

// Flow returns a bound flow by model name or local alias. Unknown names are
// a configuration bug in the behavior body, so this panics rather than
// returning an error.
func (b *Block) Flow(name string) *flow.Flow {
	fl, ok := b.flows[name]
	if !ok {
		panic(simerr.Config("block", b.name, "flow %q not bound", name))
	}
	return fl
}

// Mutables returns the comparable tuple of everything mutable in the block:
// state, mode and timers. Static propagation uses it to decide whether the
// block changed.
func (b *Block) Mutables() []flow.Value {
	out := b.state.Mutables()
	out = append(out, b.mode.Mutables()...)
	out = append(out, b.timers.Mutables()...)
	return out
}

// UpdateSeed reseeds the block from a model-level seed, deriving a
// block-specific stream deterministically.
func (b *Block) UpdateSeed(modelSeed int64, stochastic bool) {
	parent := NewRand(modelSeed)
	b.rand.UpdateSeed(parent.DeriveSeed(b.name))
	b.rand.Stochastic = stochastic
}

// ChooseRandFault activates one of the given fault modes: a random choice
// when running stochastically, the first (or a given default) otherwise.
func (b *Block) ChooseRandFault(faults []string, deflt string) error {
	if len(faults) == 0 {
		return simerr.Config("block", b.name, "no faults to choose from")
	}
	if b.rand.Stochastic {
		return b.mode.Activate(faults[b.rand.Rng().Intn(len(faults))])
	}
	if deflt == "" {
		return b.mode.Activate(faults[0])
	}
	return b.mode.Activate(deflt)
}

// ApplyDisturbances overrides named state variables. An unresolvable
// variable is a fatal configuration error.
func (b *Block) ApplyDisturbances(disturbances map[string]float64) error {
	// Stable application order for determinism.
	vars := make([]string, 0, len(disturbances))
	for v := range disturbances {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		if err := b.state.Set(v, disturbances[v]); err != nil {
			return err
		}
	}
	return nil
}

// RunDynamic injects the given faults, evaluates the conditional-fault
// guard, and executes the dynamic behavior once at time t. The guard runs
// after injection so it can react to externally injected faults within the
// same step.
func (b *Block) RunDynamic(t float64, faults []string) error {
	if err := b.mode.Activate(faults...); err != nil {
		return err
	}
	if b.condFaults != nil {
		b.condFaults(b, t)
	}
	if b.dynamic != nil {
		b.dynamic(b, t)
	}
	b.timers.SetClock(t)
	return nil
}

// RunStatic evaluates the conditional-fault guard and the static behavior
// once at time t. Callers loop this to a fixed point.
func (b *Block) RunStatic(t float64) {
	if b.condFaults != nil {
		b.condFaults(b, t)
	}
	if b.static != nil {
		b.static(b, t)
	}
}

// Propagate runs one full standalone step for this block: disturbances,
// fault injection, the dynamic behavior once, then the static behavior to a
// local fixed point over the block's own state and its connected flows.
func (b *Block) Propagate(t float64, faults []string, disturbances map[string]float64) error {
	if err := b.ApplyDisturbances(disturbances); err != nil {
		return err
	}
	if err := b.RunDynamic(t, faults); err != nil {
		return err
	}

	oldSelf := b.Mutables()
	oldFlows := make(map[string][]flow.Value, len(b.flowNames))
	for _, name := range b.flowNames {
		oldFlows[name] = b.Flow(name).Mutables()
	}
	for {
		if b.capability.HasStatic() {
			b.RunStatic(t)
		}
		active := false
		newSelf := b.Mutables()
		if !flow.EqualMutables(oldSelf, newSelf) {
			active = true
			oldSelf = newSelf
		}
		for _, name := range b.flowNames {
			newFlow := b.Flow(name).Mutables()
			if !flow.EqualMutables(oldFlows[name], newFlow) {
				active = true
				oldFlows[name] = newFlow
			}
		}
		if !active {
			return nil
		}
	}
}

// Reset restores state, modes and timers to their initial values and
// restarts the random stream. Identity and flow bindings are preserved.
func (b *Block) Reset() {
	b.state.Reset()
	b.mode.Reset()
	b.timers.Reset()
	b.rand.Reset()
}

// Copy produces an independent block sharing no mutable containers with the
// original. Flow bindings are not carried over; the owning model rebinds its
// own flow copies.
func (b *Block) Copy() *Block {
	return &Block{
		name:       b.name,
		class:      b.class,
		state:      b.state.Copy(),
		mode:       b.mode.Copy(),
		timers:     b.timers.Copy(),
		rand:       b.rand.Copy(),
		capability: b.capability,
		condFaults: b.condFaults,
		static:     b.static,
		dynamic:    b.dynamic,
		flowNames:  b.flowNames,
		aliases:    b.aliases,
		flows:      make(map[string]*flow.Flow),
		compOrder:  b.compOrder,
		compModes:  b.compModes,
	}
}
