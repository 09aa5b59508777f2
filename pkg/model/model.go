// Package model implements the architecture level of the simulation kernel:
// a model owns all flows and blocks, derives the bipartite block/flow graph
// once at build time, and advances the whole system one discrete time step
// at a time with the two-phase propagation algorithm in step.go.
package model

import (
	"fmt"

	"github.com/dd0wney/cluso-resilsim/pkg/block"
	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/phases"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// SimParams fixes the discrete time range a model simulates over.
type SimParams struct {
	Start float64
	End   float64
	Dt    float64
	Units string // exposure-time unit for fault rates ("hr" when empty)

	// Phases optionally partitions [Start, End] into operational phases
	// used for phase-weighted sampling.
	Phases *phases.PhaseMap
}

// Times enumerates every simulated time step.
func (sp SimParams) Times() []float64 {
	return phases.IntervalTimes(sp.Start, sp.End, sp.Dt)
}

// Duration returns the total simulated duration, inclusive of the final
// step.
func (sp SimParams) Duration() float64 {
	return sp.End - sp.Start + sp.Dt
}

// BuildOptions tunes graph construction.
type BuildOptions struct {
	// AllowDisconnected waives the check that every block and flow is
	// connected in the bipartite graph.
	AllowDisconnected bool
}

// Model owns the flows and blocks of one system architecture. Topology is
// fixed after Build; only the contained state varies over time.
type Model struct {
	name string
	sp   SimParams
	rand *block.Rand

	classifier Classifier

	flowOrder  []string
	flows      map[string]*flow.Flow
	blockOrder []string
	blocks     map[string]*block.Block

	built     bool
	buildOpts BuildOptions

	// Adjacency arena, built once at Build time. Blocks and flows are
	// addressed by their insertion index.
	blockIdx      map[string]int
	flowIdx       map[string]int
	blockFlows    [][]int
	flowBlocks    [][]int
	staticBlocks  []int
	dynamicBlocks []int
	staticFlows   []int
	isStaticBlock []bool

	// Cached mutable tuples of static flows, carried across steps so a
	// dynamic-phase change wakes the right static blocks on the first pass.
	flowStates [][]flow.Value

	// lastPasses is the fixed-point pass count of the most recent Step.
	lastPasses int
}

// New creates an empty model with the given simulation parameters.
func New(name string, sp SimParams) *Model {
	return &Model{
		name:   name,
		sp:     sp,
		rand:   block.NewRand(0),
		flows:  make(map[string]*flow.Flow),
		blocks: make(map[string]*block.Block),
	}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Params returns the simulation parameters.
func (m *Model) Params() SimParams { return m.sp }

// AddFlow registers a flow. Flow names are unique within the model.
func (m *Model) AddFlow(fl *flow.Flow) error {
	if m.built {
		return simerr.Config("model", m.name, "cannot add flow %q after build", fl.Name())
	}
	if _, dup := m.flows[fl.Name()]; dup {
		return simerr.Config("flow", fl.Name(), "already in model %q", m.name)
	}
	m.flows[fl.Name()] = fl
	m.flowOrder = append(m.flowOrder, fl.Name())
	return nil
}

// AddBlock registers a block and binds its referenced flows, which must have
// been added first. Insertion order is the default execution order.
func (m *Model) AddBlock(b *block.Block) error {
	if m.built {
		return simerr.Config("model", m.name, "cannot add block %q after build", b.Name())
	}
	if _, dup := m.blocks[b.Name()]; dup {
		return simerr.Config("block", b.Name(), "already in model %q", m.name)
	}
	for _, fname := range b.FlowNames() {
		fl, ok := m.flows[fname]
		if !ok {
			return simerr.Config("block", b.Name(), "references unknown flow %q", fname)
		}
		b.BindFlow(fname, fl)
	}
	m.blocks[b.Name()] = b
	m.blockOrder = append(m.blockOrder, b.Name())
	return nil
}

// SetBlockOrder overrides the execution order. The given names must be a
// permutation of the model's blocks, and the order must be fixed before
// Build derives the adjacency arena from it.
func (m *Model) SetBlockOrder(names ...string) error {
	if m.built {
		return simerr.Config("model", m.name, "cannot reorder blocks after build")
	}
	if len(names) != len(m.blockOrder) {
		return simerr.Config("model", m.name, "order has %d names, model has %d blocks", len(names), len(m.blockOrder))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := m.blocks[name]; !ok {
			return simerr.Config("model", m.name, "order names unknown block %q", name)
		}
		if seen[name] {
			return simerr.Config("model", m.name, "order repeats block %q", name)
		}
		seen[name] = true
	}
	m.blockOrder = append(m.blockOrder[:0], names...)
	return nil
}

// Build derives the bipartite graph, the execution subsets and the adjacency
// arena. Must be called once after all flows and blocks are added; the
// topology is immutable afterwards.
func (m *Model) Build() error {
	return m.BuildWith(BuildOptions{})
}

// BuildWith is Build with explicit options.
func (m *Model) BuildWith(opts BuildOptions) error {
	if m.built {
		return simerr.Config("model", m.name, "already built")
	}
	m.buildOpts = opts

	m.blockIdx = make(map[string]int, len(m.blockOrder))
	for i, name := range m.blockOrder {
		m.blockIdx[name] = i
	}
	m.flowIdx = make(map[string]int, len(m.flowOrder))
	for i, name := range m.flowOrder {
		m.flowIdx[name] = i
	}

	m.blockFlows = make([][]int, len(m.blockOrder))
	m.flowBlocks = make([][]int, len(m.flowOrder))
	for bi, bname := range m.blockOrder {
		b := m.blocks[bname]
		for _, fname := range b.FlowNames() {
			fi := m.flowIdx[fname]
			m.blockFlows[bi] = append(m.blockFlows[bi], fi)
			m.flowBlocks[fi] = append(m.flowBlocks[fi], bi)
		}
	}

	if !opts.AllowDisconnected {
		var dangling []string
		for bi, bname := range m.blockOrder {
			if len(m.blockFlows[bi]) == 0 {
				dangling = append(dangling, bname)
			}
		}
		for fi, fname := range m.flowOrder {
			if len(m.flowBlocks[fi]) == 0 {
				dangling = append(dangling, fname)
			}
		}
		if len(dangling) > 0 {
			return simerr.Config("model", m.name, "disconnected from graph: %v", dangling)
		}
	}

	m.isStaticBlock = make([]bool, len(m.blockOrder))
	m.staticBlocks = m.staticBlocks[:0]
	m.dynamicBlocks = m.dynamicBlocks[:0]
	for bi, bname := range m.blockOrder {
		cap := m.blocks[bname].Capability()
		if cap.HasStatic() {
			m.isStaticBlock[bi] = true
			m.staticBlocks = append(m.staticBlocks, bi)
		}
		if cap.HasDynamic() {
			m.dynamicBlocks = append(m.dynamicBlocks, bi)
		}
	}

	m.staticFlows = m.staticFlows[:0]
	for fi := range m.flowOrder {
		for _, bi := range m.flowBlocks[fi] {
			if m.isStaticBlock[bi] {
				m.staticFlows = append(m.staticFlows, fi)
				break
			}
		}
	}

	m.flowStates = nil
	m.built = true
	m.propagateSeed()
	return nil
}

// Built reports whether Build has run.
func (m *Model) Built() bool { return m.built }

// LastPasses returns the static fixed-point pass count of the most recent
// successful Step, zero before the first step.
func (m *Model) LastPasses() int { return m.lastPasses }

// Flow returns a flow by name.
func (m *Model) Flow(name string) (*flow.Flow, error) {
	fl, ok := m.flows[name]
	if !ok {
		return nil, simerr.Config("flow", name, "not in model %q", m.name)
	}
	return fl, nil
}

// Block returns a block by name.
func (m *Model) Block(name string) (*block.Block, error) {
	b, ok := m.blocks[name]
	if !ok {
		return nil, simerr.Config("block", name, "not in model %q", m.name)
	}
	return b, nil
}

// FlowNames returns the flow names in insertion order.
func (m *Model) FlowNames() []string {
	out := make([]string, len(m.flowOrder))
	copy(out, m.flowOrder)
	return out
}

// BlockNames returns the block names in execution order.
func (m *Model) BlockNames() []string {
	out := make([]string, len(m.blockOrder))
	copy(out, m.blockOrder)
	return out
}

// StaticBlockNames returns the names of blocks with a static behavior, in
// execution order.
func (m *Model) StaticBlockNames() []string {
	out := make([]string, 0, len(m.staticBlocks))
	for _, bi := range m.staticBlocks {
		out = append(out, m.blockOrder[bi])
	}
	return out
}

// DynamicBlockNames returns the names of blocks with a dynamic behavior, in
// execution order.
func (m *Model) DynamicBlockNames() []string {
	out := make([]string, 0, len(m.dynamicBlocks))
	for _, bi := range m.dynamicBlocks {
		out = append(out, m.blockOrder[bi])
	}
	return out
}

// BlocksOfClass returns the names of blocks with the given class label, in
// execution order.
func (m *Model) BlocksOfClass(class string) []string {
	var out []string
	for _, name := range m.blockOrder {
		if m.blocks[name].Class() == class {
			out = append(out, name)
		}
	}
	return out
}

// AdjacentBlocks returns the names of blocks sharing at least one flow with
// the named block.
func (m *Model) AdjacentBlocks(name string) ([]string, error) {
	bi, ok := m.blockIdx[name]
	if !ok {
		return nil, simerr.Config("block", name, "not in model %q", m.name)
	}
	seen := make(map[int]bool)
	var out []string
	for _, fi := range m.blockFlows[bi] {
		for _, nbi := range m.flowBlocks[fi] {
			if nbi == bi || seen[nbi] {
				continue
			}
			seen[nbi] = true
			out = append(out, m.blockOrder[nbi])
		}
	}
	return out, nil
}

// UpdateSeed reseeds the model and derives per-block seeds, so one
// model-level seed reproduces every stochastic choice.
func (m *Model) UpdateSeed(seed int64) {
	m.rand.UpdateSeed(seed)
	m.propagateSeed()
}

// SetStochastic selects stochastic or deterministic behavior evaluation.
func (m *Model) SetStochastic(on bool) {
	m.rand.Stochastic = on
	m.propagateSeed()
}

func (m *Model) propagateSeed() {
	for _, name := range m.blockOrder {
		m.blocks[name].UpdateSeed(m.rand.Seed(), m.rand.Stochastic)
	}
}

// Seed returns the model-level random seed.
func (m *Model) Seed() int64 { return m.rand.Seed() }

// Reset restores every flow and block to its initial state without
// destroying identity or topology.
func (m *Model) Reset() {
	for _, name := range m.flowOrder {
		m.flows[name].Reset()
	}
	for _, name := range m.blockOrder {
		m.blocks[name].Reset()
	}
	m.rand.Reset()
	m.flowStates = nil
}

// Copy produces an independent model instance sharing no mutable state with
// the original. Used to give each scenario (or worker) a private model.
func (m *Model) Copy() (*Model, error) {
	if !m.built {
		return nil, simerr.Config("model", m.name, "copy before build")
	}
	cp := New(m.name, m.sp)
	cp.classifier = m.classifier
	cp.rand = m.rand.Copy()
	for _, name := range m.flowOrder {
		if err := cp.AddFlow(m.flows[name].Copy()); err != nil {
			return nil, fmt.Errorf("copying model %q: %w", m.name, err)
		}
	}
	for _, name := range m.blockOrder {
		if err := cp.AddBlock(m.blocks[name].Copy()); err != nil {
			return nil, fmt.Errorf("copying model %q: %w", m.name, err)
		}
	}
	if err := cp.BuildWith(m.buildOpts); err != nil {
		return nil, fmt.Errorf("copying model %q: %w", m.name, err)
	}
	return cp, nil
}
