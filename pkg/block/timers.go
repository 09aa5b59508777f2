package block

import (
	"math"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Timers is a block's local clock plus any named timers. The clock records
// the last time the block's dynamic behavior ran, which lets integrator-like
// behaviors guard against double stepping within one tick.
type Timers struct {
	owner string
	clock float64

	names  []string
	index  map[string]int
	values []float64
}

// NewTimers builds a timer container with the given named timers, all zeroed.
func NewTimers(owner string, names ...string) (*Timers, error) {
	t := &Timers{
		owner:  owner,
		clock:  math.Inf(-1),
		names:  make([]string, 0, len(names)),
		index:  make(map[string]int, len(names)),
		values: make([]float64, len(names)),
	}
	for _, name := range names {
		if _, dup := t.index[name]; dup {
			return nil, simerr.Config("block", owner, "duplicate timer %q", name)
		}
		t.index[name] = len(t.names)
		t.names = append(t.names, name)
	}
	return t, nil
}

// Clock returns the time of the last dynamic execution (-Inf before the
// first step).
func (t *Timers) Clock() float64 { return t.clock }

// SetClock records the local clock. Called by the block after its dynamic
// behavior runs.
func (t *Timers) SetClock(now float64) { t.clock = now }

// Inc advances a named timer by delta, panicking on unknown names.
func (t *Timers) Inc(name string, delta float64) {
	i, ok := t.index[name]
	if !ok {
		panic(simerr.Config("block", t.owner, "unknown timer %q", name))
	}
	t.values[i] += delta
}

// Value returns a named timer's accumulated time.
func (t *Timers) Value(name string) float64 {
	i, ok := t.index[name]
	if !ok {
		panic(simerr.Config("block", t.owner, "unknown timer %q", name))
	}
	return t.values[i]
}

// Restart zeroes a named timer.
func (t *Timers) Restart(name string) {
	i, ok := t.index[name]
	if !ok {
		panic(simerr.Config("block", t.owner, "unknown timer %q", name))
	}
	t.values[i] = 0
}

// Mutables returns the comparable value tuple for change detection.
func (t *Timers) Mutables() []flow.Value {
	out := make([]flow.Value, 0, len(t.values)+1)
	out = append(out, flow.Number(t.clock))
	for _, v := range t.values {
		out = append(out, flow.Number(v))
	}
	return out
}

// Reset restores the initial clock and zeroes all timers.
func (t *Timers) Reset() {
	t.clock = math.Inf(-1)
	for i := range t.values {
		t.values[i] = 0
	}
}

// Copy returns an independent timer container.
func (t *Timers) Copy() *Timers {
	cp := &Timers{
		owner:  t.owner,
		clock:  t.clock,
		names:  t.names,
		index:  t.index,
		values: make([]float64, len(t.values)),
	}
	copy(cp.values, t.values)
	return cp
}
