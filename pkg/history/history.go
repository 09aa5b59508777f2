// Package history records time-series snapshots of a model run: one sampled
// value per tracked key per logged time step. Histories are what result
// classification and comparison operate on after a simulation finishes.
package history

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-resilsim/pkg/flow"
)

// Entry is one key/value pair of a snapshot. Keys are dotted paths such as
// "flows.ee1.rate" or "blocks.store_ee.soc".
type Entry struct {
	Key   string
	Value flow.Value
}

// History accumulates snapshots over time. The key set is fixed by the first
// logged snapshot; every later snapshot must cover exactly the same keys so
// that all series stay aligned with the time axis.
type History struct {
	times  []float64
	keys   []string
	series map[string][]flow.Value
}

// New creates an empty history.
func New() *History {
	return &History{series: make(map[string][]flow.Value)}
}

// Log appends one snapshot taken at time t.
func (h *History) Log(t float64, entries []Entry) error {
	if len(h.keys) == 0 && len(h.times) == 0 {
		for _, e := range entries {
			if _, dup := h.series[e.Key]; dup {
				return fmt.Errorf("history: duplicate key %q in snapshot", e.Key)
			}
			h.keys = append(h.keys, e.Key)
			h.series[e.Key] = nil
		}
	}
	if len(entries) != len(h.keys) {
		return fmt.Errorf("history: snapshot has %d entries, history tracks %d keys", len(entries), len(h.keys))
	}
	for _, e := range entries {
		s, ok := h.series[e.Key]
		if !ok {
			return fmt.Errorf("history: key %q not tracked", e.Key)
		}
		if len(s) != len(h.times) {
			return fmt.Errorf("history: key %q repeated in snapshot", e.Key)
		}
		h.series[e.Key] = append(s, e.Value)
	}
	h.times = append(h.times, t)
	return nil
}

// Len returns the number of logged snapshots.
func (h *History) Len() int { return len(h.times) }

// Times returns the time axis.
func (h *History) Times() []float64 {
	out := make([]float64, len(h.times))
	copy(out, h.times)
	return out
}

// Keys returns the tracked keys in snapshot order.
func (h *History) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Series returns the full value series for one key.
func (h *History) Series(key string) ([]flow.Value, error) {
	s, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("history: unknown key %q", key)
	}
	out := make([]flow.Value, len(s))
	copy(out, s)
	return out, nil
}

// Numbers returns a numeric series for one key.
func (h *History) Numbers(key string) ([]float64, error) {
	s, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("history: unknown key %q", key)
	}
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v.Num()
	}
	return out, nil
}

// At returns the value of one key at snapshot index i.
func (h *History) At(key string, i int) (flow.Value, error) {
	s, ok := h.series[key]
	if !ok {
		return flow.Value{}, fmt.Errorf("history: unknown key %q", key)
	}
	if i < 0 || i >= len(s) {
		return flow.Value{}, fmt.Errorf("history: index %d out of range for key %q (%d snapshots)", i, key, len(s))
	}
	return s[i], nil
}

// Last returns the value of one key at the final snapshot.
func (h *History) Last(key string) (flow.Value, error) {
	if len(h.times) == 0 {
		return flow.Value{}, fmt.Errorf("history: empty")
	}
	return h.At(key, len(h.times)-1)
}

// Diff returns the keys whose series differ between h and other, sorted.
// Keys present in only one history always count as different.
func (h *History) Diff(other *History) []string {
	seen := make(map[string]bool)
	var out []string
	note := func(key string) {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for key, s := range h.series {
		o, ok := other.series[key]
		if !ok || !flow.EqualMutables(s, o) {
			note(key)
		}
	}
	for key := range other.series {
		if _, ok := h.series[key]; !ok {
			note(key)
		}
	}
	sort.Strings(out)
	return out
}

// FaultyTimes returns the times at which the given key differs from its
// value in the nominal history. Series are compared index-wise up to the
// shorter length.
func (h *History) FaultyTimes(nominal *History, key string) ([]float64, error) {
	s, ok := h.series[key]
	if !ok {
		return nil, fmt.Errorf("history: unknown key %q", key)
	}
	n, ok := nominal.series[key]
	if !ok {
		return nil, fmt.Errorf("history: key %q not in nominal history", key)
	}
	var out []float64
	for i := 0; i < len(s) && i < len(n); i++ {
		if s[i] != n[i] {
			out = append(out, h.times[i])
		}
	}
	return out, nil
}
