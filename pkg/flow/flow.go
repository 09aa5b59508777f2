// Package flow implements the shared state bundles that connect blocks in a
// model. A Flow is held by reference by every block that uses it, so a
// mutation made by one block is immediately visible to all others. Change
// detection during propagation compares the tuple returned by Mutables, which
// must cover every field that can affect downstream behavior.
package flow

import (
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// FieldDef declares one named field of a flow with its default value.
type FieldDef struct {
	Name    string
	Default Value
}

// Num declares a numeric field.
func Num(name string, def float64) FieldDef {
	return FieldDef{Name: name, Default: Number(def)}
}

// Lab declares a categorical (label) field.
func Lab(name string, def string) FieldDef {
	return FieldDef{Name: name, Default: Label(def)}
}

// FieldValue is one entry of an ordered status snapshot.
type FieldValue struct {
	Name  string
	Value Value
}

// Flow is a named bundle of mutable fields shared between blocks.
type Flow struct {
	name     string
	fields   []string
	index    map[string]int
	values   []Value
	defaults []Value
}

// New creates a flow with the given name and field declarations. Field order
// is preserved and defines the order of Status and Mutables.
func New(name string, fields ...FieldDef) (*Flow, error) {
	f := &Flow{
		name:     name,
		fields:   make([]string, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
		values:   make([]Value, 0, len(fields)),
		defaults: make([]Value, 0, len(fields)),
	}
	for _, fd := range fields {
		if _, dup := f.index[fd.Name]; dup {
			return nil, simerr.Config("flow", name, "duplicate field %q", fd.Name)
		}
		f.index[fd.Name] = len(f.fields)
		f.fields = append(f.fields, fd.Name)
		f.values = append(f.values, fd.Default)
		f.defaults = append(f.defaults, fd.Default)
	}
	return f, nil
}

// MustNew is New for statically-known field sets, panicking on duplicates.
func MustNew(name string, fields ...FieldDef) *Flow {
	f, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the flow's model-unique name.
func (f *Flow) Name() string { return f.name }

// Fields returns the declared field names in order.
func (f *Flow) Fields() []string {
	out := make([]string, len(f.fields))
	copy(out, f.fields)
	return out
}

// Get returns the current value of a field.
func (f *Flow) Get(field string) (Value, error) {
	i, ok := f.index[field]
	if !ok {
		return Value{}, simerr.Config("flow", f.name, "unknown field %q", field)
	}
	return f.values[i], nil
}

// Set assigns a field. Unknown fields are a configuration error.
func (f *Flow) Set(field string, v Value) error {
	i, ok := f.index[field]
	if !ok {
		return simerr.Config("flow", f.name, "unknown field %q", field)
	}
	f.values[i] = v
	return nil
}

// Number returns a numeric field's value, panicking on unknown fields.
// Intended for behavior bodies where field names are static.
func (f *Flow) Number(field string) float64 {
	v, err := f.Get(field)
	if err != nil {
		panic(err)
	}
	return v.Num()
}

// SetNumber assigns a numeric field, panicking on unknown fields.
func (f *Flow) SetNumber(field string, n float64) {
	if err := f.Set(field, Number(n)); err != nil {
		panic(err)
	}
}

// Label returns a categorical field's value, panicking on unknown fields.
func (f *Flow) Label(field string) string {
	v, err := f.Get(field)
	if err != nil {
		panic(err)
	}
	return v.Str()
}

// SetLabel assigns a categorical field, panicking on unknown fields.
func (f *Flow) SetLabel(field string, s string) {
	if err := f.Set(field, Label(s)); err != nil {
		panic(err)
	}
}

// Status returns an ordered snapshot of every field. The snapshot is
// independent of the flow: later mutation does not affect it.
func (f *Flow) Status() []FieldValue {
	out := make([]FieldValue, len(f.fields))
	for i, name := range f.fields {
		out[i] = FieldValue{Name: name, Value: f.values[i]}
	}
	return out
}

// Mutables returns the comparable tuple of raw field values used for change
// detection. It is cheaper than Status because it skips field naming, and it
// is complete: every declared field participates.
func (f *Flow) Mutables() []Value {
	out := make([]Value, len(f.values))
	copy(out, f.values)
	return out
}

// Reset restores all fields to their declared defaults.
func (f *Flow) Reset() {
	copy(f.values, f.defaults)
}

// Copy returns an independent flow with the same fields, defaults and current
// values. The copy shares no mutable state with the original.
func (f *Flow) Copy() *Flow {
	cp := &Flow{
		name:     f.name,
		fields:   f.fields,
		index:    f.index,
		values:   make([]Value, len(f.values)),
		defaults: f.defaults,
	}
	copy(cp.values, f.values)
	return cp
}
