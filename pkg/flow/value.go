package flow

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the type of a field value.
type ValueKind uint8

const (
	KindNumber ValueKind = iota
	KindLabel
)

// Value is a typed field value. It is a comparable struct so that tuples of
// values can be checked for equality with ==, which is what makes Mutables
// comparisons cheap.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Number wraps a float64 as a Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Label wraps a categorical string as a Value.
func Label(s string) Value { return Value{kind: KindLabel, str: s} }

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// Num returns the numeric payload (0 for labels).
func (v Value) Num() float64 { return v.num }

// Str returns the label payload ("" for numbers).
func (v Value) Str() string { return v.str }

// String renders the value for tables and logs.
func (v Value) String() string {
	if v.kind == KindLabel {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

type valueJSON struct {
	Kind string   `json:"kind"`
	Num  *float64 `json:"num,omitempty"`
	Str  *string  `json:"str,omitempty"`
}

// MarshalJSON encodes the value with an explicit kind tag so labels and
// numbers round-trip without ambiguity.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindLabel {
		return json.Marshal(valueJSON{Kind: "label", Str: &v.str})
	}
	return json.Marshal(valueJSON{Kind: "number", Num: &v.num})
}

// UnmarshalJSON decodes a value written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "label":
		if raw.Str == nil {
			return fmt.Errorf("label value missing str payload")
		}
		*v = Label(*raw.Str)
	case "number":
		if raw.Num == nil {
			return fmt.Errorf("number value missing num payload")
		}
		*v = Number(*raw.Num)
	default:
		return fmt.Errorf("unknown value kind %q", raw.Kind)
	}
	return nil
}

// EqualMutables reports whether two mutable-state tuples are identical. This
// is the only change signal the propagation engine uses; a difference in any
// single field marks the whole tuple as changed.
func EqualMutables(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
