package scenario

import (
	"reflect"
	"testing"
)

func TestTimeKey(t *testing.T) {
	tests := []struct {
		t    float64
		want string
	}{
		{5, "t5"},
		{0, "t0"},
		{1.5, "t1p5"},
		{0.25, "t0p25"},
		{100, "t100"},
	}
	for _, tc := range tests {
		if got := TimeKey(tc.t); got != tc.want {
			t.Errorf("TimeKey(%g) = %q, want %q", tc.t, got, tc.want)
		}
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name   string
		faults []Fault
		t      float64
		want   string
	}{
		{
			name:   "single fault",
			faults: []Fault{{Block: "pump", Mode: "short"}},
			t:      5,
			want:   "pump_short_t5",
		},
		{
			name: "joint fault keeps insertion order",
			faults: []Fault{
				{Block: "valve", Mode: "stuck_open"},
				{Block: "pump", Mode: "short"},
			},
			t:    2.5,
			want: "valve_stuck_open_pump_short_t2p5",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Name(tc.faults, tc.t); got != tc.want {
				t.Errorf("Name = %q, want %q", got, tc.want)
			}
			// Identical inputs always produce identical names.
			if again := Name(tc.faults, tc.t); again != tc.want {
				t.Errorf("Name not deterministic: %q then %q", tc.want, again)
			}
		})
	}
}

func TestNominal(t *testing.T) {
	s := Nominal()
	if s.Name != "nominal" || s.Rate != 1.0 {
		t.Errorf("Nominal = %+v", s)
	}
	if len(s.Times()) != 0 {
		t.Errorf("nominal scenario has injections: %v", s.Times())
	}
	if _, ok := s.At(0); ok {
		t.Error("nominal scenario injects at t=0")
	}
}

func TestSingleFault(t *testing.T) {
	s := SingleFault("pump", "short", 5, 1.1e-4)

	if s.Name != "pump_short_t5" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Rate != 1.1e-4 || s.Time != 5 {
		t.Errorf("Rate = %g, Time = %g", s.Rate, s.Time)
	}
	if !reflect.DeepEqual(s.Times(), []float64{5}) {
		t.Errorf("Times = %v", s.Times())
	}
	inj, ok := s.At(5)
	if !ok {
		t.Fatal("no injection at t=5")
	}
	if !reflect.DeepEqual(inj.Faults, map[string][]string{"pump": {"short"}}) {
		t.Errorf("Faults = %v", inj.Faults)
	}
	if _, ok := s.At(6); ok {
		t.Error("unexpected injection at t=6")
	}
}

func TestJointFault(t *testing.T) {
	s := JointFault(3, 2e-9,
		Fault{Block: "pump", Mode: "short"},
		Fault{Block: "pump", Mode: "jam"},
		Fault{Block: "valve", Mode: "stuck_open"},
	)
	if s.Name != "pump_short_pump_jam_valve_stuck_open_t3" {
		t.Errorf("Name = %q", s.Name)
	}
	inj, ok := s.At(3)
	if !ok {
		t.Fatal("no injection at t=3")
	}
	want := map[string][]string{
		"pump":  {"short", "jam"},
		"valve": {"stuck_open"},
	}
	if !reflect.DeepEqual(inj.Faults, want) {
		t.Errorf("Faults = %v, want %v", inj.Faults, want)
	}
}

func TestInjectionIsolation(t *testing.T) {
	// Mutating a returned injection must not leak back into the scenario.
	s := SingleFault("pump", "short", 5, 1)
	inj, _ := s.At(5)
	inj.Faults["pump"][0] = "mangled"
	inj.Faults["extra"] = []string{"x"}

	again, _ := s.At(5)
	if !reflect.DeepEqual(again.Faults, map[string][]string{"pump": {"short"}}) {
		t.Errorf("scenario mutated through returned injection: %v", again.Faults)
	}
}

func TestNewCopiesSequence(t *testing.T) {
	seq := map[float64]Injection{
		1: {Faults: map[string][]string{"pump": {"short"}}},
		4: {Disturbances: map[string]float64{"flows.w1.pressure": 0}},
	}
	s := New("custom", 0.5, 1, []Fault{{Block: "pump", Mode: "short"}}, seq)

	if !reflect.DeepEqual(s.Times(), []float64{1, 4}) {
		t.Errorf("Times = %v", s.Times())
	}

	// Later mutation of the input map must not affect the scenario.
	seq[1].Faults["pump"][0] = "mangled"
	delete(seq, 4)
	inj, ok := s.At(1)
	if !ok || inj.Faults["pump"][0] != "short" {
		t.Errorf("scenario shares state with input sequence: %v", inj.Faults)
	}
	if _, ok := s.At(4); !ok {
		t.Error("injection at t=4 lost after input mutation")
	}

	dist, _ := s.At(4)
	if dist.Disturbances["flows.w1.pressure"] != 0 {
		t.Errorf("Disturbances = %v", dist.Disturbances)
	}
}

func TestCombineRates(t *testing.T) {
	tests := []struct {
		name   string
		policy RatePolicy
		rates  []float64
		base   float64
		pcond  float64
		want   float64
	}{
		{"independent product", RateIndependent, []float64{0.5, 0.25}, 0, 0, 0.125},
		{"independent single", RateIndependent, []float64{5e-4}, 0, 0, 5e-4},
		{"max of three", RateMax, []float64{1e-5, 9e-5, 4e-5}, 0, 0, 9e-5},
		{"base times pcond", RateBase, []float64{1e-5, 2e-5}, 0.5, 0.25, 0.125},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CombineRates(tc.policy, tc.rates, tc.base, tc.pcond)
			if err != nil {
				t.Fatalf("CombineRates: %v", err)
			}
			if got != tc.want {
				t.Errorf("CombineRates = %g, want %g", got, tc.want)
			}
		})
	}
}

func TestCombineRatesErrors(t *testing.T) {
	if _, err := CombineRates(RateIndependent, nil, 0, 0); err == nil {
		t.Error("empty rates succeeded, want error")
	}
	if _, err := CombineRates(RatePolicy("geometric"), []float64{1e-5}, 0, 0); err == nil {
		t.Error("unknown policy succeeded, want error")
	}
}
