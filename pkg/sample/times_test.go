package sample

import (
	"math"
	"testing"
)

func floatsEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestSampleTimesEven(t *testing.T) {
	tests := []struct {
		name        string
		times       []float64
		n           int
		dt          float64
		wantTimes   []float64
		wantWeights []float64
	}{
		{
			name:        "two interior points of five",
			times:       []float64{0, 1, 2, 3, 4},
			n:           2,
			dt:          1,
			wantTimes:   []float64{1, 3},
			wantWeights: []float64{0.5, 0.5},
		},
		{
			name:        "single midpoint",
			times:       []float64{0, 1, 2, 3, 4},
			n:           1,
			dt:          1,
			wantTimes:   []float64{2},
			wantWeights: []float64{1},
		},
		{
			name:        "too few candidates falls back to all",
			times:       []float64{0, 1, 2},
			n:           5,
			dt:          1,
			wantTimes:   []float64{0, 1, 2},
			wantWeights: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		},
		{
			name:        "points snap to the dt grid",
			times:       []float64{0, 0.5, 1, 1.5, 2},
			n:           2,
			dt:          0.5,
			wantTimes:   []float64{0.5, 1.5},
			wantWeights: []float64{0.5, 0.5},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotTimes, gotWeights, err := SampleTimesEven(tc.times, tc.n, tc.dt)
			if err != nil {
				t.Fatalf("SampleTimesEven: %v", err)
			}
			if !floatsEqual(gotTimes, tc.wantTimes, 1e-12) {
				t.Errorf("times = %v, want %v", gotTimes, tc.wantTimes)
			}
			if !floatsEqual(gotWeights, tc.wantWeights, 1e-12) {
				t.Errorf("weights = %v, want %v", gotWeights, tc.wantWeights)
			}
		})
	}
}

func TestSampleTimesEvenErrors(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		n     int
		dt    float64
	}{
		{"no candidates", nil, 2, 1},
		{"zero points", []float64{0, 1, 2}, 0, 1},
		{"zero dt", []float64{0, 1, 2}, 1, 0},
		{"negative dt", []float64{0, 1, 2}, 1, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := SampleTimesEven(tc.times, tc.n, tc.dt); err == nil {
				t.Errorf("SampleTimesEven(%v, %d, %g) succeeded, want error", tc.times, tc.n, tc.dt)
			}
		})
	}
}

func TestSampleTimesQuad(t *testing.T) {
	tests := []struct {
		name        string
		times       []float64
		nodes       []float64
		weights     []float64
		wantTimes   []float64
		wantWeights []float64
	}{
		{
			name:        "two point gauss",
			times:       []float64{0, 1, 2, 3, 4},
			nodes:       []float64{-0.5, 0.5},
			weights:     []float64{0.5, 0.5},
			wantTimes:   []float64{1, 3},
			wantWeights: []float64{0.5, 0.5},
		},
		{
			name:        "weights normalize to unit mass",
			times:       []float64{0, 1, 2, 3, 4},
			nodes:       []float64{-0.5, 0.5},
			weights:     []float64{1, 1},
			wantTimes:   []float64{1, 3},
			wantWeights: []float64{0.5, 0.5},
		},
		{
			name:        "asymmetric weights keep their ratio",
			times:       []float64{0, 1, 2, 3, 4},
			nodes:       []float64{0},
			weights:     []float64{2},
			wantTimes:   []float64{2},
			wantWeights: []float64{1},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotTimes, gotWeights, err := SampleTimesQuad(tc.times, tc.nodes, tc.weights)
			if err != nil {
				t.Fatalf("SampleTimesQuad: %v", err)
			}
			if !floatsEqual(gotTimes, tc.wantTimes, 1e-12) {
				t.Errorf("times = %v, want %v", gotTimes, tc.wantTimes)
			}
			if !floatsEqual(gotWeights, tc.wantWeights, 1e-12) {
				t.Errorf("weights = %v, want %v", gotWeights, tc.wantWeights)
			}
		})
	}
}

func TestSampleTimesQuadErrors(t *testing.T) {
	tests := []struct {
		name    string
		times   []float64
		nodes   []float64
		weights []float64
	}{
		{"no candidates", nil, []float64{0}, []float64{1}},
		{"mismatched lengths", []float64{0, 1, 2}, []float64{0}, []float64{1, 1}},
		{"more nodes than times", []float64{0, 1}, []float64{-0.5, 0, 0.5}, []float64{1, 1, 1}},
		{"node out of range", []float64{0, 1, 2}, []float64{1.5}, []float64{1}},
		{"zero weight mass", []float64{0, 1, 2}, []float64{0}, []float64{0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := SampleTimesQuad(tc.times, tc.nodes, tc.weights); err == nil {
				t.Errorf("SampleTimesQuad(%v, %v, %v) succeeded, want error", tc.times, tc.nodes, tc.weights)
			}
		})
	}
}
