// Package sample generates weighted fault scenarios from a model: a
// FaultDomain catalogs the injectable (block, mode) pairs, a FaultSample
// turns a domain plus a timing policy into concrete scenarios, and a
// SampleApproach aggregates several samples over one model.
package sample

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// quantile computes the q-quantile of times by linear interpolation between
// order statistics.
func quantile(times []float64, q float64) float64 {
	sorted := make([]float64, len(times))
	copy(sorted, times)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SampleTimesEven picks n interior quantile points of the candidate times,
// excluding the extremes, each carrying weight 1/n. The points are rounded
// onto the dt time grid. When n+2 exceeds the number of candidates, every
// candidate time is used instead.
func SampleTimesEven(times []float64, n int, dt float64) ([]float64, []float64, error) {
	if len(times) == 0 {
		return nil, nil, simerr.Config("sample", "even", "no candidate times")
	}
	if n < 1 {
		return nil, nil, simerr.Config("sample", "even", "need at least one point, got %d", n)
	}
	if dt <= 0 {
		return nil, nil, simerr.Config("sample", "even", "non-positive dt %g", dt)
	}
	var sampleTimes []float64
	if n+2 > len(times) {
		sampleTimes = append(sampleTimes, times...)
	} else {
		for p := 1; p <= n; p++ {
			pt := quantile(times, float64(p)/float64(n+1))
			sampleTimes = append(sampleTimes, math.Round(pt/dt)*dt)
		}
	}
	weights := make([]float64, len(sampleTimes))
	for i := range weights {
		weights[i] = 1 / float64(len(sampleTimes))
	}
	return sampleTimes, weights, nil
}

// SampleTimesQuad maps quadrature nodes in [-1, 1] onto quantiles of the
// candidate times (node/2 + 0.5), rounding to the nearest candidate, with
// the quadrature weights normalized to sum to 1. More nodes than candidate
// times is a fatal sampling error.
func SampleTimesQuad(times, nodes, weights []float64) ([]float64, []float64, error) {
	if len(times) == 0 {
		return nil, nil, simerr.Config("sample", "quad", "no candidate times")
	}
	if len(nodes) != len(weights) {
		return nil, nil, simerr.Config("sample", "quad", "%d nodes but %d weights", len(nodes), len(weights))
	}
	if len(nodes) > len(times) {
		return nil, nil, simerr.Config("sample", "quad", "%d nodes for %d candidate times", len(nodes), len(times))
	}
	var total float64
	for i, node := range nodes {
		if node < -1 || node > 1 {
			return nil, nil, simerr.Config("sample", "quad", "node %g outside [-1, 1]", node)
		}
		total += weights[i]
	}
	if total <= 0 {
		return nil, nil, simerr.Config("sample", "quad", "weights sum to %g", total)
	}
	sampleTimes := make([]float64, len(nodes))
	outWeights := make([]float64, len(weights))
	for i, node := range nodes {
		q := node/2 + 0.5
		sampleTimes[i] = math.Round(quantile(times, q))
		outWeights[i] = weights[i] / total
	}
	return sampleTimes, outWeights, nil
}
