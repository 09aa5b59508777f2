package block

import (
	"hash/fnv"
	"math/rand"
)

// Rand is the explicit pseudo-random state carried by a model and by each of
// its blocks. Block seeds are derived deterministically from the model seed
// and the block name, so re-running with the same model seed reproduces every
// stochastic choice.
type Rand struct {
	seed int64
	rng  *rand.Rand

	// Stochastic selects whether stochastic behaviors actually draw from the
	// generator or take their deterministic defaults.
	Stochastic bool
}

// NewRand builds a random container with the given seed.
func NewRand(seed int64) *Rand {
	return &Rand{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the current seed.
func (r *Rand) Seed() int64 { return r.seed }

// UpdateSeed reseeds the container and restarts its stream.
func (r *Rand) UpdateSeed(seed int64) {
	r.seed = seed
	r.rng = rand.New(rand.NewSource(seed))
}

// DeriveSeed produces the seed a named sub-object (block, component) should
// use under this container's seed. The derivation is a pure function of
// (seed, name).
func (r *Rand) DeriveSeed(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return r.seed ^ int64(h.Sum64())
}

// Rng exposes the underlying generator for stochastic behaviors.
func (r *Rand) Rng() *rand.Rand { return r.rng }

// Reset restarts the random stream from the seed.
func (r *Rand) Reset() {
	r.rng = rand.New(rand.NewSource(r.seed))
}

// Copy returns an independent container starting a fresh stream from the
// same seed.
func (r *Rand) Copy() *Rand {
	cp := NewRand(r.seed)
	cp.Stochastic = r.Stochastic
	return cp
}
