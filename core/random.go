package core

import "math/rand/v2"

// Random is the pluggable source behind every probabilistic decision
// (engagement gate, join coin-flip, fallback template choice). Tests inject
// deterministic implementations.
type Random interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n). n must be > 0.
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) IntN(n int) int   { return rand.IntN(n) }

// NewRandom returns a Random backed by math/rand/v2's global source.
func NewRandom() Random { return globalRandom{} }

// Chance reports true with probability p. p >= 1 always succeeds and p <= 0
// always fails, without consuming randomness.
func Chance(r Random, p float64) bool {
	switch {
	case p >= 1:
		return true
	case p <= 0:
		return false
	}
	if r == nil {
		r = NewRandom()
	}
	return r.Float64() < p
}
