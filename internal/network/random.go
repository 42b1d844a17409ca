package network

import (
	"math/rand/v2"
	"time"
)

// RandomSource supplies the randomness topology generation consumes.
// Implementations need not be safe for concurrent use.
type RandomSource interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n is always positive.
	IntN(n int) int
}

// NewSeededSource returns a reproducible PCG-backed source.
// The same seed always yields the same topology.
func NewSeededSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSource returns a source seeded from the wall clock.
func NewSource() RandomSource {
	return NewSeededSource(uint64(time.Now().UnixNano()))
}
