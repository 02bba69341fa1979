package deck

import "math/rand/v2"

// RNG abstracts random number generation for deterministic testing.
// Implementations shared between goroutines must be safe for concurrent use.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
	// Float64 returns a random float in [0.0, 1.0).
	Float64() float64
}

// stdRNG delegates to math/rand/v2 (auto-seeded, safe for concurrent use).
type stdRNG struct{}

func (stdRNG) Intn(n int) int    { return rand.IntN(n) }
func (stdRNG) Float64() float64 { return rand.Float64() }

// DefaultRNG returns the process-wide random source.
func DefaultRNG() RNG { return stdRNG{} }
