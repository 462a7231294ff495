// Package prng implements the minimal standard Park-Miller linear
// congruential generator used by the daily assignment lottery. Identical
// seeds produce identical draw sequences on every platform and across
// restarts, so assignment and canary selection can be reproduced from the
// locked roster alone.
package prng

const (
	modulus    = 2147483647
	multiplier = 16807
)

// Source is a deterministic generator. It is not safe for concurrent use.
type Source struct {
	state uint64
}

// New returns a Source seeded with seed. Zero is a fixed point of the
// generator, so a zero seed is replaced with 1.
func New(seed uint32) *Source {
	s := uint64(seed) % modulus
	if s == 0 {
		s = 1
	}
	return &Source{state: s}
}

// Float64 advances the generator and returns a value in (0, 1).
func (s *Source) Float64() float64 {
	s.state = s.state * multiplier % modulus
	return float64(s.state) / modulus
}

// Intn advances the generator and returns an integer in [0, n). It panics
// when n is not positive.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("prng: Intn called with non-positive n")
	}
	return int(s.Float64() * float64(n))
}
