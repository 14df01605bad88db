package simulation

import "math/rand/v2"

// Rand is a source of uniform draws in [0, 1). *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewSeeded returns a reproducible source.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand draws from the runtime's goroutine-safe generator.
func DefaultRand() Rand { return globalRand{} }

// Sequence replays fixed draws in order and then repeats the last one.
// An empty Sequence always returns 0.
type Sequence struct {
	vals []float64
	next int
}

// NewSequence creates a Sequence over vals.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

func (s *Sequence) Float64() float64 {
	if len(s.vals) == 0 {
		return 0
	}
	if s.next >= len(s.vals) {
		return s.vals[len(s.vals)-1]
	}
	v := s.vals[s.next]
	s.next++
	return v
}
