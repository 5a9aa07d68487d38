package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
)

// Random walk parameters.
const (
	SimStart    = 22.0
	SimMin      = 18.0
	SimMax      = 25.0
	SimMaxDelta = 0.2
)

// Simulated is a bounded random walk used when no hardware is present and as
// the per-call substitute when a hardware read fails.
type Simulated struct {
	mu   sync.Mutex
	last float64
	rnd  func() float64
}

// NewSimulated starts a walk at SimStart.
func NewSimulated() *Simulated {
	return NewSimulatedWithRand(SimStart, rand.Float64)
}

// NewSimulatedWithRand starts a walk at start using rnd, which must return
// values in [0, 1).
func NewSimulatedWithRand(start float64, rnd func() float64) *Simulated {
	return &Simulated{last: start, rnd: rnd}
}

// Mode returns SourceSimulated.
func (s *Simulated) Mode() string {
	return SourceSimulated
}

// Read advances the walk by a uniform step in [-SimMaxDelta, SimMaxDelta],
// clamps it to [SimMin, SimMax] and rounds to one decimal.
func (s *Simulated) Read(_ context.Context) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.last + (s.rnd()*2-1)*SimMaxDelta
	v = math.Max(SimMin, math.Min(SimMax, v))
	v = math.Round(v*10) / 10
	s.last = v

	return Reading{Celsius: v, OK: true, Source: SourceSimulated}
}
