// Package random abstracts pseudo-random draws for deterministic command
// handling.
//
// A Source constructed from a seed produces the same sequence of values for
// the same call sequence, which is what makes skill checks and other
// probability-bearing mechanics replayable. Identity values (event ids and
// friends) are generated elsewhere and never pass through this seam.
package random

import (
	"math/rand"
	"sync"
)

// Source supplies deterministic pseudo-random draws.
type Source interface {
	// IntBetween returns a value in [min, max] inclusive.
	IntBetween(min, max int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// Seeded is a Source backed by math/rand with an explicit seed. The same
// seed and call sequence always produce the same draws.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded creates a seeded source.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewSource(seed))}
}

// IntBetween returns a value in [min, max] inclusive. Reversed bounds are
// swapped rather than rejected so deciders never have to special-case them.
func (s *Seeded) IntBetween(min, max int) int {
	if min > max {
		min, max = max, min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Intn(max-min+1)
}

// Float64 returns a value in [0.0, 1.0).
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Sequence replays a pre-recorded series of integer draws, one per
// IntBetween call, in call order. Draws outside [min, max] are clamped so a
// recording made against different bounds still yields a legal value.
type Sequence struct {
	mu     sync.Mutex
	values []int
	index  int
}

// NewSequence creates a sequence source over the given draws.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

// IntBetween returns the next recorded draw clamped to [min, max]. When the
// recording is exhausted it keeps returning the final draw.
func (s *Sequence) IntBetween(min, max int) int {
	if min > max {
		min, max = max, min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return min
	}
	v := s.values[s.index]
	if s.index < len(s.values)-1 {
		s.index++
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Float64 returns the next recorded draw scaled into [0.0, 1.0) assuming a
// 0-99 recording range.
func (s *Sequence) Float64() float64 {
	return float64(s.IntBetween(0, 99)) / 100.0
}
