// Package clock abstracts time for deterministic command handling.
//
// Every timestamp that reaches an event or a validation decision comes from
// an injected Clock; no engine code reads the ambient system clock directly.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System reads the real system clock, truncated to millisecond precision in
// UTC so persisted timestamps round-trip through every store identically.
type System struct{}

// Now returns the current UTC time at millisecond precision.
func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Fixed always returns the same instant.
type Fixed struct {
	Time time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.Time.UTC().Truncate(time.Millisecond)
}

// Sequence returns pre-recorded instants, one per call, in call order. When
// the recording is exhausted it keeps returning the final instant, so a
// replay that issues more reads than the recording does not panic mid-fold.
type Sequence struct {
	mu    sync.Mutex
	times []time.Time
	index int
}

// NewSequence creates a sequence clock over the given instants.
func NewSequence(times ...time.Time) *Sequence {
	return &Sequence{times: times}
}

// Now returns the next recorded instant.
func (s *Sequence) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.times) == 0 {
		return time.Time{}
	}
	t := s.times[s.index]
	if s.index < len(s.times)-1 {
		s.index++
	}
	return t.UTC().Truncate(time.Millisecond)
}
