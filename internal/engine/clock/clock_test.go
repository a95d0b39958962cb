package clock

import (
	"testing"
	"time"
)

func TestSystemTruncatesToMillis(t *testing.T) {
	now := System{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
	if now.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("expected millisecond precision, got %dns", now.Nanosecond())
	}
}

func TestFixedReturnsSameInstant(t *testing.T) {
	instant := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	c := Fixed{Time: instant}
	for i := 0; i < 3; i++ {
		if got := c.Now(); !got.Equal(instant) {
			t.Fatalf("call %d: expected %v, got %v", i, instant, got)
		}
	}
}

func TestSequenceReturnsRecordedInstantsInOrder(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	c := NewSequence(first, second)

	if got := c.Now(); !got.Equal(first) {
		t.Fatalf("expected first instant, got %v", got)
	}
	if got := c.Now(); !got.Equal(second) {
		t.Fatalf("expected second instant, got %v", got)
	}
	// Exhausted recordings repeat the final instant.
	if got := c.Now(); !got.Equal(second) {
		t.Fatalf("expected final instant after exhaustion, got %v", got)
	}
}

func TestSequenceEmpty(t *testing.T) {
	c := NewSequence()
	if got := c.Now(); !got.IsZero() {
		t.Fatalf("expected zero time from empty sequence, got %v", got)
	}
}
