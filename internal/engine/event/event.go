// Package event defines the immutable domain event envelope and the
// registry of event types the runtime understands.
package event

import (
	"strings"
	"time"
)

// Type identifies the type of a domain event, e.g. "narrative.beat_advanced".
type Type string

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Context returns the bounded-context prefix of the event type
// (e.g. "narrative", "worldstate").
func (t Type) Context() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Event is an immutable fact recorded in an aggregate's stream.
type Event struct {
	// EventID is globally unique, assigned at creation, never reused.
	EventID string
	// AggregateID identifies the owning aggregate instance.
	AggregateID string
	// Seq is the sequence number within the aggregate stream (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Type identifies the kind of event.
	Type Type
	// PayloadVersion is the schema version of PayloadJSON for this type.
	PayloadVersion int
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
	// CorrelationID identifies the causal chain started by one external
	// request; every event the chain produces shares it.
	CorrelationID string
	// CausationID identifies the immediate cause: the command for the first
	// event it produces, the preceding event for multi-event chains.
	CausationID string
	// OccurredAt is the timestamp from the injected clock, not wall-clock.
	OccurredAt time.Time
}
