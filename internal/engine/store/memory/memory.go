// Package memory provides an in-memory event store for tests and
// single-process development. It enforces the same contract as the durable
// stores: gapless per-aggregate sequences, expected-version appends, and
// all-or-nothing batches.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store"
)

// Store keeps event streams in process memory.
type Store struct {
	mu       sync.Mutex
	streams  map[string][]event.Event
	eventIDs map[string]struct{}
}

var _ store.EventStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		streams:  make(map[string][]event.Event),
		eventIDs: make(map[string]struct{}),
	}
}

// LoadEvents returns a copy of the aggregate's stream in sequence order.
func (s *Store) LoadEvents(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Infra("load events", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	out := make([]event.Event, len(stream))
	for i, evt := range stream {
		out[i] = cloneEvent(evt)
	}
	return out, nil
}

// cloneEvent copies the envelope including its payload bytes, so callers
// mutating a returned event cannot reach the journal copy.
func cloneEvent(evt event.Event) event.Event {
	cloned := evt
	cloned.PayloadJSON = append([]byte(nil), evt.PayloadJSON...)
	return cloned
}

// AppendEvents appends the batch under the expected-version precondition.
// The batch is checked in full before anything is committed, so a failing
// batch leaves the stream exactly as it was.
func (s *Store) AppendEvents(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.Infra("append events", err)
	}
	if len(events) == 0 {
		return 0, store.ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	actual := uint64(len(stream))
	if actual != expectedVersion {
		return 0, &store.ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
	}

	seen := make(map[string]struct{}, len(events))
	for i, evt := range events {
		if evt.EventID == "" {
			return 0, store.Infra("append events", fmt.Errorf("event %d: event id is required", i))
		}
		if _, dup := seen[evt.EventID]; dup {
			return 0, store.Infra("append events", fmt.Errorf("event %d: duplicate event id %s in batch", i, evt.EventID))
		}
		if _, dup := s.eventIDs[evt.EventID]; dup {
			return 0, store.Infra("append events", fmt.Errorf("event %d: event id %s already persisted", i, evt.EventID))
		}
		seen[evt.EventID] = struct{}{}
	}

	for i, evt := range events {
		evt = cloneEvent(evt)
		evt.Seq = expectedVersion + uint64(i) + 1
		evt.AggregateID = aggregateID
		stream = append(stream, evt)
		s.eventIDs[evt.EventID] = struct{}{}
	}
	s.streams[aggregateID] = stream

	return uint64(len(stream)), nil
}

// ListEvents returns up to limit events with sequence numbers greater than
// afterSeq, in ascending order.
func (s *Store) ListEvents(ctx context.Context, aggregateID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Infra("list events", err)
	}
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.Event
	for _, evt := range s.streams[aggregateID] {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, cloneEvent(evt))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
