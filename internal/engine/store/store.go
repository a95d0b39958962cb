// Package store defines the append-only event store contract shared by the
// memory, sqlite, and postgres implementations.
//
// The event log is the only shared mutable resource in the engine. Nothing
// read-modify-writes it without the expected-version precondition, and a
// batch append is all-or-nothing: partial writes must never be observable.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

// EventStore persists and loads ordered event streams per aggregate.
type EventStore interface {
	// LoadEvents returns all events for the aggregate in ascending sequence
	// order. An aggregate that has never been written yields an empty slice,
	// not an error.
	LoadEvents(ctx context.Context, aggregateID string) ([]event.Event, error)

	// AppendEvents atomically assigns sequence numbers
	// expectedVersion+1..expectedVersion+len(events) and persists the batch,
	// but only if the aggregate's current highest sequence number equals
	// expectedVersion at commit time. On a lost race it fails with a
	// *ConflictError and persists nothing. The batch must be non-empty.
	AppendEvents(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) (newVersion uint64, err error)
}

// ErrEmptyBatch indicates an append was called with no events.
var ErrEmptyBatch = errors.New("append requires at least one event")

// ConflictError indicates another writer advanced the aggregate between the
// caller's load and append. Recoverable by reloading and re-deciding.
type ConflictError struct {
	AggregateID string
	Expected    uint64
	Actual      uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, found %d", e.AggregateID, e.Expected, e.Actual)
}

// IsConflict reports whether err is a concurrency conflict.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// InfrastructureError indicates a storage failure unrelated to domain state.
// Callers may treat it as transient; the store itself never retries.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error: %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Infra wraps a storage failure with the operation that hit it.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Op: op, Err: err}
}

// IsInfrastructure reports whether err is a storage failure.
func IsInfrastructure(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra)
}
