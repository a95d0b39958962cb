// Package checkpoint caches folded aggregate state between commands. The
// cache is a performance layer only: every append still carries the
// expected-version precondition, so a stale snapshot costs a conflict and a
// reload, never a correctness violation.
package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cebartling/otherworlds-rpg/internal/engine/replay"
)

var (
	// ErrAggregateIDRequired indicates a missing aggregate id.
	ErrAggregateIDRequired = errors.New("aggregate id is required")
)

// Cloner lets state types control how snapshots are copied. States that are
// plain values need not implement it; states holding maps or slices should,
// so a cached snapshot cannot alias live state.
type Cloner interface {
	CloneState() any
}

// Memory stores replay cursors and state snapshots in memory.
type Memory struct {
	mu      sync.Mutex
	cursors map[string]replay.Cursor
	states  map[string]any
}

var _ replay.CursorStore = (*Memory)(nil)

// NewMemory creates a new in-memory checkpoint store.
func NewMemory() *Memory {
	return &Memory{
		cursors: make(map[string]replay.Cursor),
		states:  make(map[string]any),
	}
}

// Position returns the saved replay cursor for a stream.
func (m *Memory) Position(ctx context.Context, streamID string) (replay.Cursor, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return replay.Cursor{}, err
		}
	}
	if m == nil {
		return replay.Cursor{}, errors.New("checkpoint store is required")
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return replay.Cursor{}, replay.ErrStreamIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cursor, ok := m.cursors[streamID]
	if !ok {
		return replay.Cursor{}, replay.ErrNoCursor
	}
	return cursor, nil
}

// Advance persists a replay cursor.
func (m *Memory) Advance(ctx context.Context, cursor replay.Cursor) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	streamID := strings.TrimSpace(cursor.StreamID)
	if streamID == "" {
		return replay.ErrStreamIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cursor.StreamID = streamID
	m.cursors[streamID] = cursor
	return nil
}

// GetState retrieves a state snapshot and the version it was folded at.
func (m *Memory) GetState(ctx context.Context, aggregateID string) (any, uint64, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
	}
	if m == nil {
		return nil, 0, errors.New("checkpoint store is required")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return nil, 0, ErrAggregateIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.states[aggregateID]
	if !ok {
		return nil, 0, replay.ErrNoCursor
	}
	cursor, ok := m.cursors[aggregateID]
	if !ok {
		return nil, 0, replay.ErrNoCursor
	}

	return cloneSnapshotState(snapshot), cursor.Position, nil
}

// SaveState persists a state snapshot folded at the given version.
func (m *Memory) SaveState(ctx context.Context, aggregateID string, lastSeq uint64, state any) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return ErrAggregateIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[aggregateID] = cloneSnapshotState(state)
	m.cursors[aggregateID] = replay.Cursor{
		StreamID:  aggregateID,
		Position:  lastSeq,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Invalidate drops the cached snapshot for an aggregate. Called after a
// concurrency conflict so the next command reloads from the journal.
func (m *Memory) Invalidate(ctx context.Context, aggregateID string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return ErrAggregateIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, aggregateID)
	delete(m.cursors, aggregateID)
	return nil
}

func cloneSnapshotState(state any) any {
	if cloner, ok := state.(Cloner); ok {
		return cloner.CloneState()
	}
	return state
}
