// Package replay folds a persisted stream back into state, page by page.
//
// A stream here is whatever the journal keys events by: a scene, a world,
// a resolution, or a saved campaign run. Replays can resume from a cursor,
// so projections and long archive reads pick up where they stopped instead
// of re-folding from the first beat.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

const defaultPageSize = 200

var (
	// ErrListerRequired indicates a missing event source.
	ErrListerRequired = errors.New("event lister is required")
	// ErrApplierRequired indicates a missing applier.
	ErrApplierRequired = errors.New("applier is required")
	// ErrStreamIDRequired indicates a missing stream id.
	ErrStreamIDRequired = errors.New("stream id is required")
	// ErrNoCursor indicates a stream that has never been replayed.
	ErrNoCursor = errors.New("no cursor for stream")
)

// EventLister pages a stream's events in sequence order.
type EventLister interface {
	ListEvents(ctx context.Context, streamID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// Cursor marks how far into a stream a replay has folded.
type Cursor struct {
	StreamID  string
	Position  uint64
	UpdatedAt time.Time
}

// CursorStore persists replay cursors between runs. Position returns
// ErrNoCursor for streams that have never been replayed.
type CursorStore interface {
	Position(ctx context.Context, streamID string) (Cursor, error)
	Advance(ctx context.Context, cursor Cursor) error
}

// Applier folds one event into state.
type Applier interface {
	Apply(state any, evt event.Event) (any, error)
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(state any, evt event.Event) (any, error)

// Apply calls the wrapped function.
func (f ApplierFunc) Apply(state any, evt event.Event) (any, error) {
	return f(state, evt)
}

// Options bound a single replay run.
type Options struct {
	// FromSeq skips events at or below this sequence. A saved cursor
	// further along wins over FromSeq.
	FromSeq uint64
	// UntilSeq stops the replay after this sequence; zero means the
	// whole stream.
	UntilSeq uint64
	PageSize int
}

// Result reports where a replay run ended.
type Result struct {
	State    any
	Position uint64
	Applied  int
}

// Replayer folds a stream back into state.
type Replayer struct {
	Events EventLister
	// Cursors is optional. When nil the replay starts from the
	// beginning every time and persists nothing.
	Cursors CursorStore
	Applier Applier
}

// Run replays streamID onto state in sequence order. The cursor advances
// once per page, so an interrupted run re-folds at most one page. A hole
// in the sequence aborts the run: streams are gapless by construction, so
// a gap means corrupt or partially-visible storage, never something to
// skip over.
func (r Replayer) Run(ctx context.Context, streamID string, state any, opts Options) (Result, error) {
	if r.Events == nil {
		return Result{}, ErrListerRequired
	}
	if r.Applier == nil {
		return Result{}, ErrApplierRequired
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return Result{}, ErrStreamIDRequired
	}

	start := opts.FromSeq
	if r.Cursors != nil {
		cursor, err := r.Cursors.Position(ctx, streamID)
		switch {
		case err == nil:
			if cursor.Position > start {
				start = cursor.Position
			}
		case errors.Is(err, ErrNoCursor):
		default:
			return Result{}, err
		}
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, Position: start}
	for {
		page, err := r.Events.ListEvents(ctx, streamID, result.Position, pageSize)
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			return result, nil
		}
		for _, evt := range page {
			if opts.UntilSeq > 0 && evt.Seq > opts.UntilSeq {
				return result, r.advance(ctx, streamID, result.Position)
			}
			want := result.Position + 1
			if evt.Seq != want {
				return result, fmt.Errorf("stream %s sequence gap: want %d, found %d", streamID, want, evt.Seq)
			}
			next, err := r.Applier.Apply(result.State, evt)
			if err != nil {
				return result, err
			}
			result.State = next
			result.Position = evt.Seq
			result.Applied++
		}
		if err := r.advance(ctx, streamID, result.Position); err != nil {
			return result, err
		}
	}
}

func (r Replayer) advance(ctx context.Context, streamID string, position uint64) error {
	if r.Cursors == nil || position == 0 {
		return nil
	}
	return r.Cursors.Advance(ctx, Cursor{
		StreamID:  streamID,
		Position:  position,
		UpdatedAt: time.Now().UTC(),
	})
}
