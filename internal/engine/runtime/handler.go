package runtime

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cebartling/otherworlds-rpg/internal/engine/checkpoint"
	"github.com/cebartling/otherworlds-rpg/internal/engine/clock"
	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/random"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store"
	"github.com/cebartling/otherworlds-rpg/internal/platform/id"
	"github.com/cebartling/otherworlds-rpg/internal/platform/telemetry"
)

// Snapshots caches folded state between commands. Optional: when absent the
// handler folds from the journal on every command.
type Snapshots interface {
	GetState(ctx context.Context, aggregateID string) (any, uint64, error)
	SaveState(ctx context.Context, aggregateID string, lastSeq uint64, state any) error
	Invalidate(ctx context.Context, aggregateID string) error
}

// Publisher observes committed events after a successful append. Publication
// failures are the publisher's problem: the write is already durable.
type Publisher interface {
	PublishCommitted(ctx context.Context, events []event.Event)
}

// Handler drives the command cycle against one event store.
type Handler struct {
	Store     store.EventStore
	Registry  *Registry
	Events    *event.Registry
	Clock     clock.Clock
	Random    random.Source
	Snapshots Snapshots
	Publisher Publisher
}

// Result captures the outcome of handling one command.
type Result struct {
	// Events are the appended events with sequence numbers assigned. Empty
	// when the command was rejected.
	Events []event.Event
	// Rejections carry domain-level reasons the command was declined.
	Rejections []command.Rejection
	// NewVersion is the aggregate's stream version after handling.
	NewVersion uint64
	// State is the folded state after applying the new events.
	State any
}

// Rejected reports whether the command was declined.
func (r Result) Rejected() bool {
	return len(r.Rejections) > 0
}

// Handle runs the full cycle for one command: load history, upcast, fold,
// decide, stamp, append. A rejection returns normally with no events and no
// writes. A concurrency conflict surfaces as *store.ConflictError: the
// handler never retries on its own, callers own the retry policy (see Retry).
func (h Handler) Handle(ctx context.Context, cmd command.Command) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "runtime.Handle",
		trace.WithAttributes(
			attribute.String("command.type", string(cmd.Type)),
			attribute.String("aggregate.id", cmd.AggregateID),
		))
	defer span.End()

	if h.Store == nil {
		return Result{}, ErrStoreRequired
	}
	if h.Events == nil {
		return Result{}, ErrEventRegistryRequired
	}
	if h.Registry == nil {
		return Result{}, fmt.Errorf("runtime registry is required")
	}
	if !cmd.Type.IsValid() {
		return Result{}, fmt.Errorf("command type is required")
	}
	if cmd.AggregateID == "" {
		return Result{}, fmt.Errorf("command %s: aggregate id is required", cmd.Type)
	}

	def, ok := h.Registry.Command(cmd.Type)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Type)
	}
	agg, ok := h.Registry.Aggregate(def.Aggregate)
	if !ok {
		return Result{}, fmt.Errorf("command %s: aggregate %s is not registered", cmd.Type, def.Aggregate)
	}

	if cmd.CommandID == "" {
		cmd.CommandID = id.MustNew(id.PrefixCommand)
	}
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = id.MustNew(id.PrefixCorrelation)
	}

	state, version, err := h.loadState(ctx, agg, cmd.AggregateID)
	if err != nil {
		return Result{}, err
	}
	if def.RequiresHistory && version == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrAggregateNotFound, cmd.AggregateID)
	}

	decision := def.Decide(state, cmd, Env{Clock: h.clock(), Random: h.Random})
	if len(decision.Rejections) > 0 {
		span.SetAttributes(attribute.Int("rejection.count", len(decision.Rejections)))
		return Result{Rejections: decision.Rejections, NewVersion: version, State: state}, nil
	}
	if len(decision.Events) == 0 {
		return Result{NewVersion: version, State: state}, nil
	}

	stamped, err := h.stamp(cmd, version, decision.Events)
	if err != nil {
		return Result{}, err
	}

	newVersion, err := h.Store.AppendEvents(ctx, cmd.AggregateID, version, stamped)
	if err != nil {
		if store.IsConflict(err) && h.Snapshots != nil {
			_ = h.Snapshots.Invalidate(ctx, cmd.AggregateID)
		}
		return Result{}, err
	}

	for _, evt := range stamped {
		state, err = agg.Fold(state, evt)
		if err != nil {
			return Result{}, fmt.Errorf("fold appended event %s: %w", evt.Type, err)
		}
	}
	if h.Snapshots != nil {
		if err := h.Snapshots.SaveState(ctx, cmd.AggregateID, newVersion, state); err != nil {
			return Result{}, fmt.Errorf("save snapshot: %w", err)
		}
	}
	if h.Publisher != nil {
		h.Publisher.PublishCommitted(ctx, stamped)
	}

	span.SetAttributes(attribute.Int("event.count", len(stamped)))
	return Result{Events: stamped, NewVersion: newVersion, State: state}, nil
}

// loadState returns folded state and the stream version it covers, from the
// snapshot cache when one exists, otherwise from the full journal.
func (h Handler) loadState(ctx context.Context, agg Aggregate, aggregateID string) (any, uint64, error) {
	if h.Snapshots != nil {
		state, version, err := h.Snapshots.GetState(ctx, aggregateID)
		if err == nil {
			return state, version, nil
		}
	}

	history, err := h.Store.LoadEvents(ctx, aggregateID)
	if err != nil {
		return nil, 0, err
	}

	state := agg.NewState()
	version := uint64(0)
	for _, evt := range history {
		lifted, err := h.Events.Upcast(evt)
		if err != nil {
			return nil, 0, err
		}
		state, err = agg.Fold(state, lifted)
		if err != nil {
			return nil, 0, fmt.Errorf("fold event %s at seq %d: %w", evt.Type, evt.Seq, err)
		}
		version = evt.Seq
	}
	return state, version, nil
}

// stamp fills the envelope of freshly decided events: identity, correlation,
// the causation chain, the injected clock's timestamp, sequence numbers, and
// schema validation. The first event is caused by the command, each later
// event by the one before it.
func (h Handler) stamp(cmd command.Command, version uint64, events []event.Event) ([]event.Event, error) {
	stamped := make([]event.Event, 0, len(events))
	previousEventID := ""
	for i, evt := range events {
		if evt.EventID == "" {
			evt.EventID = id.MustNew(id.PrefixEvent)
		}
		evt.AggregateID = cmd.AggregateID
		evt.Seq = version + uint64(i) + 1
		evt.CorrelationID = cmd.CorrelationID
		if i == 0 {
			evt.CausationID = cmd.CommandID
		} else {
			evt.CausationID = previousEventID
		}
		if evt.OccurredAt.IsZero() {
			evt.OccurredAt = h.clock().Now()
		}

		validated, err := h.Events.ValidateForAppend(evt)
		if err != nil {
			return nil, err
		}
		stamped = append(stamped, validated)
		previousEventID = validated.EventID
	}
	return stamped, nil
}

func (h Handler) clock() clock.Clock {
	if h.Clock != nil {
		return h.Clock
	}
	return clock.System{}
}

// Retry runs do, reloading and re-deciding on a concurrency conflict, up to
// attempts times. Any other error, a rejection, or success returns
// immediately. The last conflict is returned when attempts are exhausted.
func Retry(ctx context.Context, attempts int, do func(context.Context) (Result, error)) (Result, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		result, err := do(ctx)
		if err == nil || !store.IsConflict(err) {
			return result, err
		}
		lastErr = err
	}
	return Result{}, lastErr
}

// compile-time check that the checkpoint cache satisfies Snapshots.
var _ Snapshots = (*checkpoint.Memory)(nil)
