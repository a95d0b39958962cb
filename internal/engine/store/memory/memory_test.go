package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store"
)

func testEvent(id string, typ event.Type) event.Event {
	return event.Event{
		EventID:       id,
		Type:          typ,
		PayloadJSON:   []byte(`{}`),
		CorrelationID: "cor-test",
		CausationID:   "cmd-test",
		OccurredAt:    time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestLoadEventsUnknownAggregateIsEmpty(t *testing.T) {
	s := New()
	events, err := s.LoadEvents(context.Background(), "agg-missing")
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty stream, got %d events", len(events))
	}
}

func TestAppendAssignsGaplessSequence(t *testing.T) {
	s := New()
	ctx := context.Background()

	version, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{
		testEvent("ev-1", "narrative.scene_started"),
		testEvent("ev-2", "narrative.beat_advanced"),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected new version 2, got %d", version)
	}

	version, err = s.AppendEvents(ctx, "agg-1", 2, []event.Event{testEvent("ev-3", "narrative.beat_advanced")})
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected new version 3, got %d", version)
	}

	events, err := s.LoadEvents(ctx, "agg-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i, evt := range events {
		if evt.Seq != uint64(i)+1 {
			t.Fatalf("event %d: expected seq %d, got %d", i, i+1, evt.Seq)
		}
		if evt.AggregateID != "agg-1" {
			t.Fatalf("event %d: expected aggregate id stamped, got %q", i, evt.AggregateID)
		}
	}
}

func TestAppendStaleVersionConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{testEvent("ev-1", "narrative.scene_started")}); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{testEvent("ev-2", "narrative.beat_advanced")})
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Fatalf("expected conflict{0,1}, got {%d,%d}", conflict.Expected, conflict.Actual)
	}

	events, _ := s.LoadEvents(ctx, "agg-1")
	if len(events) != 1 {
		t.Fatalf("conflicting append must persist nothing, found %d events", len(events))
	}
}

func TestConcurrentAppendsExactlyOneWinner(t *testing.T) {
	s := New()
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AppendEvents(ctx, "agg-race", 0, []event.Event{
				testEvent(fmt.Sprintf("ev-%d", i), "narrative.scene_started"),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !store.IsConflict(err) {
			t.Fatalf("expected conflict for losers, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	events, _ := s.LoadEvents(ctx, "agg-race")
	if len(events) != 1 || events[0].Seq != 1 {
		t.Fatalf("expected single event at seq 1, got %d events", len(events))
	}
}

func TestAppendEmptyBatchRejected(t *testing.T) {
	s := New()
	if _, err := s.AppendEvents(context.Background(), "agg-1", 0, nil); !errors.Is(err, store.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestAppendBatchIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Third event reuses the first event's id, so the batch must fail as a
	// whole and persist nothing.
	_, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{
		testEvent("ev-1", "rules.intent_declared"),
		testEvent("ev-2", "rules.check_resolved"),
		testEvent("ev-1", "rules.effects_produced"),
	})
	if err == nil {
		t.Fatal("expected duplicate event id to fail the batch")
	}

	events, _ := s.LoadEvents(ctx, "agg-1")
	if len(events) != 0 {
		t.Fatalf("failed batch must persist nothing, found %d events", len(events))
	}
}

func TestAppendDuplicateEventIDAcrossBatches(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{testEvent("ev-1", "narrative.scene_started")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err := s.AppendEvents(ctx, "agg-2", 0, []event.Event{testEvent("ev-1", "narrative.scene_started")})
	if err == nil {
		t.Fatal("expected reused event id to fail")
	}
	if !store.IsInfrastructure(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestLoadEventsReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{testEvent("ev-1", "narrative.scene_started")}); err != nil {
		t.Fatalf("append: %v", err)
	}

	first, _ := s.LoadEvents(ctx, "agg-1")
	first[0].Type = "mutated"

	second, _ := s.LoadEvents(ctx, "agg-1")
	if second[0].Type != "narrative.scene_started" {
		t.Fatal("expected store contents to be isolated from caller mutation")
	}
}

func TestReturnedPayloadBytesAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	appended := testEvent("ev-1", "narrative.scene_started")
	appended.PayloadJSON = []byte(`{"scene_id":"crypt"}`)
	if _, err := s.AppendEvents(ctx, "agg-1", 0, []event.Event{appended}); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Mutating the caller's slice after append must not reach the journal.
	appended.PayloadJSON[2] = 'X'

	first, _ := s.LoadEvents(ctx, "agg-1")
	copy(first[0].PayloadJSON, `{"scene_id":"XXXXX"}`)

	listed, _ := s.ListEvents(ctx, "agg-1", 0, 10)
	copy(listed[0].PayloadJSON, `{"scene_id":"YYYYY"}`)

	second, _ := s.LoadEvents(ctx, "agg-1")
	if string(second[0].PayloadJSON) != `{"scene_id":"crypt"}` {
		t.Fatalf("journal payload corrupted: %s", second[0].PayloadJSON)
	}
}
