package worldstate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cebartling/otherworlds-rpg/internal/engine/clock"
	"github.com/cebartling/otherworlds-rpg/internal/engine/command"
	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/random"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store/memory"
)

func newTestHandler(t *testing.T) runtime.Handler {
	t.Helper()
	reg := runtime.NewRegistry()
	events := event.NewRegistry()
	if err := Register(reg, events); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	return runtime.Handler{
		Store:    memory.New(),
		Registry: reg,
		Events:   events,
		Clock:    clock.Fixed{Time: time.Date(2026, time.February, 2, 9, 0, 0, 0, time.UTC)},
		Random:   random.NewSeeded(11),
	}
}

func handle(t *testing.T, h runtime.Handler, cmdType command.Type, payload any) runtime.Result {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	result, err := h.Handle(context.Background(), command.Command{
		Type:        cmdType,
		AggregateID: "world-1",
		PayloadJSON: data,
	})
	if err != nil {
		t.Fatalf("Handle %s: %v", cmdType, err)
	}
	return result
}

func TestRecordFactReplacesSubject(t *testing.T) {
	h := newTestHandler(t)

	handle(t, h, CommandTypeRecordFact, RecordFactPayload{Subject: "bridge", Fact: "intact"})
	result := handle(t, h, CommandTypeRecordFact, RecordFactPayload{Subject: "bridge", Fact: "collapsed"})

	state := result.State.(State)
	if state.Facts["bridge"] != "collapsed" {
		t.Fatalf("fact = %q, want collapsed", state.Facts["bridge"])
	}
	if len(state.Facts) != 1 {
		t.Fatalf("expected one fact, got %d", len(state.Facts))
	}
}

func TestRecordFactRequiresSubject(t *testing.T) {
	h := newTestHandler(t)

	result := handle(t, h, CommandTypeRecordFact, RecordFactPayload{Fact: "dangling"})
	if !result.Rejected() || result.Rejections[0].Code != RejectionSubjectRequired {
		t.Fatalf("expected %s rejection, got %+v", RejectionSubjectRequired, result.Rejections)
	}
}

func TestSetFlag(t *testing.T) {
	h := newTestHandler(t)

	result := handle(t, h, CommandTypeSetFlag, SetFlagPayload{Flag: "gate_open", Value: true})
	if result.Rejected() {
		t.Fatalf("unexpected rejections: %v", result.Rejections)
	}
	if !result.State.(State).Flags["gate_open"] {
		t.Fatal("expected gate_open to be set")
	}
}

func TestSetFlagUnchangedRejected(t *testing.T) {
	h := newTestHandler(t)

	handle(t, h, CommandTypeSetFlag, SetFlagPayload{Flag: "gate_open", Value: true})
	result := handle(t, h, CommandTypeSetFlag, SetFlagPayload{Flag: "gate_open", Value: true})

	if !result.Rejected() || result.Rejections[0].Code != RejectionFlagUnchanged {
		t.Fatalf("expected %s rejection, got %+v", RejectionFlagUnchanged, result.Rejections)
	}
	if result.NewVersion != 1 {
		t.Fatalf("rejection must not append, version = %d", result.NewVersion)
	}
}

func TestAdjustDispositionAccumulates(t *testing.T) {
	h := newTestHandler(t)

	handle(t, h, CommandTypeAdjustDisposition, AdjustDispositionPayload{NPC: "warden", Delta: 2})
	result := handle(t, h, CommandTypeAdjustDisposition, AdjustDispositionPayload{NPC: "warden", Delta: -5})

	var payload DispositionUpdatedPayload
	if err := json.Unmarshal(result.Events[0].PayloadJSON, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Delta != -5 || payload.Disposition != -3 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if result.State.(State).Dispositions["warden"] != -3 {
		t.Fatalf("disposition = %d, want -3", result.State.(State).Dispositions["warden"])
	}
}

func TestAdjustDispositionRejectsZeroDelta(t *testing.T) {
	h := newTestHandler(t)

	result := handle(t, h, CommandTypeAdjustDisposition, AdjustDispositionPayload{NPC: "warden"})
	if !result.Rejected() || result.Rejections[0].Code != RejectionZeroDelta {
		t.Fatalf("expected %s rejection, got %+v", RejectionZeroDelta, result.Rejections)
	}
}

func TestCloneStateDoesNotAlias(t *testing.T) {
	state := NewState()
	state.Facts["bridge"] = "intact"
	state.Flags["gate_open"] = true
	state.Dispositions["warden"] = 2

	cloned := state.CloneState().(State)
	cloned.Facts["bridge"] = "collapsed"
	cloned.Flags["gate_open"] = false
	cloned.Dispositions["warden"] = -1

	if state.Facts["bridge"] != "intact" || !state.Flags["gate_open"] || state.Dispositions["warden"] != 2 {
		t.Fatalf("clone aliased the original: %+v", state)
	}
}

func TestFoldUnknownEventType(t *testing.T) {
	if _, err := Fold(NewState(), event.Event{Type: "narrative.scene_started"}); err == nil {
		t.Fatal("expected error for foreign event type")
	}
}
