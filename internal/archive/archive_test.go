package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store/memory"
)

func seedStream(t *testing.T, st *memory.Store, aggregateID string, n int) []event.Event {
	t.Helper()
	events := make([]event.Event, 0, n)
	for i := 0; i < n; i++ {
		payload, _ := json.Marshal(map[string]any{"beat_id": fmt.Sprintf("beat-%d", i+1), "beat": "intro", "index": i + 1})
		events = append(events, event.Event{
			EventID:        fmt.Sprintf("ev-%d", i+1),
			Type:           "narrative.beat_advanced",
			PayloadVersion: 1,
			PayloadJSON:    payload,
			CorrelationID:  "cor-1",
			CausationID:    fmt.Sprintf("cmd-%d", i+1),
			OccurredAt:     time.Date(2026, time.May, 5, 0, 0, i, 0, time.UTC),
		})
	}
	if _, err := st.AppendEvents(context.Background(), aggregateID, 0, events); err != nil {
		t.Fatalf("seed stream: %v", err)
	}
	loaded, err := st.LoadEvents(context.Background(), aggregateID)
	if err != nil {
		t.Fatalf("load seeded stream: %v", err)
	}
	return loaded
}

func TestWriteStreamRoundTrip(t *testing.T) {
	st := memory.New()
	seeded := seedStream(t, st, "run-1", 3)

	var artifact bytes.Buffer
	written, err := WriteStream(context.Background(), st, "run-1", &artifact)
	if err != nil {
		t.Fatalf("WriteStream returned error: %v", err)
	}
	if written != 3 {
		t.Fatalf("written = %d, want 3", written)
	}

	restored, err := ReadStream(&artifact)
	if err != nil {
		t.Fatalf("ReadStream returned error: %v", err)
	}
	if len(restored) != len(seeded) {
		t.Fatalf("restored %d events, want %d", len(restored), len(seeded))
	}
	for i := range restored {
		if restored[i].EventID != seeded[i].EventID || restored[i].Seq != seeded[i].Seq {
			t.Fatalf("event %d mismatch: %+v vs %+v", i, restored[i], seeded[i])
		}
		if !restored[i].OccurredAt.Equal(seeded[i].OccurredAt) {
			t.Fatalf("event %d timestamp drifted: %v vs %v", i, restored[i].OccurredAt, seeded[i].OccurredAt)
		}
	}
}

func TestWriteStreamPagesLongStreams(t *testing.T) {
	st := memory.New()
	seedStream(t, st, "run-1", exportPageSize+25)

	var artifact bytes.Buffer
	written, err := WriteStream(context.Background(), st, "run-1", &artifact)
	if err != nil {
		t.Fatalf("WriteStream returned error: %v", err)
	}
	if written != exportPageSize+25 {
		t.Fatalf("written = %d, want %d", written, exportPageSize+25)
	}

	restored, err := ReadStream(&artifact)
	if err != nil {
		t.Fatalf("ReadStream returned error: %v", err)
	}
	if restored[len(restored)-1].Seq != uint64(exportPageSize+25) {
		t.Fatalf("last seq = %d", restored[len(restored)-1].Seq)
	}
}

type gappyLister struct{}

func (gappyLister) ListEvents(_ context.Context, _ string, afterSeq uint64, _ int) ([]event.Event, error) {
	if afterSeq > 0 {
		return nil, nil
	}
	return []event.Event{
		{EventID: "ev-1", Seq: 1, Type: "narrative.beat_advanced", PayloadJSON: []byte(`{}`)},
		{EventID: "ev-3", Seq: 3, Type: "narrative.beat_advanced", PayloadJSON: []byte(`{}`)},
	}, nil
}

func TestWriteStreamRefusesGaps(t *testing.T) {
	var artifact bytes.Buffer
	if _, err := WriteStream(context.Background(), gappyLister{}, "run-1", &artifact); err == nil {
		t.Fatal("expected gap error")
	}
}

func TestWriteStreamRequiresAggregateID(t *testing.T) {
	var artifact bytes.Buffer
	if _, err := WriteStream(context.Background(), memory.New(), "", &artifact); err == nil {
		t.Fatal("expected error for missing aggregate id")
	}
}

func TestExportToFileDestination(t *testing.T) {
	st := memory.New()
	seedStream(t, st, "run-1", 2)

	path := filepath.Join(t.TempDir(), "out", ObjectKey("run-1"))
	written, err := Export(context.Background(), st, "run-1", FileDestination{Path: path})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	restored, err := ReadStream(f)
	if err != nil {
		t.Fatalf("ReadStream returned error: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("restored %d events, want 2", len(restored))
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("run-42"); got != "runs/run-42.jsonl.zst" {
		t.Fatalf("ObjectKey = %q", got)
	}
}
