// Package archive packages a run's event stream into a compressed JSONL
// artifact, one envelope per line, and ships it to a destination. The
// artifact is a faithful copy of the journal: reading it back yields the
// same ordered events the store would serve.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/replay"
)

// exportPageSize bounds how many events are pulled from the store per page.
const exportPageSize = 500

// WriteStream copies one aggregate's events into w as zstd-compressed
// JSONL, in seq order, and returns how many events it wrote.
func WriteStream(ctx context.Context, lister replay.EventLister, aggregateID string, w io.Writer) (int, error) {
	if aggregateID == "" {
		return 0, fmt.Errorf("archive: aggregate id is required")
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return 0, fmt.Errorf("archive: init encoder: %w", err)
	}
	buf := bufio.NewWriterSize(enc, 128*1024)

	written := 0
	var lastSeq uint64
	for {
		page, err := lister.ListEvents(ctx, aggregateID, lastSeq, exportPageSize)
		if err != nil {
			_ = enc.Close()
			return written, fmt.Errorf("archive: list events after %d: %w", lastSeq, err)
		}
		if len(page) == 0 {
			break
		}
		for _, evt := range page {
			if evt.Seq != lastSeq+1 {
				_ = enc.Close()
				return written, fmt.Errorf("archive: event sequence gap: expected %d got %d", lastSeq+1, evt.Seq)
			}
			line, err := json.Marshal(evt)
			if err != nil {
				_ = enc.Close()
				return written, fmt.Errorf("archive: encode event %s: %w", evt.EventID, err)
			}
			if _, err := buf.Write(line); err != nil {
				_ = enc.Close()
				return written, err
			}
			if err := buf.WriteByte('\n'); err != nil {
				_ = enc.Close()
				return written, err
			}
			lastSeq = evt.Seq
			written++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	if err := buf.Flush(); err != nil {
		_ = enc.Close()
		return written, err
	}
	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("archive: close encoder: %w", err)
	}
	return written, nil
}

// ReadStream decodes a zstd JSONL artifact back into ordered envelopes.
func ReadStream(r io.Reader) ([]event.Event, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: init decoder: %w", err)
	}
	defer dec.Close()

	var events []event.Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var evt event.Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("archive: decode line %d: %w", len(events)+1, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("archive: scan artifact: %w", err)
	}
	return events, nil
}

// Destination receives a finished artifact.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Export streams an aggregate into an in-memory artifact and hands it to
// the destination. It returns the number of exported events.
func Export(ctx context.Context, lister replay.EventLister, aggregateID string, dest Destination) (int, error) {
	var artifact bytes.Buffer
	written, err := WriteStream(ctx, lister, aggregateID, &artifact)
	if err != nil {
		return written, err
	}
	if err := dest.Write(ctx, artifact.Bytes()); err != nil {
		return written, fmt.Errorf("archive: write artifact: %w", err)
	}
	return written, nil
}

// ObjectKey names the artifact for a run.
func ObjectKey(runID string) string {
	return fmt.Sprintf("runs/%s.jsonl.zst", runID)
}
