package publish

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestPublishCommittedDeliversEnvelope(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, nil)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("otherworlds.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	committed := event.Event{
		EventID:       "ev-1",
		AggregateID:   "session-1",
		Seq:           1,
		Type:          "narrative.beat_advanced",
		PayloadJSON:   []byte(`{"beat_id":"beat-1","beat":"intro","index":1}`),
		CorrelationID: "cor-1",
		CausationID:   "cmd-1",
	}
	pub.PublishCommitted(context.Background(), []event.Event{committed})
	if err := pub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case got := <-ch:
		if got.EventID != "ev-1" || got.Type != committed.Type || got.Seq != 1 {
			t.Fatalf("unexpected envelope %+v", got)
		}
		if got.CorrelationID != "cor-1" || got.CausationID != "cmd-1" {
			t.Fatalf("envelope lost its lineage: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSubjectNamespacesEventType(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, nil)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	if got := pub.Subject("rules.check_resolved"); got != "otherworlds.rules.check_resolved" {
		t.Fatalf("subject = %q", got)
	}
}

func TestSubscribeFiltersBySubject(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, nil)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("otherworlds.rules.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	pub.PublishCommitted(context.Background(), []event.Event{
		{EventID: "ev-1", AggregateID: "s-1", Seq: 1, Type: "narrative.scene_started", PayloadJSON: []byte(`{}`)},
		{EventID: "ev-2", AggregateID: "r-1", Seq: 1, Type: "rules.check_resolved", PayloadJSON: []byte(`{}`)},
	})
	if err := pub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case got := <-ch:
		if got.EventID != "ev-2" {
			t.Fatalf("expected only the rules event, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}

	select {
	case got := <-ch:
		t.Fatalf("unexpected extra message %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("otherworlds.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()
	cancel() // second cancel must not panic

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
