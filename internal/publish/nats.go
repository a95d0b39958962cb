// Package publish fans committed events out to NATS. Publication happens
// after the append commits, so subscribers observe a prefix of the journal
// and never see an event that later failed to persist.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/runtime"
)

var _ runtime.Publisher = (*NATSPublisher)(nil)

// DefaultSubjectPrefix namespaces event subjects on the wire. A beat event
// lands on "otherworlds.narrative.beat_advanced".
const DefaultSubjectPrefix = "otherworlds"

// NATSPublisher publishes committed event envelopes as JSON messages.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	log    *log.Logger
}

// NewNATSPublisher connects to NATS and returns a publisher using the
// default subject prefix. A nil logger falls back to the process logger.
func NewNATSPublisher(url string, logger *log.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &NATSPublisher{conn: nc, prefix: DefaultSubjectPrefix, log: logger}, nil
}

// Subject returns the wire subject for an event type.
func (p *NATSPublisher) Subject(eventType event.Type) string {
	return p.prefix + "." + string(eventType)
}

// PublishCommitted sends one message per committed event. The append is
// already durable, so errors are logged and swallowed rather than failing
// the command.
func (p *NATSPublisher) PublishCommitted(_ context.Context, events []event.Event) {
	for _, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			p.log.Printf("encode committed event %s: %v", evt.EventID, err)
			continue
		}
		if err := p.conn.Publish(p.Subject(evt.Type), data); err != nil {
			p.log.Printf("publish committed event %s: %v", evt.EventID, err)
		}
	}
}

// Flush blocks until buffered messages reach the server.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber tails committed events off the wire, e.g. for projections
// or the stream tail CLI command.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS with automatic reconnection. Extra
// nats.Option values (disconnect handlers and friends) can be appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe returns a channel of event envelopes for the given subject
// (NATS wildcards such as "otherworlds.>" work). The returned cancel
// function unsubscribes and closes the channel.
func (s *NATSSubscriber) Subscribe(subject string) (<-chan event.Event, func(), error) {
	ch := make(chan event.Event, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		var evt event.Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- evt:
		default:
			// Drop rather than block the NATS client callback.
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Flush so the subscription is registered on the server before messages
	// published on other connections start flowing.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

// Close drains the connection.
func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
