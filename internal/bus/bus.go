// Package bus implements the internal message bus: a typed broadcast with
// a bounded 1000-message buffer per subscriber and lag-drop semantics. Each
// subscription owns a goroutine draining its own buffered channel, so a
// slow consumer does not stall the publisher or the other subscribers. The
// one exception is the subscriber named "writer": when its buffer is full,
// Publish blocks until it drains.
package bus

import (
	"sync"

	"github.com/hanssonlabs/puckline/internal/telemetry"
)

const bufferSize = 1000

// Handler processes one message. It runs on the subscription's own
// goroutine, never on the publisher's.
type Handler func(Message)

type subscription struct {
	name string
	ch   chan Message
	done chan struct{}
}

// Bus is a fan-out broadcast channel. Publish takes only a read lock, long
// enough to copy the subscriber list.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named handler and starts its drain goroutine.
// The name appears in lag-drop log lines; the name "writer" also makes
// Publish block on a full buffer instead of lag-dropping.
func (b *Bus) Subscribe(name string, h Handler) {
	sub := &subscription{
		name: name,
		ch:   make(chan Message, bufferSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-sub.ch:
				h(msg)
			case <-sub.done:
				return
			}
		}
	}()
}

// Publish enqueues a message to every subscriber. Within a single producer's
// call sequence, Publish calls preserve order per-subscriber (each send
// either succeeds or is dropped immediately; it never reorders).
//
// Publish blocks the caller only if a subscriber's buffer is full AND that
// subscriber is the writer, the one consumer that must see every message in
// order; for every other subscriber a full buffer is a lag-drop, logged and
// non-fatal.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.name == "writer" {
			sub.ch <- msg
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			telemetry.Metrics.BusLagDropped.Inc()
			telemetry.Warnf("bus: subscriber %q lagging, dropped %s for game %s", sub.name, msg.Type, msg.GameUUID)
		}
	}
}

// Close stops every subscriber's drain goroutine. Intended for shutdown/tests.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		close(sub.done)
	}
	b.subs = nil
}
