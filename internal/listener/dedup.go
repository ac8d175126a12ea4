package listener

import (
	"fmt"
	"sync"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
)

const eventsRawCollection = "v2_events_raw"

// EventsRawCollection is the store collection name the REST API's
// /v2/game/{uuid} handler reads event history from.
const EventsRawCollection = eventsRawCollection

// dedup tracks what one listener has already seen, so repeat SSE/poll
// deliveries don't re-trigger bus messages.
type dedup struct {
	mu            sync.Mutex
	seenRevisions map[int]bool
	seenHashes    map[string]bool
}

func newDedup() *dedup {
	return &dedup{
		seenRevisions: make(map[int]bool),
		seenHashes:    make(map[string]bool),
	}
}

// SeenRevision reports whether a GameReport revision was already processed,
// recording it if not.
func (d *dedup) SeenRevision(rev int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seenRevisions[rev] {
		return true
	}
	d.seenRevisions[rev] = true
	return false
}

// SeenHash reports whether a legacy play-by-play hash was already processed.
func (d *dedup) SeenHash(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seenHashes[hash] {
		return true
	}
	d.seenHashes[hash] = true
	return false
}

// Reset clears the hash set on an idle-restart, leaving seen revisions in
// place. Rows whose event_id is already in the persisted raw log still
// produce no second AddEvent, because storeRawEvent reports them as known.
func (d *dedup) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seenHashes = make(map[string]bool)
}

// PeriodStartID and PeriodEndID derive the synthetic, idempotent event ids
// used for period boundary events.
func PeriodStartID(period int) string { return fmt.Sprintf("PeriodStart %d", period) }
func PeriodEndID(period int) string   { return fmt.Sprintf("PeriodEnd %d", period) }

// storeRawEvent upserts e into the per-game raw event log keyed by
// event_id, returning whether this is the first time event_id has been
// seen.
func storeRawEvent(st *store.Store, gameUUID string, e model.Event) bool {
	key := gameUUID + ":" + e.EventID
	var existing model.Event
	isNew := !st.Read(eventsRawCollection, key, &existing)
	st.Write(eventsRawCollection, key, e)
	return isNew
}

// rawEventSeen reports whether event_id already exists in the persisted
// log, without writing (used by LiveEvent handling, which must check
// before deciding whether to also emit AddEvent).
func rawEventSeen(st *store.Store, gameUUID, eventID string) bool {
	var existing model.Event
	key := gameUUID + ":" + eventID
	return st.Read(eventsRawCollection, key, &existing)
}
