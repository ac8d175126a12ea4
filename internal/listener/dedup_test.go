package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
)

func TestDedupSeenRevision(t *testing.T) {
	d := newDedup()
	assert.False(t, d.SeenRevision(1), "first sighting is never seen")
	assert.True(t, d.SeenRevision(1), "second sighting of the same revision is seen")
	assert.False(t, d.SeenRevision(2), "a different revision is independent")
}

func TestDedupSeenHash(t *testing.T) {
	d := newDedup()
	assert.False(t, d.SeenHash("abc"))
	assert.True(t, d.SeenHash("abc"))
}

func TestDedupResetClearsHashesNotRevisions(t *testing.T) {
	d := newDedup()
	d.SeenHash("abc")
	d.SeenRevision(1)

	d.Reset()

	assert.False(t, d.SeenHash("abc"), "hashes are cleared on an idle-restart")
	assert.True(t, d.SeenRevision(1), "revisions survive a reset")
}

func TestPeriodBoundaryEventIDs(t *testing.T) {
	assert.Equal(t, "PeriodStart 2", PeriodStartID(2))
	assert.Equal(t, "PeriodEnd 2", PeriodEndID(2))
}

func TestStoreRawEventReportsNewOnlyOnce(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	e := model.Event{GameUUID: "g1", EventID: "e1", Revision: 1}
	assert.True(t, storeRawEvent(st, "g1", e), "first write is new")
	assert.False(t, storeRawEvent(st, "g1", e), "second write of the same id is not new")

	assert.True(t, rawEventSeen(st, "g1", "e1"))
	assert.False(t, rawEventSeen(st, "g1", "unknown"))
}
