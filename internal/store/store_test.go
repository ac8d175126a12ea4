package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name string `json:"name"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	st.Write("things", "k1", record{Name: "puck"})

	var out record
	require.True(t, st.Read("things", "k1", &out))
	assert.Equal(t, "puck", out.Name)

	var missing record
	assert.False(t, st.Read("things", "missing", &missing))
}

func TestWritePublishesToWatchers(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	ch := st.Watch("things")
	st.Write("things", "k1", record{Name: "puck"})

	select {
	case ev := <-ch:
		assert.Equal(t, "k1", ev.Key)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}
}

func TestIsStale(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	assert.True(t, st.IsStale("things", "missing", nil), "missing key is always stale")

	st.Write("things", "k1", record{Name: "puck"})
	assert.False(t, st.IsStale("things", "k1", nil), "nil maxAge means never stale once present")

	future := time.Hour
	assert.False(t, st.IsStale("things", "k1", &future))

	past := -time.Hour
	assert.True(t, st.IsStale("things", "k1", &past))
}

func TestReadAllWalksCollection(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	st.Write("things", "a", record{Name: "a"})
	st.Write("things", "b", record{Name: "b"})

	seen := make(map[string]string)
	st.ReadAll("things", func(key string, data []byte) {
		var r record
		if ok := st.Read("things", key, &r); ok {
			seen[key] = r.Name
		}
	})

	assert.Len(t, seen, 2)
}

func TestReadAllOnMissingCollectionIsANoop(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	called := false
	st.ReadAll("nope", func(key string, data []byte) { called = true })
	assert.False(t, called)
}
