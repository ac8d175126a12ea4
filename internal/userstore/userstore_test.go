package userstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(st)
}

func token(s string) *string { return &s }

func TestAddUserUpsertsAndPreservesOmittedFields(t *testing.T) {
	s := newTestStore(t)

	u := s.AddUser("u1", []string{"LHF"}, token("tok-1"), nil, nil)
	assert.Equal(t, []string{"LHF"}, u.SubscribedTeams)
	require.NotNil(t, u.DeviceToken)

	// A second upsert without a token keeps the stored one.
	u = s.AddUser("u1", []string{"LHF", "FBK"}, nil, []string{"g9"}, nil)
	require.NotNil(t, u.DeviceToken)
	assert.Equal(t, "tok-1", *u.DeviceToken)
	assert.Equal(t, []string{"g9"}, u.MutedGames)
}

func TestStartLiveActivityReplacesNotDuplicates(t *testing.T) {
	s := newTestStore(t)
	s.AddUser("u1", nil, nil, nil, nil)

	s.StartLiveActivity("u1", "g1", "act-1")
	s.StartLiveActivity("u1", "g1", "act-2")
	s.StartLiveActivity("u1", "g2", "other")

	var u model.User
	s.StreamAll(func(got model.User) { u = got })
	require.Len(t, u.LiveActivities, 2)
	idx := u.LiveActivityFor("g1")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "act-2", u.LiveActivities[idx].ActivityToken)
}

func TestEndLiveActivityRemovesOnlyThatGame(t *testing.T) {
	s := newTestStore(t)
	s.StartLiveActivity("u1", "g1", "act-1")
	s.StartLiveActivity("u1", "g2", "act-2")

	s.EndLiveActivity("u1", "g1")

	var u model.User
	s.StreamAll(func(got model.User) { u = got })
	assert.Equal(t, -1, u.LiveActivityFor("g1"))
	assert.GreaterOrEqual(t, u.LiveActivityFor("g2"), 0)

	// Ending an activity that doesn't exist is a no-op.
	s.EndLiveActivity("u1", "g1")
	s.EndLiveActivity("missing", "g1")
}

func TestClearDeviceToken(t *testing.T) {
	s := newTestStore(t)
	s.AddUser("u1", nil, token("tok"), nil, nil)

	s.ClearDeviceToken("u1")

	var u model.User
	s.StreamAll(func(got model.User) { u = got })
	assert.Nil(t, u.DeviceToken)
}

func TestRemoveReferencesToPurgesAcrossUsers(t *testing.T) {
	s := newTestStore(t)
	s.AddUser("u1", nil, nil, []string{"g1", "g2"}, []string{"g1"})
	s.StartLiveActivity("u1", "g1", "act-1")
	s.AddUser("u2", nil, nil, nil, []string{"g1"})
	s.StartLiveActivity("u2", "g2", "act-2")

	s.RemoveReferencesTo("g1")

	users := make(map[string]model.User)
	s.StreamAll(func(u model.User) { users[u.UserID] = u })

	u1 := users["u1"]
	assert.Equal(t, -1, u1.LiveActivityFor("g1"))
	assert.Equal(t, []string{"g2"}, u1.MutedGames)
	assert.Empty(t, u1.ExplicitGames)

	u2 := users["u2"]
	assert.Empty(t, u2.ExplicitGames)
	assert.GreaterOrEqual(t, u2.LiveActivityFor("g2"), 0, "other games' entries are untouched")
}
