package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(st)
}

func TestRegistryUpdateAndRead(t *testing.T) {
	r := newTestRegistry(t)
	games := []model.Game{
		{GameUUID: "g1", Season: "2025", HomeTeam: "LHF", AwayTeam: "FBK"},
		{GameUUID: "g2", Season: "2025", HomeTeam: "MODO", AwayTeam: "HV71"},
	}

	out := r.Update("2025", games, map[string]model.Tally{
		"g1": {HomeCount: 9, AwayCount: 1},
	})

	require.Len(t, out, 2)
	assert.Equal(t, 90, out[0].Votes.HomePerc)

	got, ok := r.ReadCurrentSeasonGame("g2")
	require.True(t, ok)
	assert.Equal(t, "MODO", got.HomeTeam)

	_, ok = r.ReadCurrentSeasonGame("missing")
	assert.False(t, ok)
}

func TestRegistryUpdateFromReport(t *testing.T) {
	r := newTestRegistry(t)
	r.Update("2025", []model.Game{{GameUUID: "g1", Season: "2025", Status: model.StatusComing}}, nil)

	updated, ok := r.UpdateFromReport("g1", model.Report{Status: model.StatusPeriod1, HomeScore: 1})
	require.True(t, ok)
	assert.Equal(t, model.StatusPeriod1, updated.Status)
	assert.Equal(t, 1, updated.HomeScore)

	_, ok = r.UpdateFromReport("unknown", model.Report{})
	assert.False(t, ok)
}

func TestRegistryUpdateFromVotes(t *testing.T) {
	r := newTestRegistry(t)
	r.Update("2025", []model.Game{{GameUUID: "g1", Season: "2025"}}, nil)

	r.UpdateFromVotes("g1", model.Tally{HomeCount: 1, AwayCount: 1})

	g, ok := r.ReadCurrentSeasonGame("g1")
	require.True(t, ok)
	assert.Equal(t, 50, g.Votes.HomePerc)

	// unknown game is a silent no-op
	r.UpdateFromVotes("unknown", model.Tally{HomeCount: 1})
}

func TestRegistryPotentiallyLive(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.Update("2025", []model.Game{
		{GameUUID: "live", Season: "2025", Status: model.StatusComing, StartTime: now.Add(time.Minute)},
		{GameUUID: "future", Season: "2025", Status: model.StatusComing, StartTime: now.Add(time.Hour)},
		{GameUUID: "done", Season: "2025", Status: model.StatusFinished, StartTime: now.Add(-time.Hour)},
	}, nil)

	live := r.PotentiallyLive(now)
	require.Len(t, live, 1)
	assert.Equal(t, "live", live[0].GameUUID)
}

func TestRegistryLookupForVote(t *testing.T) {
	r := newTestRegistry(t)
	r.Update("2025", []model.Game{{GameUUID: "g1", Season: "2025", HomeTeam: "LHF", AwayTeam: "FBK", Status: model.StatusComing}}, nil)

	home, away, status, ok := r.LookupForVote("g1")
	require.True(t, ok)
	assert.Equal(t, "LHF", home)
	assert.Equal(t, "FBK", away)
	assert.Equal(t, model.StatusComing, status)

	_, _, _, ok = r.LookupForVote("missing")
	assert.False(t, ok)
}

func TestRegistryReadSeasonFallsBackToRest(t *testing.T) {
	r := newTestRegistry(t)
	r.Update("2025", []model.Game{{GameUUID: "g1", Season: "2025"}}, nil)
	r.Update("2024", []model.Game{{GameUUID: "g0", Season: "2024"}}, nil)

	assert.Len(t, r.ReadSeason("2025"), 1)
	assert.Len(t, r.ReadSeason("2024"), 1)
	assert.Empty(t, r.ReadSeason("2099"))
}
