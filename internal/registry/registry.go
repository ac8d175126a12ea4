// Package registry holds the single in-memory index of the current
// season's games, exclusive-writer/many-readers. A by-uuid secondary index
// keeps report and vote merges O(1); readers always get clones.
package registry

import (
	"sync"
	"time"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
)

const gamesCollection = "v2_season_decorated"

// Registry is the exclusive owner of the in-memory current-season map.
type Registry struct {
	st *store.Store

	mu            sync.RWMutex
	currentSeason string
	current       []model.Game
	byUUID        map[string]int          // index into current
	rest          map[string][]model.Game // season -> games, for non-current seasons
}

func New(st *store.Store) *Registry {
	return &Registry{
		st:     st,
		byUUID: make(map[string]int),
		rest:   make(map[string][]model.Game),
	}
}

// SetCurrentSeason pins which season label owns the in-memory current slice.
// The orchestrator calls this once at boot, before any historical ingest, so
// a historical season's Update can't claim the slot first. If never called,
// the first Update wins it.
func (r *Registry) SetCurrentSeason(season string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentSeason = season
}

// Update rebuilds either the current-season vector or a rest-of-seasons
// bucket, overlaying the supplied vote snapshot onto each game.
func (r *Registry) Update(season string, ingested []model.Game, votesSnapshot map[string]model.Tally) []model.Game {
	for i, g := range ingested {
		if t, ok := votesSnapshot[g.GameUUID]; ok {
			ingested[i].Votes = t.Percentages()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentSeason == "" {
		r.currentSeason = season
	}
	if season == r.currentSeason {
		r.current = ingested
		r.byUUID = make(map[string]int, len(ingested))
		for i, g := range ingested {
			r.byUUID[g.GameUUID] = i
		}
	} else {
		r.rest[season] = ingested
	}

	for _, g := range ingested {
		r.st.Write(gamesCollection, g.GameUUID, g)
	}

	telemetry.Metrics.ListenersActive.Set(int64(countLive(ingested)))
	return ingested
}

func countLive(games []model.Game) int {
	n := 0
	for _, g := range games {
		if g.Status != model.StatusFinished {
			n++
		}
	}
	return n
}

// UpdateFromReport atomically merges a new Report into the game identified
// by gameUUID, persists it, and returns the updated game so the writer,
// its only caller, can notify without re-reading. Report carries no
// game_uuid of its own, so the caller supplies it from the bus message
// envelope.
func (r *Registry) UpdateFromReport(gameUUID string, rpt model.Report) (model.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byUUID[gameUUID]
	if !ok {
		return model.Game{}, false
	}
	r.current[idx] = r.current[idx].WithReport(rpt)
	updated := r.current[idx]
	r.st.Write(gamesCollection, gameUUID, updated)
	return updated, true
}

// UpdateFromVotes idempotently assigns percentages onto the game's projection.
func (r *Registry) UpdateFromVotes(gameUUID string, t model.Tally) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byUUID[gameUUID]
	if !ok {
		return
	}
	r.current[idx].Votes = t.Percentages()
	r.st.Write(gamesCollection, gameUUID, r.current[idx])
}

// ReadCurrentSeason returns a clone of the current-season slice.
func (r *Registry) ReadCurrentSeason() []model.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Game, len(r.current))
	copy(out, r.current)
	return out
}

// ReadSeason returns a clone of every in-memory game for the given season,
// current or not.
func (r *Registry) ReadSeason(season string) []model.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if season == r.currentSeason {
		out := make([]model.Game, len(r.current))
		copy(out, r.current)
		return out
	}
	games := r.rest[season]
	out := make([]model.Game, len(games))
	copy(out, games)
	return out
}

// ReadCurrentSeasonGame returns a clone of one current-season game.
func (r *Registry) ReadCurrentSeasonGame(gameUUID string) (model.Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byUUID[gameUUID]
	if !ok {
		return model.Game{}, false
	}
	return r.current[idx], true
}

// ReadGame looks in the current season first, then falls back to the
// persisted store for historical seasons.
func (r *Registry) ReadGame(gameUUID string) (model.Game, bool) {
	if g, ok := r.ReadCurrentSeasonGame(gameUUID); ok {
		return g, true
	}
	var g model.Game
	if r.st.Read(gamesCollection, gameUUID, &g) {
		return g, true
	}
	return model.Game{}, false
}

// PotentiallyLive returns every current-season game eligible for a listener.
func (r *Registry) PotentiallyLive(now time.Time) []model.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Game
	for _, g := range r.current {
		if g.IsPotentiallyLive(now) {
			out = append(out, g)
		}
	}
	return out
}

// LookupForVote satisfies votes.GameLookup.
func (r *Registry) LookupForVote(gameUUID string) (homeTeam, awayTeam string, status model.GameStatus, ok bool) {
	g, found := r.ReadCurrentSeasonGame(gameUUID)
	if !found {
		return "", "", "", false
	}
	return g.HomeTeam, g.AwayTeam, g.Status, true
}
