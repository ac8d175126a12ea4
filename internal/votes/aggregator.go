// Package votes records per-user picks and per-game tallies, guarded by
// one mutex so the raw vote list and the derived tally map always move
// atomically together.
package votes

import (
	"errors"
	"fmt"
	"sync"

	jsoncodec "github.com/goccy/go-json"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
)

const votesCollection = "v2_votes"

var (
	ErrUnknownGame = errors.New("votes: unknown game")
	ErrUnknownTeam = errors.New("votes: team not in game")
	ErrWrongStatus = errors.New("votes: game not in Coming status")
)

// GameLookup resolves the minimal game facts needed to validate a vote.
// Satisfied by the registry; kept as an interface so the aggregator doesn't
// import the registry package directly.
type GameLookup interface {
	LookupForVote(gameUUID string) (homeTeam, awayTeam string, status model.GameStatus, ok bool)
}

// Aggregator is the single owner of raw votes and derived tallies.
type Aggregator struct {
	lookup GameLookup
	out    chan<- GameTally
	st     *store.Store // durability only: persisted so a restart can rebuild tallies

	mu      sync.Mutex
	votes   map[string]model.Vote  // key: user_id + "|" + game_uuid
	tallies map[string]model.Tally // key: game_uuid
}

// GameTally is sent to the channel the vote integrator drains.
type GameTally struct {
	GameUUID string
	Tally    model.Tally
}

// New constructs an Aggregator. out is the bounded channel the dedicated
// registry-update task drains; sends are non-blocking so a slow integrator
// never stalls a vote request.
func New(lookup GameLookup, out chan<- GameTally, st *store.Store) *Aggregator {
	return &Aggregator{
		lookup:  lookup,
		out:     out,
		st:      st,
		votes:   make(map[string]model.Vote),
		tallies: make(map[string]model.Tally),
	}
}

// Restore reloads every persisted vote from a prior run and rebuilds
// tallies, so a process restart doesn't silently drop picks cast before a
// game went live.
func (a *Aggregator) Restore() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.ReadAll(votesCollection, func(key string, data []byte) {
		var v model.Vote
		if err := jsoncodec.Unmarshal(data, &v); err != nil {
			return
		}
		a.votes[key] = v
	})
	seen := make(map[string]bool)
	for _, v := range a.votes {
		if !seen[v.GameUUID] {
			seen[v.GameUUID] = true
			a.recomputeLocked(v.GameUUID)
		}
	}
}

func key(userID, gameUUID string) string { return userID + "|" + gameUUID }

// Record validates and upserts a vote, returning the resulting percentage
// view of the game's tally.
func (a *Aggregator) Record(v model.Vote) (model.VoteSummary, error) {
	homeTeam, awayTeam, status, ok := a.lookup.LookupForVote(v.GameUUID)
	if !ok {
		telemetry.Metrics.VotesRejected.Inc()
		return model.VoteSummary{}, ErrUnknownGame
	}
	if v.TeamCode != homeTeam && v.TeamCode != awayTeam {
		telemetry.Metrics.VotesRejected.Inc()
		return model.VoteSummary{}, fmt.Errorf("%w: %s", ErrUnknownTeam, v.TeamCode)
	}
	if status != model.StatusComing {
		telemetry.Metrics.VotesRejected.Inc()
		return model.VoteSummary{}, ErrWrongStatus
	}
	v.IsHomeWinner = v.TeamCode == homeTeam

	a.mu.Lock()
	k := key(v.UserID, v.GameUUID)
	a.votes[k] = v
	a.st.Write(votesCollection, k, v)
	tally := a.recomputeLocked(v.GameUUID)
	a.mu.Unlock()

	telemetry.Metrics.VotesAccepted.Inc()

	select {
	case a.out <- GameTally{GameUUID: v.GameUUID, Tally: tally}:
	default:
		telemetry.Warnf("votes: integrator channel full, dropping tally update for %s", v.GameUUID)
	}

	return tally.Percentages(), nil
}

// recomputeLocked rebuilds the tally for a single game from the raw votes.
// Caller must hold a.mu.
func (a *Aggregator) recomputeLocked(gameUUID string) model.Tally {
	var t model.Tally
	for _, v := range a.votes {
		if v.GameUUID != gameUUID {
			continue
		}
		if v.IsHomeWinner {
			t.HomeCount++
		} else {
			t.AwayCount++
		}
	}
	a.tallies[gameUUID] = t
	return t
}

// GetAll returns a synchronous snapshot of every game's tally.
func (a *Aggregator) GetAll() map[string]model.Tally {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]model.Tally, len(a.tallies))
	for k, v := range a.tallies {
		out[k] = v
	}
	return out
}
