// Package ingest fetches and normalizes every scheduled game for a
// (season, league, game-type) triple, fanning the per-bucket feed calls
// out on a small bounded worker pool.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
	"github.com/hanssonlabs/puckline/internal/upstream"
)

const reportCollection = "v2_report"

var gameTypes = []model.GameType{model.GameTypeSeason, model.GameTypePlayoff, model.GameTypeDemotion}

// seasonProviderUUID resolves a human season label ("2024") to the
// provider's fixed season identifier. Unknown seasons pass through
// unchanged on the assumption the caller already has the provider's uuid
// (the provider's season catalog isn't itself enumerable through any feed
// this core consumes).
func seasonProviderUUID(season string) string {
	if known, ok := knownSeasonUUIDs[season]; ok {
		return known
	}
	return season
}

// knownSeasonUUIDs seeds the handful of seasons this deployment tracks;
// extended as new seasons are onboarded.
var knownSeasonUUIDs = map[string]string{}

// Ingestor fetches and normalizes every game in a season.
type Ingestor struct {
	client *upstream.Client
	st     *store.Store
	pool   *workerpool.WorkerPool
}

func New(client *upstream.Client, st *store.Store) *Ingestor {
	return &Ingestor{
		client: client,
		st:     st,
		pool:   workerpool.New(4),
	}
}

// Stop releases the ingestor's worker pool. Call once at shutdown.
func (ing *Ingestor) Stop() { ing.pool.StopWait() }

// IngestSeason fetches every (league, game_type) bucket for a season
// concurrently (bounded to 4 in flight) and normalizes each to a Game.
// maxAge controls the HTTP-layer cache: ~10h for the current season, nil
// (cached permanently) for past seasons.
func (ing *Ingestor) IngestSeason(ctx context.Context, season string, leagues []upstream.League, maxAge *time.Duration) []model.Game {
	seasonUUID := seasonProviderUUID(season)

	var mu sync.Mutex
	var out []model.Game
	var wg sync.WaitGroup

	for _, league := range leagues {
		for _, gt := range gameTypes {
			league, gt := league, gt
			wg.Add(1)
			ing.pool.Submit(func() {
				defer wg.Done()
				provided, ok := ing.client.FetchSeasonGames(ctx, league, seasonUUID, string(gt), maxAge)
				if !ok {
					return
				}
				games := make([]model.Game, 0, len(provided))
				for _, pg := range provided {
					games = append(games, ing.normalize(pg, season, string(league), gt))
				}
				mu.Lock()
				out = append(out, games...)
				mu.Unlock()
			})
		}
	}
	wg.Wait()

	telemetry.Infof("ingest: season %s -> %d games across %d leagues", season, len(out), len(leagues))
	return out
}

// normalize converts one provider row into a Game, deriving the base
// status from the provider's state string and overlaying any persisted
// Report for games starting soon so a crash-restart resumes with the last
// observed live status.
func (ing *Ingestor) normalize(pg upstream.ProviderGame, season, league string, gt model.GameType) model.Game {
	g := model.Game{
		GameUUID:  pg.GameUUID,
		HomeTeam:  pg.HomeTeamCode,
		AwayTeam:  pg.AwayTeamCode,
		StartTime: pg.StartDateTime,
		Season:    season,
		League:    league,
		GameType:  gt,
	}

	switch pg.State {
	case "post-game":
		g.Status = model.StatusFinished
		g.Played = true
	case "postponed":
		g.Status = model.StatusComing
		g.Postponed = true
	default:
		g.Status = model.StatusComing
	}
	g.GameTime = "00:00"

	if err := uuid.Validate(g.GameUUID); err != nil {
		// Provider ids aren't always canonical UUIDs; not fatal, just logged
		// once so a format change upstream is noticed quickly.
		telemetry.Debugf("ingest: game_uuid %q is not a canonical UUID: %v", g.GameUUID, err)
	}

	if time.Until(g.StartTime) < 5*time.Minute {
		var prior model.Report
		if ing.st.Read(reportCollection, g.GameUUID, &prior) {
			g = g.WithReport(prior)
		}
	}

	return g
}
