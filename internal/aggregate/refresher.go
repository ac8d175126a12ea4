package aggregate

import (
	"context"

	jsoncodec "github.com/goccy/go-json"

	"github.com/hanssonlabs/puckline/internal/bus"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
	"github.com/hanssonlabs/puckline/internal/upstream"
)

const (
	boxscoreRawCollection  = "v2_boxscore_raw"
	standingsCollection    = "v2_standings"
	playoffsCollection     = "v2_playoffs"
	teamPlayersCollection  = "v2_api_team_players"
	playerCareerCollection = "v2_api_player_career"
)

// RegistryReader is the slice of the game registry the refresher needs.
type RegistryReader interface {
	ReadGame(gameUUID string) (model.Game, bool)
	ReadCurrentSeason() []model.Game
}

// boxscoreRecord is what's persisted per finished game so player stats can
// be rebuilt by replaying every persisted boxscore for a season.
type boxscoreRecord struct {
	Season string                 `json:"season"`
	Lines  []model.PlayerStatLine `json:"lines"`
}

// StatsBroadcaster is the slice of the WebSocket broadcaster the refresher
// notifies after rebuilding a derived collection.
type StatsBroadcaster interface {
	BroadcastStats(gameUUID, kind string)
}

// Refresher is the bus subscriber that rebuilds Standings/Playoffs/
// PlayerStats whenever a ReportUpdated/EventUpdated message references a
// now-Finished game. The bus serializes a single subscription's handler
// calls, so each downstream collection is rebuilt at most once per message.
type Refresher struct {
	registry RegistryReader
	client   *upstream.Client
	st       *store.Store
	ws       StatsBroadcaster // nil is valid: broadcast becomes a no-op
}

func NewRefresher(registry RegistryReader, client *upstream.Client, st *store.Store, ws StatsBroadcaster) *Refresher {
	return &Refresher{registry: registry, client: client, st: st, ws: ws}
}

func (r *Refresher) notify(gameUUID, kind string) {
	if r.ws != nil {
		r.ws.BroadcastStats(gameUUID, kind)
	}
}

// Subscribe registers the refresher as a bus consumer.
func (r *Refresher) Subscribe(b *bus.Bus) {
	b.Subscribe("aggregates", r.handle)
}

func (r *Refresher) handle(msg bus.Message) {
	if msg.Type != bus.MsgReportUpdated && msg.Type != bus.MsgEventUpdated {
		return
	}
	game, ok := r.registry.ReadGame(msg.GameUUID)
	if !ok || !game.Played {
		return
	}
	r.RefreshGame(context.Background(), game)
}

// ReadGameBoxscore returns the persisted per-player lines for one game, for
// the `/v2/game/{uuid}` handler's composed response.
func ReadGameBoxscore(st *store.Store, gameUUID string) ([]model.PlayerStatLine, bool) {
	var rec boxscoreRecord
	if !st.Read(boxscoreRawCollection, gameUUID, &rec) {
		return nil, false
	}
	return rec.Lines, true
}

// Bootstrap builds every derived collection once from a full season
// snapshot: one boxscore fetch per finished game, then a single rebuild per
// (league, season) instead of one per game. Called by the orchestrator at
// boot before the bus starts carrying live traffic.
func (r *Refresher) Bootstrap(ctx context.Context, games []model.Game) {
	leagueSeasons := make(map[[2]string]bool)
	seasons := make(map[string]bool)

	for _, g := range games {
		if !g.Played {
			continue
		}
		r.fetchBoxscore(ctx, g)
		leagueSeasons[[2]string{g.League, g.Season}] = true
		seasons[g.Season] = true
	}

	for ls := range leagueSeasons {
		r.rebuildStandings(ls[0], ls[1])
	}
	for season := range seasons {
		r.rebuildPlayoffs(season)
		r.rebuildPlayerStats(season)
	}
}

// RefreshGame pulls the finished game's boxscore, persists it, and rebuilds
// every derived collection touching its (league, season).
func (r *Refresher) RefreshGame(ctx context.Context, game model.Game) {
	r.fetchBoxscore(ctx, game)
	r.rebuildStandings(game.League, game.Season)
	r.rebuildPlayoffs(game.Season)
	r.rebuildPlayerStats(game.Season)
}

func (r *Refresher) fetchBoxscore(ctx context.Context, game model.Game) {
	league := upstream.League(game.League)

	if players, ok := r.client.FetchBoxscore(ctx, league, game.GameUUID); ok {
		lines := make([]model.PlayerStatLine, 0, len(players))
		for _, p := range players {
			lines = append(lines, model.PlayerStatLine{
				PlayerID: p.PlayerID, TeamCode: p.TeamCode, Name: p.Name,
				Position: p.Position,
				Goals: p.Goals, Assists: p.Assists, PlusMinus: p.PlusMinus,
				TOISeconds: p.TOISeconds, PenaltyMinutes: p.PenaltyMinutes,
				Saves: p.Saves, GoalsAgainst: p.GoalsAgainst,
			})
		}
		r.st.Write(boxscoreRawCollection, game.GameUUID, boxscoreRecord{Season: game.Season, Lines: lines})
	} else {
		telemetry.Warnf("aggregate: boxscore fetch failed for %s, rebuilding without this game's lines", game.GameUUID)
	}
}

func (r *Refresher) rebuildStandings(league, season string) {
	games := r.registry.ReadCurrentSeason()
	rows := Standings(games, league, season)
	r.st.Write(standingsCollection, league+"_"+season, rows)
	r.notify("", "standings")
}

func (r *Refresher) rebuildPlayoffs(season string) {
	games := r.registry.ReadCurrentSeason()
	entries := Playoffs(games, season, DefaultBracketTemplate())
	r.st.Write(playoffsCollection, season, entries)
	r.notify("", "playoffs")
}

func (r *Refresher) rebuildPlayerStats(season string) {
	var boxscores []GameBoxscore
	names := make(map[string]string)

	r.st.ReadAll(boxscoreRawCollection, func(key string, data []byte) {
		var rec boxscoreRecord
		if err := jsoncodec.Unmarshal(data, &rec); err != nil || rec.Season != season {
			return
		}
		for _, l := range rec.Lines {
			if l.Name != "" {
				names[l.PlayerID] = l.Name
			}
		}
		boxscores = append(boxscores, GameBoxscore{Season: rec.Season, Lines: rec.Lines})
	})

	bySeasonTeam, byPlayer := PlayerStats(boxscores, names)
	for key, rows := range bySeasonTeam {
		r.st.Write(teamPlayersCollection, key, rows)
	}
	for playerID, career := range byPlayer {
		r.st.Write(playerCareerCollection, playerID, career)
	}
	r.notify("", "player_stats")
}
