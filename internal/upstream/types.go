// Package upstream implements the provider client: throttled HTTP GETs
// against the league feeds, cached through the artifact store so repeat
// calls inside a freshness window never touch the network.
package upstream

import "time"

// League is the closed set of leagues this core ingests.
type League string

const (
	LeagueSHL League = "SHL"
	LeagueHA  League = "HA"
)

// ProviderGame is the wire shape of one entry in the season schedule feed.
type ProviderGame struct {
	GameUUID      string    `json:"gameUuid"`
	HomeTeamCode  string    `json:"homeTeamCode"`
	AwayTeamCode  string    `json:"awayTeamCode"`
	StartDateTime time.Time `json:"startDateTime"`
	State         string    `json:"state"` // "pre-game" | "ongoing" | "post-game" | "postponed"
}

// seasonGamesResponse wraps the provider's game-info feed.
type seasonGamesResponse struct {
	Games []ProviderGame `json:"games"`
}

// ProviderEvent is one play-by-play / initial-events row.
type ProviderEvent struct {
	EventID     string `json:"eventId"`
	Type        string `json:"type"`
	Period      int    `json:"period"`
	GameTime    string `json:"gameTime"`
	Description string `json:"description"`
	TeamCode    string `json:"teamCode,omitempty"`
	Player      string `json:"player,omitempty"`
	HomeScore   int    `json:"homeScore"`
	AwayScore   int    `json:"awayScore"`
}

// eventsResponse wraps a play-by-play / initial-events feed.
type eventsResponse struct {
	Events []ProviderEvent `json:"events"`
}

// BoxscorePlayer is one player row from the boxscore feed.
type BoxscorePlayer struct {
	PlayerID       string `json:"playerId"`
	Name           string `json:"name"`
	TeamCode       string `json:"teamCode"`
	Position       string `json:"position"` // "GK" marks goalkeepers
	Goals          int    `json:"goals"`
	Assists        int    `json:"assists"`
	PlusMinus      int    `json:"plusMinus"`
	TOISeconds     int    `json:"toiSeconds"`
	PenaltyMinutes int    `json:"penaltyMinutes"`
	Saves          int    `json:"saves"`
	GoalsAgainst   int    `json:"goalsAgainst"`
}

// boxscoreResponse wraps the provider's boxscore feed.
type boxscoreResponse struct {
	Players []BoxscorePlayer `json:"players"`
}

// periodStatsResponse wraps the provider's team-statistics feed. Currently
// only fetched for opportunistic cache back-fill; no field is consumed
// beyond presence, so it's kept as a raw map.
type periodStatsResponse map[string]any

// gameTypeProviderID maps the closed GameType enum to the provider's fixed
// identifiers. These are stable across seasons.
var gameTypeProviderID = map[string]string{
	"season":   "16586da7-a45f-4e32-9e25-fa0c0f0e0f01",
	"playoff":  "16586da7-a45f-4e32-9e25-fa0c0f0e0f02",
	"demotion": "16586da7-a45f-4e32-9e25-fa0c0f0e0f03",
}
