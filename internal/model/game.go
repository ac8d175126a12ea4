// Package model holds the canonical domain types shared by every component:
// games, reports, events, users, and votes. Nothing in this package talks to
// the network or the filesystem.
package model

import "time"

// GameType distinguishes the three provider game categories.
type GameType string

const (
	GameTypeSeason   GameType = "season"
	GameTypePlayoff  GameType = "playoff"
	GameTypeDemotion GameType = "demotion"
)

// GameStatus is the closed set of lifecycle states a game report can be in.
type GameStatus string

const (
	StatusComing       GameStatus = "Coming"
	StatusPeriod1      GameStatus = "Period1"
	StatusPeriod2      GameStatus = "Period2"
	StatusPeriod3      GameStatus = "Period3"
	StatusOvertime     GameStatus = "Overtime"
	StatusShootout     GameStatus = "Shootout"
	StatusIntermission GameStatus = "Intermission"
	StatusFinished     GameStatus = "Finished"
)

// legalSuccessors encodes which status transitions a report may take.
// Intermission fans out to all three periods plus Overtime/Shootout/Finished
// since the provider doesn't tell us which period is about to resume.
var legalSuccessors = map[GameStatus]map[GameStatus]bool{
	StatusComing:       set(StatusPeriod1),
	StatusPeriod1:      set(StatusIntermission, StatusPeriod2),
	StatusPeriod2:      set(StatusIntermission, StatusPeriod3),
	StatusPeriod3:      set(StatusIntermission, StatusFinished, StatusOvertime),
	StatusOvertime:     set(StatusIntermission, StatusFinished, StatusShootout),
	StatusShootout:     set(StatusIntermission, StatusFinished),
	StatusIntermission: set(StatusPeriod1, StatusPeriod2, StatusPeriod3, StatusOvertime, StatusShootout, StatusFinished),
	StatusFinished:     {},
}

func set(ss ...GameStatus) map[GameStatus]bool {
	m := make(map[GameStatus]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// LegalSuccessor reports whether `to` is a legal transition target from `from`.
func LegalSuccessor(from, to GameStatus) bool {
	return legalSuccessors[from][to]
}

// IsTerminal reports whether a status is never left once reached.
func (s GameStatus) IsTerminal() bool { return s == StatusFinished }

// VoteSummary is the externally-exposed percentage view of a game's picks.
type VoteSummary struct {
	HomePerc int `json:"home_perc"`
	AwayPerc int `json:"away_perc"`
}

// Report is the authoritative per-game status/score/clock record.
type Report struct {
	Status    GameStatus `json:"status"`
	GameTime  string     `json:"gametime"`
	HomeScore int        `json:"home_score"`
	AwayScore int        `json:"away_score"`
	Overtime  bool       `json:"overtime"`
	Shootout  bool       `json:"shootout"`
}

// Played reports whether the report represents a completed game.
func (r Report) Played() bool { return r.Status == StatusFinished }

// Winner returns the team code with the higher score, or "" on a tie.
// Callers supply the team codes since Report itself doesn't carry them.
func (r Report) Winner(homeTeam, awayTeam string) string {
	switch {
	case r.HomeScore > r.AwayScore:
		return homeTeam
	case r.AwayScore > r.HomeScore:
		return awayTeam
	default:
		return ""
	}
}

// ReportUpdate is a sparse partial of Report produced by a listener.
// Nil fields mean "no opinion"; the writer merges non-nil fields onto the
// prior Report.
type ReportUpdate struct {
	Status    *GameStatus `json:"status,omitempty"`
	GameTime  *string     `json:"gametime,omitempty"`
	HomeScore *int        `json:"home_score,omitempty"`
	AwayScore *int        `json:"away_score,omitempty"`
	Overtime  *bool       `json:"overtime,omitempty"`
	Shootout  *bool       `json:"shootout,omitempty"`
}

// MergeOnto applies the sparse update onto a copy of the prior report and
// returns the result. The prior report is never mutated.
func (u ReportUpdate) MergeOnto(prior Report) Report {
	out := prior
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.GameTime != nil {
		out.GameTime = *u.GameTime
	}
	if u.HomeScore != nil {
		out.HomeScore = *u.HomeScore
	}
	if u.AwayScore != nil {
		out.AwayScore = *u.AwayScore
	}
	if u.Overtime != nil {
		out.Overtime = *u.Overtime
	}
	if u.Shootout != nil {
		out.Shootout = *u.Shootout
	}
	return out
}

// Game is the canonical per-game record: provider-assigned identity plus the
// live projection the Registry and Writer keep current.
type Game struct {
	GameUUID  string    `json:"game_uuid"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	StartTime time.Time `json:"start_time"`
	Season    string    `json:"season"`
	League    string    `json:"league"`
	GameType  GameType  `json:"game_type"`
	Postponed bool      `json:"postponed,omitempty"`

	Status    GameStatus  `json:"status"`
	GameTime  string      `json:"gametime"`
	HomeScore int         `json:"home_score"`
	AwayScore int         `json:"away_score"`
	Overtime  bool        `json:"overtime"`
	Shootout  bool        `json:"shootout"`
	Played    bool        `json:"played"`
	Votes     VoteSummary `json:"vote_summary"`
}

// Report extracts the live projection's report-shaped fields.
func (g Game) Report() Report {
	return Report{
		Status:    g.Status,
		GameTime:  g.GameTime,
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		Overtime:  g.Overtime,
		Shootout:  g.Shootout,
	}
}

// WithReport returns a copy of g with the live projection overwritten by r.
func (g Game) WithReport(r Report) Game {
	out := g
	out.Status = r.Status
	out.GameTime = r.GameTime
	out.HomeScore = r.HomeScore
	out.AwayScore = r.AwayScore
	out.Overtime = r.Overtime
	out.Shootout = r.Shootout
	out.Played = r.Played()
	return out
}

// IsPotentiallyLive reports whether a game is eligible for a live listener:
// not yet finished and starting within three minutes (or already underway).
func (g Game) IsPotentiallyLive(now time.Time) bool {
	return g.Status != StatusFinished && g.StartTime.Before(now.Add(3*time.Minute))
}

// HasTeam reports whether teamCode plays in this game.
func (g Game) HasTeam(teamCode string) bool {
	return g.HomeTeam == teamCode || g.AwayTeam == teamCode
}
