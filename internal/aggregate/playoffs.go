package aggregate

import "github.com/hanssonlabs/puckline/internal/model"

// DefaultBracketTemplate is the hand-authored SHL playoff shape:
// eighth-finals seed into quarters, quarters into semis, semis into the
// final, plus a parallel demotion series. Every slot is "TBD" and nothing
// in this module replaces those team codes, so with this template Playoffs
// leaves every entry at 0-0; Playoffs itself only ever fills in scores.
func DefaultBracketTemplate() []model.PlayoffEntry {
	return []model.PlayoffEntry{
		{Round: "eighth", Slot: "E1", Team1: "TBD", Team2: "TBD"},
		{Round: "eighth", Slot: "E2", Team1: "TBD", Team2: "TBD"},
		{Round: "quarter", Slot: "Q1", Team1: "TBD", Team2: "TBD"},
		{Round: "quarter", Slot: "Q2", Team1: "TBD", Team2: "TBD"},
		{Round: "quarter", Slot: "Q3", Team1: "TBD", Team2: "TBD"},
		{Round: "quarter", Slot: "Q4", Team1: "TBD", Team2: "TBD"},
		{Round: "semi", Slot: "S1", Team1: "TBD", Team2: "TBD"},
		{Round: "semi", Slot: "S2", Team1: "TBD", Team2: "TBD"},
		{Round: "final", Slot: "F1", Team1: "TBD", Team2: "TBD"},
		{Round: "demotion", Slot: "D1", Team1: "TBD", Team2: "TBD"},
	}
}

// Playoffs fills in each bracket entry's (score1, score2) by counting wins
// in the filtered game set between its two teams. Entries naming a "TBD"
// team stay at 0-0.
func Playoffs(games []model.Game, season string, template []model.PlayoffEntry) []model.PlayoffEntry {
	out := make([]model.PlayoffEntry, len(template))
	for i, e := range template {
		out[i] = e
		if e.Team1 == "TBD" || e.Team2 == "TBD" {
			continue
		}
		gt := model.GameTypePlayoff
		if e.Round == "demotion" {
			gt = model.GameTypeDemotion
		}
		out[i].Score1, out[i].Score2 = countSeriesWins(games, season, gt, e.Team1, e.Team2)
	}
	return out
}

func countSeriesWins(games []model.Game, season string, gt model.GameType, team1, team2 string) (score1, score2 int) {
	for _, g := range games {
		if g.Season != season || g.GameType != gt || !g.Played {
			continue
		}
		if !g.HasTeam(team1) || !g.HasTeam(team2) {
			continue
		}
		switch g.Report().Winner(g.HomeTeam, g.AwayTeam) {
		case team1:
			score1++
		case team2:
			score2++
		}
	}
	return score1, score2
}
