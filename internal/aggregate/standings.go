// Package aggregate implements the standings, playoff, and player-stats
// derived read-models: pure functions over a snapshot of finished games,
// refreshed whenever a ReportUpdated/EventUpdated bus message references a
// now-Finished game.
package aggregate

import (
	"sort"

	"github.com/hanssonlabs/puckline/internal/model"
)

// Standings computes one league's table for one season, filtered to
// Season-type finished games. Ranking: points desc, ties broken by
// goal-diff desc; teams with gp=0 sort last with rank 0.
func Standings(games []model.Game, league, season string) []model.StandingsRow {
	rows := make(map[string]*model.StandingsRow)
	order := func(code string) *model.StandingsRow {
		if r, ok := rows[code]; ok {
			return r
		}
		r := &model.StandingsRow{TeamCode: code}
		rows[code] = r
		return r
	}

	for _, g := range games {
		if g.League != league || g.Season != season || g.GameType != model.GameTypeSeason || !g.Played {
			continue
		}
		home := order(g.HomeTeam)
		away := order(g.AwayTeam)
		home.GP++
		away.GP++
		home.GoalDiff += g.HomeScore - g.AwayScore
		away.GoalDiff += g.AwayScore - g.HomeScore

		switch {
		case g.HomeScore > g.AwayScore && !g.Overtime && !g.Shootout:
			home.Points += 3
		case g.AwayScore > g.HomeScore && !g.Overtime && !g.Shootout:
			away.Points += 3
		case g.HomeScore > g.AwayScore:
			home.Points += 2
			away.Points += 1
		case g.AwayScore > g.HomeScore:
			away.Points += 2
			home.Points += 1
		}
	}

	out := make([]model.StandingsRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.GP == 0 || b.GP == 0 {
			if a.GP == 0 && b.GP != 0 {
				return false
			}
			if a.GP != 0 && b.GP == 0 {
				return true
			}
		}
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.GoalDiff > b.GoalDiff
	})

	rank := 1
	for i := range out {
		if out[i].GP == 0 {
			out[i].Rank = 0
			continue
		}
		out[i].Rank = rank
		rank++
	}
	return out
}
