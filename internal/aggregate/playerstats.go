package aggregate

import "github.com/hanssonlabs/puckline/internal/model"

// GameBoxscore is one finished game's per-player lines, the unit
// PlayerStats accumulates over.
type GameBoxscore struct {
	Season string
	Lines  []model.PlayerStatLine
}

// PlayerStats aggregates per-(player_id, season, team_code) totals across
// every finished game's boxscore, and returns both indexed views: by
// player id (career across seasons) and by (season, team) for roster
// listings.
func PlayerStats(boxscores []GameBoxscore, names map[string]string) (bySeasonTeam map[string][]model.PlayerSeasonStat, byPlayer map[string]model.PlayerCareerStat) {
	type key struct {
		playerID, season, team string
	}
	totals := make(map[key]*model.PlayerSeasonStat)

	for _, bs := range boxscores {
		for _, line := range bs.Lines {
			k := key{line.PlayerID, bs.Season, line.TeamCode}
			s, ok := totals[k]
			if !ok {
				s = &model.PlayerSeasonStat{PlayerID: line.PlayerID, Season: bs.Season, TeamCode: line.TeamCode, Name: names[line.PlayerID]}
				totals[k] = s
			}
			s.Add(line)
		}
	}

	bySeasonTeam = make(map[string][]model.PlayerSeasonStat)
	byPlayerSeasons := make(map[string][]model.PlayerSeasonStat)
	for k, s := range totals {
		rosterKey := k.season + "|" + k.team
		bySeasonTeam[rosterKey] = append(bySeasonTeam[rosterKey], *s)
		byPlayerSeasons[k.playerID] = append(byPlayerSeasons[k.playerID], *s)
	}

	byPlayer = make(map[string]model.PlayerCareerStat)
	for playerID, seasons := range byPlayerSeasons {
		byPlayer[playerID] = model.PlayerCareerStat{PlayerID: playerID, Name: names[playerID], Seasons: seasons}
	}
	return bySeasonTeam, byPlayer
}

// RosterKey builds the (season, team) lookup key PlayerStats indexes by.
func RosterKey(season, teamCode string) string { return season + "|" + teamCode }
