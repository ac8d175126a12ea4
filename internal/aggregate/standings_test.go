package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanssonlabs/puckline/internal/model"
)

func TestStandingsRankingAndPoints(t *testing.T) {
	games := []model.Game{
		{League: "SHL", Season: "2025", GameType: model.GameTypeSeason, Played: true,
			HomeTeam: "LHF", AwayTeam: "FBK", HomeScore: 3, AwayScore: 1},
		{League: "SHL", Season: "2025", GameType: model.GameTypeSeason, Played: true,
			HomeTeam: "FBK", AwayTeam: "LHF", HomeScore: 3, AwayScore: 2, Overtime: true},
		// Wrong league/season/type are excluded.
		{League: "HA", Season: "2025", GameType: model.GameTypeSeason, Played: true,
			HomeTeam: "MODO", AwayTeam: "TIK", HomeScore: 1, AwayScore: 0},
		{League: "SHL", Season: "2024", GameType: model.GameTypeSeason, Played: true,
			HomeTeam: "LHF", AwayTeam: "FBK", HomeScore: 5, AwayScore: 0},
		{League: "SHL", Season: "2025", GameType: model.GameTypePlayoff, Played: true,
			HomeTeam: "LHF", AwayTeam: "FBK", HomeScore: 1, AwayScore: 0},
	}

	rows := Standings(games, "SHL", "2025")
	require.Len(t, rows, 2)

	byTeam := make(map[string]model.StandingsRow)
	for _, r := range rows {
		byTeam[r.TeamCode] = r
	}

	// LHF: regulation win (3) + OT loss (1) = 4 points, GP=2.
	assert.Equal(t, 4, byTeam["LHF"].Points)
	assert.Equal(t, 2, byTeam["LHF"].GP)
	assert.Equal(t, 1, byTeam["LHF"].Rank)

	// FBK: regulation loss (0) + OT win (2) = 2 points.
	assert.Equal(t, 2, byTeam["FBK"].Points)
	assert.Equal(t, 2, byTeam["FBK"].Rank)
}

// Standings only builds rows for teams that appear in a qualifying game, so
// every row it returns has gp>0 and a non-zero rank.
func TestStandingsPlayedTeamsNeverGetRankZero(t *testing.T) {
	games := []model.Game{
		{League: "SHL", Season: "2025", GameType: model.GameTypeSeason, Played: true,
			HomeTeam: "LHF", AwayTeam: "FBK", HomeScore: 1, AwayScore: 0},
	}
	rows := Standings(games, "SHL", "2025")
	for _, r := range rows {
		assert.NotEqual(t, 0, r.Rank)
	}
}

func TestPlayoffsCountsSeriesWins(t *testing.T) {
	template := []model.PlayoffEntry{
		{Round: "final", Slot: "F1", Team1: "LHF", Team2: "FBK"},
		{Round: "quarter", Slot: "Q1", Team1: "TBD", Team2: "TBD"},
	}
	games := []model.Game{
		{Season: "2025", GameType: model.GameTypePlayoff, Played: true,
			HomeTeam: "LHF", AwayTeam: "FBK", HomeScore: 3, AwayScore: 2},
		{Season: "2025", GameType: model.GameTypePlayoff, Played: true,
			HomeTeam: "FBK", AwayTeam: "LHF", HomeScore: 1, AwayScore: 4},
	}

	out := Playoffs(games, "2025", template)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Score1, "LHF won both games")
	assert.Equal(t, 0, out[0].Score2)
	assert.Equal(t, 0, out[1].Score1, "TBD slots never get scored")
}

func TestPlayerStatsAccumulatesAcrossGames(t *testing.T) {
	boxscores := []GameBoxscore{
		{Season: "2025", Lines: []model.PlayerStatLine{
			{PlayerID: "p1", TeamCode: "LHF", Name: "Ek", Goals: 2, Assists: 1, TOISeconds: 1200},
		}},
		{Season: "2025", Lines: []model.PlayerStatLine{
			{PlayerID: "p1", TeamCode: "LHF", Name: "Ek", Goals: 1, TOISeconds: 900},
		}},
	}

	bySeasonTeam, byPlayer := PlayerStats(boxscores, map[string]string{"p1": "Ek"})

	roster := bySeasonTeam[RosterKey("2025", "LHF")]
	require.Len(t, roster, 1)
	assert.Equal(t, 3, roster[0].Goals)
	assert.Equal(t, 1, roster[0].Assists)
	assert.Equal(t, 4, roster[0].Points)
	assert.Equal(t, 2, roster[0].GP)

	career := byPlayer["p1"]
	assert.Equal(t, "Ek", career.Name)
	require.Len(t, career.Seasons, 1)
}

func TestPlayerSeasonStatAddGPCrediting(t *testing.T) {
	t.Run("goalkeeper with saves gets a game", func(t *testing.T) {
		var s model.PlayerSeasonStat
		s.Add(model.PlayerStatLine{PlayerID: "g1", Saves: 20, GoalsAgainst: 2})
		assert.Equal(t, 1, s.GP)
		assert.Equal(t, 20, s.Saves)
	})

	t.Run("goalkeeper without saves gets none", func(t *testing.T) {
		var s model.PlayerSeasonStat
		s.Add(model.PlayerStatLine{PlayerID: "g2", Position: "GK"})
		assert.Equal(t, 0, s.GP)
	})

	t.Run("skater gets a game even on a zero-stat line", func(t *testing.T) {
		var s model.PlayerSeasonStat
		s.Add(model.PlayerStatLine{PlayerID: "p1"})
		assert.Equal(t, 1, s.GP)
	})
}
