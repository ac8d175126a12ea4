package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLegalSuccessor(t *testing.T) {
	cases := []struct {
		from, to GameStatus
		legal    bool
	}{
		{StatusComing, StatusPeriod1, true},
		{StatusComing, StatusPeriod2, false},
		{StatusPeriod1, StatusIntermission, true},
		{StatusPeriod1, StatusPeriod2, true},
		{StatusPeriod1, StatusFinished, false},
		{StatusPeriod3, StatusFinished, true},
		{StatusPeriod3, StatusOvertime, true},
		{StatusOvertime, StatusShootout, true},
		{StatusIntermission, StatusPeriod1, true},
		{StatusIntermission, StatusOvertime, true},
		{StatusFinished, StatusPeriod1, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.legal, LegalSuccessor(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestGameStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusFinished.IsTerminal())
	assert.False(t, StatusPeriod1.IsTerminal())
}

func TestReportWinner(t *testing.T) {
	t.Run("home wins", func(t *testing.T) {
		r := Report{HomeScore: 3, AwayScore: 1}
		assert.Equal(t, "LHF", r.Winner("LHF", "FBK"))
	})
	t.Run("away wins", func(t *testing.T) {
		r := Report{HomeScore: 1, AwayScore: 3}
		assert.Equal(t, "FBK", r.Winner("LHF", "FBK"))
	})
	t.Run("tie has no winner", func(t *testing.T) {
		r := Report{HomeScore: 2, AwayScore: 2}
		assert.Equal(t, "", r.Winner("LHF", "FBK"))
	})
}

func TestReportUpdateMergeOnto(t *testing.T) {
	prior := Report{Status: StatusPeriod1, GameTime: "10:00", HomeScore: 1, AwayScore: 0}

	t.Run("nil fields leave prior value untouched", func(t *testing.T) {
		merged := ReportUpdate{}.MergeOnto(prior)
		assert.Equal(t, prior, merged)
	})

	t.Run("only populated fields change", func(t *testing.T) {
		newScore := 2
		merged := ReportUpdate{HomeScore: &newScore}.MergeOnto(prior)
		assert.Equal(t, 2, merged.HomeScore)
		assert.Equal(t, prior.AwayScore, merged.AwayScore)
		assert.Equal(t, prior.GameTime, merged.GameTime)
	})

	t.Run("prior is not mutated", func(t *testing.T) {
		newStatus := StatusIntermission
		_ = ReportUpdate{Status: &newStatus}.MergeOnto(prior)
		assert.Equal(t, StatusPeriod1, prior.Status)
	})
}

func TestGameIsPotentiallyLive(t *testing.T) {
	now := time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)

	t.Run("finished game is never live", func(t *testing.T) {
		g := Game{Status: StatusFinished, StartTime: now.Add(-time.Hour)}
		assert.False(t, g.IsPotentiallyLive(now))
	})

	t.Run("starts within 3 minutes is live", func(t *testing.T) {
		g := Game{Status: StatusComing, StartTime: now.Add(2 * time.Minute)}
		assert.True(t, g.IsPotentiallyLive(now))
	})

	t.Run("starts far in the future is not live", func(t *testing.T) {
		g := Game{Status: StatusComing, StartTime: now.Add(time.Hour)}
		assert.False(t, g.IsPotentiallyLive(now))
	})

	t.Run("in-progress game is live regardless of start time", func(t *testing.T) {
		g := Game{Status: StatusPeriod2, StartTime: now.Add(-2 * time.Hour)}
		assert.True(t, g.IsPotentiallyLive(now))
	})
}

func TestGameHasTeam(t *testing.T) {
	g := Game{HomeTeam: "LHF", AwayTeam: "FBK"}
	assert.True(t, g.HasTeam("LHF"))
	assert.True(t, g.HasTeam("FBK"))
	assert.False(t, g.HasTeam("MODO"))
}

func TestGameWithReportSetsPlayed(t *testing.T) {
	g := Game{}
	out := g.WithReport(Report{Status: StatusFinished, HomeScore: 4, AwayScore: 1})
	assert.True(t, out.Played)
	assert.Equal(t, 4, out.HomeScore)
}
