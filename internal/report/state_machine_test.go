package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanssonlabs/puckline/internal/model"
)

func TestProcess(t *testing.T) {
	t.Run("Coming to Period1 yields GameStart", func(t *testing.T) {
		old := model.Report{Status: model.StatusComing}
		next := model.Report{Status: model.StatusPeriod1}
		hl := Process(next, old, "LHF", "FBK")
		require.NotNil(t, hl)
		assert.Equal(t, model.PayloadGameStart, hl.Kind)
	})

	t.Run("any transition into Finished yields GameEnd with winner", func(t *testing.T) {
		old := model.Report{Status: model.StatusOvertime, HomeScore: 2, AwayScore: 1}
		next := model.Report{Status: model.StatusFinished, HomeScore: 2, AwayScore: 1}
		hl := Process(next, old, "LHF", "FBK")
		require.NotNil(t, hl)
		assert.Equal(t, model.PayloadGameEnd, hl.Kind)
		assert.Equal(t, "LHF", hl.Winner)
	})

	t.Run("Finished to Finished is not a transition", func(t *testing.T) {
		old := model.Report{Status: model.StatusFinished}
		next := model.Report{Status: model.StatusFinished}
		assert.Nil(t, Process(next, old, "LHF", "FBK"))
	})

	t.Run("tie into Finished carries no winner", func(t *testing.T) {
		old := model.Report{Status: model.StatusShootout, HomeScore: 2, AwayScore: 2}
		next := model.Report{Status: model.StatusFinished, HomeScore: 2, AwayScore: 2}
		hl := Process(next, old, "LHF", "FBK")
		require.NotNil(t, hl)
		assert.Equal(t, "", hl.Winner)
	})

	t.Run("ordinary in-progress transition yields nothing", func(t *testing.T) {
		old := model.Report{Status: model.StatusPeriod1}
		next := model.Report{Status: model.StatusIntermission}
		assert.Nil(t, Process(next, old, "LHF", "FBK"))
	})
}

func TestIsValidUpdate(t *testing.T) {
	t.Run("same status accepted on gametime change", func(t *testing.T) {
		old := model.Report{Status: model.StatusPeriod1, GameTime: "10:00"}
		next := old
		next.GameTime = "09:45"
		assert.True(t, IsValidUpdate(old, next))
	})

	t.Run("same status accepted on score increase", func(t *testing.T) {
		old := model.Report{Status: model.StatusPeriod1, HomeScore: 1}
		next := old
		next.HomeScore = 2
		assert.True(t, IsValidUpdate(old, next))
	})

	t.Run("same status rejected when score decreases", func(t *testing.T) {
		old := model.Report{Status: model.StatusPeriod1, HomeScore: 2}
		next := old
		next.HomeScore = 1
		assert.False(t, IsValidUpdate(old, next))
	})

	t.Run("same status rejected when nothing changed", func(t *testing.T) {
		old := model.Report{Status: model.StatusPeriod1, GameTime: "10:00", HomeScore: 1}
		next := old
		assert.False(t, IsValidUpdate(old, next))
	})

	t.Run("Intermission gametime-only change is rejected", func(t *testing.T) {
		old := model.Report{Status: model.StatusIntermission, GameTime: "00:00"}
		next := old
		next.GameTime = "00:30"
		assert.False(t, IsValidUpdate(old, next))
	})

	t.Run("Intermission accepted when overtime flag flips", func(t *testing.T) {
		old := model.Report{Status: model.StatusIntermission}
		next := old
		next.Overtime = true
		assert.True(t, IsValidUpdate(old, next))
	})

	t.Run("status change accepted only for legal successors", func(t *testing.T) {
		old := model.Report{Status: model.StatusPeriod1}
		assert.True(t, IsValidUpdate(old, model.Report{Status: model.StatusPeriod2}))
		assert.False(t, IsValidUpdate(old, model.Report{Status: model.StatusFinished}))
	})
}
