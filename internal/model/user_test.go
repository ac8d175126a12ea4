package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTallyPercentages(t *testing.T) {
	t.Run("truncates home share instead of rounding", func(t *testing.T) {
		// 101/110 = 91.8%, which must truncate to 91, not round to 92.
		summary := Tally{HomeCount: 101, AwayCount: 9}.Percentages()
		assert.Equal(t, 91, summary.HomePerc)
		assert.Equal(t, 9, summary.AwayPerc)
	})

	t.Run("always sums to exactly 100", func(t *testing.T) {
		cases := []Tally{
			{HomeCount: 1, AwayCount: 2},
			{HomeCount: 7, AwayCount: 3},
			{HomeCount: 1, AwayCount: 1},
			{HomeCount: 100, AwayCount: 1},
		}
		for _, tally := range cases {
			s := tally.Percentages()
			assert.Equal(t, 100, s.HomePerc+s.AwayPerc, "tally %+v", tally)
		}
	})

	t.Run("no votes yields zero-value summary", func(t *testing.T) {
		s := Tally{}.Percentages()
		assert.Equal(t, VoteSummary{}, s)
	})

	t.Run("all home votes", func(t *testing.T) {
		s := Tally{HomeCount: 5}.Percentages()
		assert.Equal(t, 100, s.HomePerc)
		assert.Equal(t, 0, s.AwayPerc)
	})
}

func TestUserHasMutedAndExplicit(t *testing.T) {
	u := User{MutedGames: []string{"g1"}, ExplicitGames: []string{"g2"}}
	assert.True(t, u.HasMuted("g1"))
	assert.False(t, u.HasMuted("g2"))
	assert.True(t, u.HasExplicit("g2"))
	assert.False(t, u.HasExplicit("g1"))
}

func TestUserSubscribesTo(t *testing.T) {
	u := User{SubscribedTeams: []string{"LHF", "FBK"}}
	assert.True(t, u.SubscribesTo("LHF"))
	assert.False(t, u.SubscribesTo("MODO"))
}

func TestUserLiveActivityFor(t *testing.T) {
	u := User{LiveActivities: []LiveActivity{{GameUUID: "a"}, {GameUUID: "b"}}}
	assert.Equal(t, 0, u.LiveActivityFor("a"))
	assert.Equal(t, 1, u.LiveActivityFor("b"))
	assert.Equal(t, -1, u.LiveActivityFor("c"))
}
