package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hanssonlabs/puckline/internal/model"
)

func deviceToken(s string) *string { return &s }

func TestShouldSend(t *testing.T) {
	game := model.Game{GameUUID: "g1", HomeTeam: "LHF", AwayTeam: "FBK"}

	t.Run("no device token never sends", func(t *testing.T) {
		u := model.User{SubscribedTeams: []string{"LHF"}}
		assert.False(t, shouldSend(u, game))
	})

	t.Run("muted game never sends even if subscribed", func(t *testing.T) {
		u := model.User{DeviceToken: deviceToken("tok"), SubscribedTeams: []string{"LHF"}, MutedGames: []string{"g1"}}
		assert.False(t, shouldSend(u, game))
	})

	t.Run("subscribed to home team sends", func(t *testing.T) {
		u := model.User{DeviceToken: deviceToken("tok"), SubscribedTeams: []string{"LHF"}}
		assert.True(t, shouldSend(u, game))
	})

	t.Run("explicit game opt-in sends without subscription", func(t *testing.T) {
		u := model.User{DeviceToken: deviceToken("tok"), ExplicitGames: []string{"g1"}}
		assert.True(t, shouldSend(u, game))
	})

	t.Run("unrelated team and no explicit opt-in does not send", func(t *testing.T) {
		u := model.User{DeviceToken: deviceToken("tok"), SubscribedTeams: []string{"MODO"}}
		assert.False(t, shouldSend(u, game))
	})
}

func TestAlertTextGoal(t *testing.T) {
	game := model.Game{HomeTeam: "LHF", AwayTeam: "FBK", HomeScore: 2, AwayScore: 1}

	t.Run("subscriber to scoring team gets the excited title", func(t *testing.T) {
		u := model.User{SubscribedTeams: []string{"LHF"}}
		evt := model.Event{Payload: model.GoalPayload{Team: "LHF"}}
		title, body := alertText(u, evt, game)
		assert.Equal(t, "MÅÅÅL för LHF! 🎉", title)
		assert.Contains(t, body, "2 - 1")
	})

	t.Run("non-subscriber gets the plain title", func(t *testing.T) {
		u := model.User{SubscribedTeams: []string{"FBK"}}
		evt := model.Event{Payload: model.GoalPayload{Team: "LHF"}}
		title, _ := alertText(u, evt, game)
		assert.NotContains(t, title, "🎉")
	})
}

func TestAlertTextGameEnd(t *testing.T) {
	game := model.Game{HomeTeam: "LHF", AwayTeam: "FBK"}

	t.Run("tie has a neutral title", func(t *testing.T) {
		evt := model.Event{Payload: model.GameEndPayload{}}
		title, _ := alertText(model.User{}, evt, game)
		assert.Contains(t, title, "oavgjort")
	})

	t.Run("winner subscriber gets the celebratory title", func(t *testing.T) {
		u := model.User{SubscribedTeams: []string{"LHF"}}
		evt := model.Event{Payload: model.GameEndPayload{Winner: "LHF"}}
		title, _ := alertText(u, evt, game)
		assert.Equal(t, "LHF vinner! 🥇", title)
	})
}

func TestEventField(t *testing.T) {
	assert.Equal(t, "end", eventField(true))
	assert.Equal(t, "update", eventField(false))
}
