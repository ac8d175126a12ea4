package model

// LiveActivity is a per-device persistent notification surface updated with
// fine-grained in-progress state for exactly one game.
type LiveActivity struct {
	GameUUID      string `json:"game_uuid"`
	ActivityToken string `json:"activity_token"`
}

// User is a subscriber's full per-user record.
type User struct {
	UserID          string         `json:"user_id"`
	SubscribedTeams []string       `json:"subscribed_teams"`
	DeviceToken     *string        `json:"device_token,omitempty"`
	LiveActivities  []LiveActivity `json:"live_activities"`
	MutedGames      []string       `json:"muted_games"`
	ExplicitGames   []string       `json:"explicit_games"`
}

func (u User) HasMuted(gameUUID string) bool    { return contains(u.MutedGames, gameUUID) }
func (u User) HasExplicit(gameUUID string) bool { return contains(u.ExplicitGames, gameUUID) }

func (u User) SubscribesTo(teamCode string) bool { return contains(u.SubscribedTeams, teamCode) }

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// LiveActivityFor returns the index of the user's live-activity entry for a
// game, or -1 if none exists.
func (u User) LiveActivityFor(gameUUID string) int {
	for i, la := range u.LiveActivities {
		if la.GameUUID == gameUUID {
			return i
		}
	}
	return -1
}

// Vote is a single user's pick for a game; keyed by (user_id, game_uuid).
type Vote struct {
	UserID       string `json:"user_id"`
	GameUUID     string `json:"game_uuid"`
	TeamCode     string `json:"team_code"`
	IsHomeWinner bool   `json:"is_home_winner"`
}

// Tally is the raw per-game vote count, before percentage conversion.
type Tally struct {
	HomeCount int `json:"home_count"`
	AwayCount int `json:"away_count"`
}

// Percentages converts a raw tally to percentages summing to exactly 100.
// Home's share is truncated (not rounded) and away is the remainder, so the
// pair always sums to 100 without a separate reconciliation step: 101 home
// and 9 away (110 total) yields 91/9, not a rounded 92/8.
func (t Tally) Percentages() VoteSummary {
	total := t.HomeCount + t.AwayCount
	if total == 0 {
		return VoteSummary{}
	}
	home := int(float64(t.HomeCount) / float64(total) * 100)
	if home > 100 {
		home = 100
	}
	return VoteSummary{HomePerc: home, AwayPerc: 100 - home}
}
