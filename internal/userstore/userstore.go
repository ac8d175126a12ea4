// Package userstore keeps one JSON file per user in the artifact store,
// keyed by user_id. There is no in-memory aggregate: every mutation is a
// read-modify-write of a single user's record.
package userstore

import (
	jsoncodec "github.com/goccy/go-json"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
)

const usersCollection = "v2_user"

// Store is the single owner of per-user records.
type Store struct {
	st *store.Store
}

func New(st *store.Store) *Store {
	return &Store{st: st}
}

// AddUser upserts subscriptions, device token, and the per-game
// mute/explicit lists onto the user's record. A nil deviceToken,
// mutedGames, or explicitGames leaves that field as it was.
func (s *Store) AddUser(userID string, subscribedTeams []string, deviceToken *string, mutedGames, explicitGames []string) model.User {
	u, _ := s.get(userID)
	u.UserID = userID
	u.SubscribedTeams = subscribedTeams
	if deviceToken != nil {
		u.DeviceToken = deviceToken
	}
	if mutedGames != nil {
		u.MutedGames = mutedGames
	}
	if explicitGames != nil {
		u.ExplicitGames = explicitGames
	}
	s.st.Write(usersCollection, userID, u)
	return u
}

// StartLiveActivity replaces any prior live-activity entry for the same
// game; starting twice never duplicates.
func (s *Store) StartLiveActivity(userID, gameUUID, activityToken string) {
	u, _ := s.get(userID)
	u.UserID = userID
	entries := make([]model.LiveActivity, 0, len(u.LiveActivities)+1)
	for _, la := range u.LiveActivities {
		if la.GameUUID != gameUUID {
			entries = append(entries, la)
		}
	}
	entries = append(entries, model.LiveActivity{GameUUID: gameUUID, ActivityToken: activityToken})
	u.LiveActivities = entries
	s.st.Write(usersCollection, userID, u)
}

// EndLiveActivity removes the user's live-activity entry for gameUUID, if any.
func (s *Store) EndLiveActivity(userID, gameUUID string) {
	u, ok := s.get(userID)
	if !ok {
		return
	}
	entries := make([]model.LiveActivity, 0, len(u.LiveActivities))
	for _, la := range u.LiveActivities {
		if la.GameUUID != gameUUID {
			entries = append(entries, la)
		}
	}
	if len(entries) == len(u.LiveActivities) {
		return
	}
	u.LiveActivities = entries
	s.st.Write(usersCollection, userID, u)
}

// ClearDeviceToken nulls a user's device token after APNs reports it invalid.
func (s *Store) ClearDeviceToken(userID string) {
	u, ok := s.get(userID)
	if !ok {
		return
	}
	u.DeviceToken = nil
	s.st.Write(usersCollection, userID, u)
}

// RemoveReferencesTo purges every reference to gameUUID across all users:
// live-activity entries, mutes, and explicit subscriptions. Called when
// that game's listener terminates.
func (s *Store) RemoveReferencesTo(gameUUID string) {
	s.StreamAll(func(u model.User) {
		changed := false

		if idx := u.LiveActivityFor(gameUUID); idx >= 0 {
			u.LiveActivities = append(u.LiveActivities[:idx], u.LiveActivities[idx+1:]...)
			changed = true
		}

		var removed bool
		u.MutedGames, removed = removeIfPresent(u.MutedGames, gameUUID)
		changed = changed || removed
		u.ExplicitGames, removed = removeIfPresent(u.ExplicitGames, gameUUID)
		changed = changed || removed

		if changed {
			s.st.Write(usersCollection, u.UserID, u)
		}
	})
}

// StreamAll yields a snapshot of every persisted user record. Per-entry
// decode failures are skipped.
func (s *Store) StreamAll(fn func(model.User)) {
	s.st.ReadAll(usersCollection, func(key string, data []byte) {
		var u model.User
		if err := jsoncodec.Unmarshal(data, &u); err != nil {
			return
		}
		fn(u)
	})
}

func (s *Store) get(userID string) (model.User, bool) {
	var u model.User
	ok := s.st.Read(usersCollection, userID, &u)
	return u, ok
}

func removeIfPresent(ss []string, v string) ([]string, bool) {
	out := make([]string, 0, len(ss))
	removed := false
	for _, s := range ss {
		if s == v {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out, removed
}
