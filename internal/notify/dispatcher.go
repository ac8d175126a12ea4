package notify

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/report"
)

// UserStore is the slice of the user store the dispatcher needs: lazy
// iteration plus the two token-invalidation mutations.
type UserStore interface {
	StreamAll(fn func(model.User))
	ClearDeviceToken(userID string)
	EndLiveActivity(userID, gameUUID string)
}

// Dispatcher computes at most one push per user for every (game, event?)
// pair the writer hands it, fanning the pushes out concurrently and joining
// the batch before returning.
type Dispatcher struct {
	users UserStore
	apns  *APNsClient
	pool  *workerpool.WorkerPool
}

func NewDispatcher(users UserStore, apns *APNsClient) *Dispatcher {
	return &Dispatcher{
		users: users,
		apns:  apns,
		pool:  workerpool.New(runtime.GOMAXPROCS(0) * 4),
	}
}

// Stop releases the dispatcher's worker pool. Call once at shutdown.
func (d *Dispatcher) Stop() { d.pool.StopWait() }

// DispatchAlert is the writer's high-level-event path: wraps the derived
// GameStart/GameEnd into a synthetic Event so the same push-text logic
// handles both it and raw listener events.
func (d *Dispatcher) DispatchAlert(game model.Game, hl *report.HighLevelEvent, rpt model.Report) {
	var payload model.EventPayload
	switch hl.Kind {
	case model.PayloadGameStart:
		payload = model.GameStartPayload{}
	case model.PayloadGameEnd:
		payload = model.GameEndPayload{Winner: hl.Winner}
	}
	evt := model.Event{GameUUID: game.GameUUID, Status: rpt.Status, GameTime: rpt.GameTime, Payload: payload}
	d.fanOut(game, &evt, rpt)
}

// DispatchLiveActivityOnly is the writer's path for an accepted report
// update that didn't derive a high-level event: live-activity holders still
// get a silent content-state refresh, everyone else gets nothing.
func (d *Dispatcher) DispatchLiveActivityOnly(game model.Game, rpt model.Report) {
	d.fanOut(game, nil, rpt)
}

// DispatchEvent is the writer's AddEvent path for Medium/High level events.
func (d *Dispatcher) DispatchEvent(game model.Game, evt model.Event) {
	d.fanOut(game, &evt, game.Report())
}

func (d *Dispatcher) fanOut(game model.Game, evt *model.Event, rpt model.Report) {
	var wg sync.WaitGroup
	d.users.StreamAll(func(u model.User) {
		wg.Add(1)
		d.pool.Submit(func() {
			defer wg.Done()
			d.pushOne(u, game, evt, rpt)
		})
	})
	wg.Wait()
}

// pushOne walks the push-selection tree for one user: a live-activity push
// when the user holds an entry for the game, else a High-level alert when
// the should-send predicate passes, else nothing.
func (d *Dispatcher) pushOne(u model.User, game model.Game, evt *model.Event, rpt model.Report) {
	ctx := context.Background()

	if idx := u.LiveActivityFor(game.GameUUID); idx >= 0 {
		d.pushLiveActivity(ctx, u, u.LiveActivities[idx].ActivityToken, game, evt, rpt)
		return
	}

	if evt == nil || evt.Payload == nil || evt.Payload.Level() != model.LevelHigh {
		return
	}
	if !shouldSend(u, game) {
		return
	}
	d.pushAlert(ctx, u, game, *evt)
}

func (d *Dispatcher) pushLiveActivity(ctx context.Context, u model.User, activityToken string, game model.Game, evt *model.Event, rpt model.Report) {
	isEnd := evt != nil && evt.Payload != nil && evt.Payload.Kind() == model.PayloadGameEnd

	payload := PushPayload{
		APS: APS{
			Event:        eventField(isEnd),
			ContentState: &ContentState{Report: rpt, Event: evt},
		},
		GameUUID: game.GameUUID,
	}
	priority := 5
	if evt != nil {
		title, body := alertText(u, *evt, game)
		payload.APS.Alert = &Alert{Title: title, Body: body}
		priority = 10
	}

	result := d.apns.Send(ctx, activityToken, "liveactivity", priority, game.GameUUID, payload)
	switch result {
	case PushOk:
		if isEnd {
			d.users.EndLiveActivity(u.UserID, game.GameUUID)
		}
	case PushBadDeviceToken:
		// Bad token applies to this specific (user, game) live-activity
		// entry only; other entries for this user are untouched.
		d.users.EndLiveActivity(u.UserID, game.GameUUID)
	}
}

func (d *Dispatcher) pushAlert(ctx context.Context, u model.User, game model.Game, evt model.Event) {
	title, body := alertText(u, evt, game)
	payload := PushPayload{
		APS:      APS{Alert: &Alert{Title: title, Body: body}, Sound: "default"},
		GameUUID: game.GameUUID,
	}
	result := d.apns.Send(ctx, *u.DeviceToken, "alert", 10, game.GameUUID, payload)
	if result == PushBadDeviceToken {
		d.users.ClearDeviceToken(u.UserID)
	}
}

// shouldSend reports whether a user gets alert pushes for this game: a
// device token is present, the game isn't muted, and the user follows the
// game explicitly or subscribes to either team.
func shouldSend(u model.User, game model.Game) bool {
	if u.DeviceToken == nil {
		return false
	}
	if u.HasMuted(game.GameUUID) {
		return false
	}
	return u.HasExplicit(game.GameUUID) || u.SubscribesTo(game.HomeTeam) || u.SubscribesTo(game.AwayTeam)
}

func eventField(isEnd bool) string {
	if isEnd {
		return "end"
	}
	return "update"
}

// alertText derives the localized title and scoreboard body for one event.
func alertText(u model.User, evt model.Event, game model.Game) (title, body string) {
	body = scoreboardLine(game)

	switch p := evt.Payload.(type) {
	case model.GameStartPayload:
		title = "Nedsläpp"
	case model.GoalPayload:
		if u.SubscribesTo(p.Team) {
			title = fmt.Sprintf("MÅÅÅL för %s! 🎉", p.Team)
		} else {
			title = fmt.Sprintf("Mål för %s", p.Team)
		}
	case model.GameEndPayload:
		switch {
		case p.Winner != "" && u.SubscribesTo(p.Winner):
			title = fmt.Sprintf("%s vinner! 🥇", p.Winner)
		case p.Winner != "":
			title = fmt.Sprintf("%s vinner", p.Winner)
		default:
			title = "Matchen slutade oavgjort"
		}
	case model.PenaltyPayload:
		title = fmt.Sprintf("Utvisning: %s", p.Team)
	default:
		title = evt.Description
		if title == "" {
			title = "Matchuppdatering"
		}
	}
	return title, body
}

func scoreboardLine(game model.Game) string {
	return fmt.Sprintf("%s %d - %d %s", game.HomeTeam, game.HomeScore, game.AwayScore, game.AwayTeam)
}
