// Package listener implements the per-game live listener: one transport
// (SSE or polling) per game, normalizing upstream telemetry into bus
// messages and owning its own dedup state and idle handling.
package listener

import (
	"context"
	"time"

	"github.com/hanssonlabs/puckline/internal/bus"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
	"github.com/hanssonlabs/puckline/internal/upstream"
)

const idleTimeout = 5 * time.Minute

// ExitReason reports why a listener's Run returned.
type ExitReason int

const (
	ExitCancelled ExitReason = iota
	ExitFinished
	ExitIdleRestart
)

// RegistryReader is the read-only slice of the registry a listener needs
// for its idle-timeout rule.
type RegistryReader interface {
	ReadCurrentSeasonGame(gameUUID string) (model.Game, bool)
}

// UserPurger is the slice of the user store a listener calls when a game
// it was watching is done and idle.
type UserPurger interface {
	RemoveReferencesTo(gameUUID string)
}

// Listener holds everything a single game's listener needs, shared by both
// transports.
type Listener struct {
	GameUUID string
	League   upstream.League

	Bus      *bus.Bus
	Store    *store.Store
	Registry RegistryReader
	Users    UserPurger
	Client   *upstream.Client

	dedup *dedup
}

// New constructs the shared listener state for one game. Callers wrap it in
// either NewSSE or NewPoll depending on Config.Poll.
func New(gameUUID string, league upstream.League, b *bus.Bus, st *store.Store, reg RegistryReader, users UserPurger, client *upstream.Client) *Listener {
	return &Listener{
		GameUUID: gameUUID,
		League:   league,
		Bus:      b,
		Store:    st,
		Registry: reg,
		Users:    users,
		Client:   client,
		dedup:    newDedup(),
	}
}

// handleGameReport handles a full report snapshot: dedup by revision, then
// emit a single UpdateReport carrying every report field.
func (l *Listener) handleGameReport(f gameReportFrame) {
	if l.dedup.SeenRevision(f.Revision) {
		return
	}
	status := model.GameStatus(providerStatus(f.Status))
	delta := model.ReportUpdate{
		GameTime:  &f.GameTime,
		HomeScore: &f.HomeScore,
		AwayScore: &f.AwayScore,
		Overtime:  &f.Overtime,
		Shootout:  &f.Shootout,
	}
	if status != "" {
		delta.Status = &status
	}
	l.Bus.Publish(bus.UpdateReport(l.GameUUID, delta, false))
}

// handlePlayByPlay implements the legacy PlayByPlay branch: dedup by hash,
// persist as authoritative history, and emit AddEvent only for new rows.
func (l *Listener) handlePlayByPlay(f playByPlayFrame) {
	if f.Hash != "" && l.dedup.SeenHash(f.Hash) {
		return
	}
	evt := model.Event{
		GameUUID:    l.GameUUID,
		EventID:     f.EventID,
		Status:      model.GameStatus(providerStatus(f.Status)),
		GameTime:    f.GameTime,
		Description: f.Description,
		Payload:     legacyPayload(f),
	}
	if !storeRawEvent(l.Store, l.GameUUID, evt) {
		return
	}
	l.Bus.Publish(bus.AddEvent(l.GameUUID, evt))
}

func legacyPayload(f playByPlayFrame) model.EventPayload {
	switch f.Type {
	case "goal":
		return model.GoalPayload{Team: f.Team, Player: f.Player, HomeScore: f.HomeScore, AwayScore: f.AwayScore}
	case "penalty":
		return model.PenaltyPayload{Team: f.Team, Player: f.Player}
	default:
		return model.GeneralPayload{Text: f.Description}
	}
}

// handleLiveEvent implements the modern LiveEvent branch: emits both an
// UpdateReport (derived from the event's score/state) and an AddEvent, but
// only when the event_id wasn't already in the persisted raw log. A replay
// of a known event produces neither message.
func (l *Listener) handleLiveEvent(f liveEventFrame) {
	eventID := f.EventID
	period := f.Period
	switch f.Type {
	case "period_start":
		eventID = PeriodStartID(period)
	case "period_end":
		eventID = PeriodEndID(period)
	}

	if rawEventSeen(l.Store, l.GameUUID, eventID) {
		return
	}

	status := model.GameStatus(providerStatus(f.GameState))
	delta := model.ReportUpdate{
		GameTime:  &f.GameTime,
		HomeScore: &f.HomeScore,
		AwayScore: &f.AwayScore,
	}
	if status != "" {
		delta.Status = &status
	}
	l.Bus.Publish(bus.UpdateReport(l.GameUUID, delta, false))

	evt := model.Event{
		GameUUID:    l.GameUUID,
		EventID:     eventID,
		Status:      status,
		GameTime:    f.GameTime,
		Description: f.Description,
		Payload:     liveEventPayload(f, period),
	}
	storeRawEvent(l.Store, l.GameUUID, evt)
	l.Bus.Publish(bus.AddEvent(l.GameUUID, evt))
}

func liveEventPayload(f liveEventFrame, period int) model.EventPayload {
	switch f.Type {
	case "goal":
		return model.GoalPayload{
			Team: f.Team, Player: f.Player, TeamAdvantage: f.TeamAdvantage,
			HomeScore: f.HomeScore, AwayScore: f.AwayScore, Location: f.Location,
		}
	case "shot":
		return model.ShotPayload{Team: f.Team, Location: f.Location}
	case "penalty":
		return model.PenaltyPayload{Team: f.Team, Player: f.Player, Reason: f.Reason, Duration: f.DurationMins}
	case "timeout":
		return model.TimeoutPayload{Team: f.Team}
	case "period_start":
		return model.PeriodStartPayload{Period: period}
	case "period_end":
		return model.PeriodEndPayload{Period: period}
	default:
		return model.GeneralPayload{Text: f.Description}
	}
}

// handleLiveState implements the LiveState branch: only the (_, "Decided")
// edge matters, mapping to a Finished status update. The update is not
// forced, so the writer's validity check still applies to it.
func (l *Listener) handleLiveState(f liveStateFrame) {
	if f.To != "Decided" {
		return
	}
	finished := model.StatusFinished
	l.Bus.Publish(bus.UpdateReport(l.GameUUID, model.ReportUpdate{Status: &finished}, false))
}

// handleGameTime implements the clock-only GameTime branch.
func (l *Listener) handleGameTime(f gameTimeFrame) {
	status := model.GameStatus(providerStatus(f.Status))
	delta := model.ReportUpdate{GameTime: &f.GameTime}
	if status != "" {
		delta.Status = &status
	}
	l.Bus.Publish(bus.UpdateReport(l.GameUUID, delta, false))
}

// onIdle applies the 5-minute idle-timeout rule for the SSE transport (the
// only transport with an idle timer).
func (l *Listener) onIdle(ctx context.Context) ExitReason {
	g, ok := l.Registry.ReadCurrentSeasonGame(l.GameUUID)
	if ok && g.Status == model.StatusFinished {
		l.Users.RemoveReferencesTo(l.GameUUID)
		l.Bus.Publish(bus.SseClosed(l.GameUUID))
		telemetry.Infof("listener[%s]: idle and finished, closing", l.GameUUID)
		return ExitFinished
	}

	// One-shot manual refresh, then request a respawn. Play-by-play is
	// fetched with a zero-age cache bypass; initial events come from the
	// cache once stored. The hash dedup set is reset; already-stored legacy
	// rows still produce no second AddEvent because the raw log knows them.
	telemetry.Warnf("listener[%s]: idle for %s, forcing refresh and requesting respawn", l.GameUUID, idleTimeout)
	l.Client.FetchPlayByPlay(ctx, l.League, l.GameUUID)
	l.Client.FetchInitialEvents(ctx, l.League, l.GameUUID)
	l.dedup.Reset()
	telemetry.Metrics.ListenerRestarts.Inc()
	return ExitIdleRestart
}
