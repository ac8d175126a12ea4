package listener

import (
	"context"
	"time"

	"github.com/hanssonlabs/puckline/internal/bus"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/upstream"
)

const pollInterval = 10 * time.Second

// PollListener is the fallback transport: parallel play-by-play and
// initial-events fetches every 10s, used when Config.Poll is set.
type PollListener struct {
	*Listener
}

func NewPoll(l *Listener) *PollListener { return &PollListener{Listener: l} }

// Run polls until the registry reports the game Finished (checked after
// each tick) or ctx is cancelled. Unlike the SSE transport it has no
// idle-timeout rule; a quiet game simply produces no new events.
func (p *PollListener) Run(ctx context.Context) ExitReason {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ExitCancelled
		case <-ticker.C:
			p.tick(ctx)
			if g, ok := p.Registry.ReadCurrentSeasonGame(p.GameUUID); ok && g.Status == model.StatusFinished {
				return ExitFinished
			}
		}
	}
}

// tick fetches play-by-play and initial events in parallel, emitting
// UpdateReport then AddEvent for each event not already in the persisted
// log.
func (p *PollListener) tick(ctx context.Context) {
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		events, ok := p.Client.FetchPlayByPlay(ctx, p.League, p.GameUUID)
		if !ok {
			return
		}
		p.ingestEvents(events)
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		events, ok := p.Client.FetchInitialEvents(ctx, p.League, p.GameUUID)
		if !ok {
			return
		}
		p.ingestEvents(events)
	}()

	<-done
	<-done
}

func (p *PollListener) ingestEvents(events []upstream.ProviderEvent) {
	for _, pe := range events {
		eventID := pe.EventID
		switch pe.Type {
		case "period_start":
			eventID = PeriodStartID(pe.Period)
		case "period_end":
			eventID = PeriodEndID(pe.Period)
		}
		if rawEventSeen(p.Store, p.GameUUID, eventID) {
			continue
		}
		delta := model.ReportUpdate{
			GameTime:  &pe.GameTime,
			HomeScore: &pe.HomeScore,
			AwayScore: &pe.AwayScore,
		}
		p.Bus.Publish(bus.UpdateReport(p.GameUUID, delta, false))

		evt := model.Event{
			GameUUID:    p.GameUUID,
			EventID:     eventID,
			GameTime:    pe.GameTime,
			Description: pe.Description,
			Payload:     pollEventPayload(pe),
		}
		storeRawEvent(p.Store, p.GameUUID, evt)
		p.Bus.Publish(bus.AddEvent(p.GameUUID, evt))
	}
}

func pollEventPayload(pe upstream.ProviderEvent) model.EventPayload {
	switch pe.Type {
	case "goal":
		return model.GoalPayload{Team: pe.TeamCode, Player: pe.Player, HomeScore: pe.HomeScore, AwayScore: pe.AwayScore}
	case "penalty":
		return model.PenaltyPayload{Team: pe.TeamCode, Player: pe.Player}
	case "shot":
		return model.ShotPayload{Team: pe.TeamCode}
	case "period_start":
		return model.PeriodStartPayload{Period: pe.Period}
	case "period_end":
		return model.PeriodEndPayload{Period: pe.Period}
	default:
		return model.GeneralPayload{Text: pe.Description}
	}
}
