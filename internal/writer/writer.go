// Package writer implements the report/event writer: the single subscriber
// allowed to persist report state, merge it into the registry, and run the
// report state machine. Everything downstream (notifications, the
// websocket surface, the derived aggregates) keys off the ReportUpdated
// and EventUpdated messages it publishes back onto the bus.
package writer

import (
	"github.com/hanssonlabs/puckline/internal/bus"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/report"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
)

const reportCollection = "v2_report"

// Registry is the slice of the game registry the writer needs. Kept as an
// interface so this package, and only this package, is wired to the real
// UpdateFromReport entry point; nothing else in the tree imports it for
// that purpose.
type Registry interface {
	UpdateFromReport(gameUUID string, r model.Report) (model.Game, bool)
	ReadCurrentSeasonGame(gameUUID string) (model.Game, bool)
}

// Notifier is the slice of the notification dispatcher the writer drives:
// an alert path (high-level event plus the fresh report) and a silent
// live-activity-only path.
type Notifier interface {
	DispatchAlert(game model.Game, event *report.HighLevelEvent, rpt model.Report)
	DispatchLiveActivityOnly(game model.Game, rpt model.Report)
	DispatchEvent(game model.Game, evt model.Event)
}

// Writer is the single owner of report persistence.
type Writer struct {
	st       *store.Store
	registry Registry
	notify   Notifier
	bus      *bus.Bus
}

func New(st *store.Store, registry Registry, notify Notifier, b *bus.Bus) *Writer {
	return &Writer{st: st, registry: registry, notify: notify, bus: b}
}

// Subscribe registers the writer as the bus's single "writer" subscriber.
// The bus special-cases this name to block (never lag-drop) so report
// ordering survives backpressure.
func (w *Writer) Subscribe() {
	w.bus.Subscribe("writer", w.handle)
}

func (w *Writer) handle(msg bus.Message) {
	switch msg.Type {
	case bus.MsgUpdateReport:
		w.handleUpdateReport(msg)
	case bus.MsgAddEvent:
		w.handleAddEvent(msg)
	}
}

// handleUpdateReport merges, validates, persists, and fans out one report
// delta.
func (w *Writer) handleUpdateReport(msg bus.Message) {
	prior, hasPrior := w.loadPriorReport(msg.GameUUID)
	if !hasPrior {
		telemetry.Warnf("writer: no game or report found for %s, dropping update", msg.GameUUID)
		return
	}

	next := msg.ReportDelta.MergeOnto(prior)

	if !msg.Forced && !report.IsValidUpdate(prior, next) {
		telemetry.Metrics.ReportsRejected.Inc()
		telemetry.Infof("writer: rejected invalid transition %s -> %s for %s", prior.Status, next.Status, msg.GameUUID)
		return
	}
	telemetry.Metrics.ReportsAccepted.Inc()

	w.st.Write(reportCollection, msg.GameUUID, next)

	game, ok := w.registry.UpdateFromReport(msg.GameUUID, next)
	if !ok {
		telemetry.Warnf("writer: report accepted for unknown game %s", msg.GameUUID)
		return
	}

	if hl := report.Process(next, prior, game.HomeTeam, game.AwayTeam); hl != nil {
		w.notify.DispatchAlert(game, hl, next)
	} else {
		w.notify.DispatchLiveActivityOnly(game, next)
	}

	w.bus.Publish(bus.ReportUpdated(msg.GameUUID, next))
}

// loadPriorReport loads the prior Report from the store, or synthesizes
// one from the current Game projection if none has ever been persisted.
func (w *Writer) loadPriorReport(gameUUID string) (model.Report, bool) {
	var prior model.Report
	if w.st.Read(reportCollection, gameUUID, &prior) {
		return prior, true
	}
	game, ok := w.registry.ReadCurrentSeasonGame(gameUUID)
	if !ok {
		return model.Report{}, false
	}
	return game.Report(), true
}

// handleAddEvent dispatches a notification unless the event is Low level,
// then publishes EventUpdated.
func (w *Writer) handleAddEvent(msg bus.Message) {
	if msg.Event == nil {
		return
	}
	telemetry.Metrics.EventsProcessed.Inc()

	game, ok := w.registry.ReadCurrentSeasonGame(msg.GameUUID)
	if !ok {
		telemetry.Warnf("writer: event for unknown game %s", msg.GameUUID)
		return
	}

	if msg.Event.Payload != nil && msg.Event.Payload.Level() != model.LevelLow {
		w.notify.DispatchEvent(game, *msg.Event)
	}

	w.bus.Publish(bus.EventUpdated(msg.GameUUID, *msg.Event))
}
