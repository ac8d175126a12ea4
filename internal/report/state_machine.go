// Package report implements the report state machine: pure validation of
// report transitions and derivation of high-level GameStart/GameEnd events.
// Everything here is a pure function over (old, new) report pairs; the
// writer is the only caller.
package report

import "github.com/hanssonlabs/puckline/internal/model"

// HighLevelEvent is what Process derives from a status transition.
type HighLevelEvent struct {
	Kind   model.PayloadKind // PayloadGameStart or PayloadGameEnd
	Winner string            // only meaningful for PayloadGameEnd
}

// Process derives the high-level event of a status transition:
// Coming->Period1 yields GameStart; any non-Finished->Finished yields
// GameEnd carrying the winner (by score, "" on tie); every other transition
// yields nil.
func Process(newReport, oldReport model.Report, homeTeam, awayTeam string) *HighLevelEvent {
	if oldReport.Status == model.StatusComing && newReport.Status == model.StatusPeriod1 {
		return &HighLevelEvent{Kind: model.PayloadGameStart}
	}
	if oldReport.Status != model.StatusFinished && newReport.Status == model.StatusFinished {
		return &HighLevelEvent{Kind: model.PayloadGameEnd, Winner: newReport.Winner(homeTeam, awayTeam)}
	}
	return nil
}

// IsValidUpdate decides whether a merged report may replace the prior one.
//
// Same status: accepted iff gametime differs, or either score strictly
// increased, or the overtime/shootout flag changed. The exception is when
// both old and new status are Intermission, where a gametime-only change
// does not count (the provider's intermission clock is cosmetic).
//
// Different status: accepted iff new.Status is a legal successor of
// old.Status.
func IsValidUpdate(oldReport, newReport model.Report) bool {
	if oldReport.Status == newReport.Status {
		if oldReport.Status == model.StatusIntermission {
			return newReport.HomeScore > oldReport.HomeScore ||
				newReport.AwayScore > oldReport.AwayScore ||
				newReport.Overtime != oldReport.Overtime ||
				newReport.Shootout != oldReport.Shootout
		}
		return newReport.GameTime != oldReport.GameTime ||
			newReport.HomeScore > oldReport.HomeScore ||
			newReport.AwayScore > oldReport.AwayScore ||
			newReport.Overtime != oldReport.Overtime ||
			newReport.Shootout != oldReport.Shootout
	}
	return model.LegalSuccessor(oldReport.Status, newReport.Status)
}
