package bus

import "github.com/hanssonlabs/puckline/internal/model"

// MessageType tags the envelope carried on the bus.
type MessageType string

const (
	MsgAddEvent      MessageType = "AddEvent"
	MsgUpdateReport  MessageType = "UpdateReport"
	MsgReportUpdated MessageType = "ReportUpdated"
	MsgEventUpdated  MessageType = "EventUpdated"
	MsgSseClosed     MessageType = "SseClosed"
)

// Message is the single envelope type flowing through the bus. Exactly one
// of the payload fields is populated, matching Type.
type Message struct {
	Type     MessageType
	GameUUID string

	// AddEvent
	Event *model.Event

	// UpdateReport
	ReportDelta *model.ReportUpdate
	Forced      bool

	// ReportUpdated
	FullReport *model.Report

	// EventUpdated reuses Event above.

	// SseClosed carries no extra payload.
}

func AddEvent(gameUUID string, e model.Event) Message {
	return Message{Type: MsgAddEvent, GameUUID: gameUUID, Event: &e}
}

func UpdateReport(gameUUID string, delta model.ReportUpdate, forced bool) Message {
	return Message{Type: MsgUpdateReport, GameUUID: gameUUID, ReportDelta: &delta, Forced: forced}
}

func ReportUpdated(gameUUID string, r model.Report) Message {
	return Message{Type: MsgReportUpdated, GameUUID: gameUUID, FullReport: &r}
}

func EventUpdated(gameUUID string, e model.Event) Message {
	return Message{Type: MsgEventUpdated, GameUUID: gameUUID, Event: &e}
}

func SseClosed(gameUUID string) Message {
	return Message{Type: MsgSseClosed, GameUUID: gameUUID}
}
