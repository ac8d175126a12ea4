package model

import (
	"encoding/json"
	"fmt"

	jsoncodec "github.com/goccy/go-json"
)

// Level classifies how loudly an event should be surfaced downstream.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// PayloadKind tags the sum type carried by Event.Payload.
type PayloadKind string

const (
	PayloadGameStart   PayloadKind = "GameStart"
	PayloadGameEnd     PayloadKind = "GameEnd"
	PayloadPeriodStart PayloadKind = "PeriodStart"
	PayloadPeriodEnd   PayloadKind = "PeriodEnd"
	PayloadGoal        PayloadKind = "Goal"
	PayloadShot        PayloadKind = "Shot"
	PayloadPenalty     PayloadKind = "Penalty"
	PayloadTimeout     PayloadKind = "Timeout"
	PayloadGeneral     PayloadKind = "General"
)

// EventPayload is implemented by every concrete payload variant.
type EventPayload interface {
	Kind() PayloadKind
	Level() Level
}

type GameStartPayload struct{}

func (GameStartPayload) Kind() PayloadKind { return PayloadGameStart }
func (GameStartPayload) Level() Level      { return LevelHigh }

type GameEndPayload struct {
	Winner string `json:"winner,omitempty"`
}

func (GameEndPayload) Kind() PayloadKind { return PayloadGameEnd }
func (GameEndPayload) Level() Level      { return LevelHigh }

type PeriodStartPayload struct {
	Period int `json:"period"`
}

func (PeriodStartPayload) Kind() PayloadKind { return PayloadPeriodStart }
func (PeriodStartPayload) Level() Level      { return LevelMedium }

type PeriodEndPayload struct {
	Period int `json:"period"`
}

func (PeriodEndPayload) Kind() PayloadKind { return PayloadPeriodEnd }
func (PeriodEndPayload) Level() Level      { return LevelMedium }

// GoalPayload carries everything needed to build a localized alert.
type GoalPayload struct {
	Team          string `json:"team"` // team code that scored
	Player        string `json:"player,omitempty"`
	TeamAdvantage string `json:"team_advantage,omitempty"` // "EVEN", "PP", "SH"
	HomeScore     int    `json:"home_score"`
	AwayScore     int    `json:"away_score"`
	Location      string `json:"location,omitempty"`
}

func (GoalPayload) Kind() PayloadKind { return PayloadGoal }
func (GoalPayload) Level() Level      { return LevelHigh }

type ShotPayload struct {
	Team     string `json:"team"`
	Location string `json:"location,omitempty"`
}

func (ShotPayload) Kind() PayloadKind { return PayloadShot }
func (ShotPayload) Level() Level      { return LevelLow }

type PenaltyPayload struct {
	Team     string `json:"team"`
	Player   string `json:"player,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Duration int    `json:"duration_minutes,omitempty"`
}

func (PenaltyPayload) Kind() PayloadKind { return PayloadPenalty }
func (PenaltyPayload) Level() Level      { return LevelMedium }

type TimeoutPayload struct {
	Team string `json:"team,omitempty"`
}

func (TimeoutPayload) Kind() PayloadKind { return PayloadTimeout }
func (TimeoutPayload) Level() Level      { return LevelLow }

type GeneralPayload struct {
	Text string `json:"text,omitempty"`
}

func (GeneralPayload) Kind() PayloadKind { return PayloadGeneral }
func (GeneralPayload) Level() Level      { return LevelLow }

// Event is a discrete in-game moment with a stable dedup key.
type Event struct {
	GameUUID    string       `json:"game_uuid"`
	EventID     string       `json:"event_id"`
	Revision    int          `json:"revision"`
	Status      GameStatus   `json:"status"`
	GameTime    string       `json:"gametime"`
	Description string       `json:"description"`
	Payload     EventPayload `json:"-"`
}

// eventWire is the JSON-on-disk / JSON-over-bus shape: Payload is split into
// a kind tag plus a raw blob so the sum type survives (de)serialization.
type eventWire struct {
	GameUUID    string          `json:"game_uuid"`
	EventID     string          `json:"event_id"`
	Revision    int             `json:"revision"`
	Status      GameStatus      `json:"status"`
	GameTime    string          `json:"gametime"`
	Description string          `json:"description"`
	PayloadKind PayloadKind     `json:"payload_kind"`
	Payload     json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := jsoncodec.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	kind := PayloadKind("")
	if e.Payload != nil {
		kind = e.Payload.Kind()
	}
	return jsoncodec.Marshal(eventWire{
		GameUUID:    e.GameUUID,
		EventID:     e.EventID,
		Revision:    e.Revision,
		Status:      e.Status,
		GameTime:    e.GameTime,
		Description: e.Description,
		PayloadKind: kind,
		Payload:     payload,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := jsoncodec.Unmarshal(data, &w); err != nil {
		return err
	}
	e.GameUUID = w.GameUUID
	e.EventID = w.EventID
	e.Revision = w.Revision
	e.Status = w.Status
	e.GameTime = w.GameTime
	e.Description = w.Description

	payload, err := DecodePayload(w.PayloadKind, w.Payload)
	if err != nil {
		return err
	}
	e.Payload = payload
	return nil
}

// DecodePayload unmarshals a raw payload blob given its kind tag. An empty
// kind means the event carried no payload at all (nil, not an error).
func DecodePayload(kind PayloadKind, raw json.RawMessage) (EventPayload, error) {
	var target EventPayload
	switch kind {
	case "":
		return nil, nil
	case PayloadGameStart:
		target = &GameStartPayload{}
	case PayloadGameEnd:
		target = &GameEndPayload{}
	case PayloadPeriodStart:
		target = &PeriodStartPayload{}
	case PayloadPeriodEnd:
		target = &PeriodEndPayload{}
	case PayloadGoal:
		target = &GoalPayload{}
	case PayloadShot:
		target = &ShotPayload{}
	case PayloadPenalty:
		target = &PenaltyPayload{}
	case PayloadTimeout:
		target = &TimeoutPayload{}
	case PayloadGeneral:
		target = &GeneralPayload{}
	default:
		return nil, fmt.Errorf("unknown event payload kind %q", kind)
	}
	if len(raw) == 0 {
		return derefPayload(target), nil
	}
	if err := jsoncodec.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}
	return derefPayload(target), nil
}

// derefPayload returns the value (not pointer) form so Event.Payload holds
// the same concrete type whether it was constructed directly or decoded.
func derefPayload(p EventPayload) EventPayload {
	switch v := p.(type) {
	case *GameStartPayload:
		return *v
	case *GameEndPayload:
		return *v
	case *PeriodStartPayload:
		return *v
	case *PeriodEndPayload:
		return *v
	case *GoalPayload:
		return *v
	case *ShotPayload:
		return *v
	case *PenaltyPayload:
		return *v
	case *TimeoutPayload:
		return *v
	case *GeneralPayload:
		return *v
	default:
		return p
	}
}
