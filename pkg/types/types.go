package types

import (
	"encoding/json"
	"errors"
)

// MessageType identifies a VS message on the wire.
type MessageType string

const (
	MsgPing           MessageType = "ping"
	MsgPong           MessageType = "pong"
	MsgText           MessageType = "text"
	MsgProgress       MessageType = "progress"
	MsgFinish         MessageType = "finish"
	MsgRestartRequest MessageType = "restart-request"
	MsgRestartAck     MessageType = "restart-ack"
	MsgReady          MessageType = "ready"
	MsgReward         MessageType = "reward"
	MsgLeft           MessageType = "left"
)

var ErrUnknownType = errors.New("unknown message type")
var ErrMissingSender = errors.New("missing sender id")
var ErrBadPayload = errors.New("malformed payload")

var knownTypes = map[MessageType]bool{
	MsgPing:           true,
	MsgPong:           true,
	MsgText:           true,
	MsgProgress:       true,
	MsgFinish:         true,
	MsgRestartRequest: true,
	MsgRestartAck:     true,
	MsgReady:          true,
	MsgReward:         true,
	MsgLeft:           true,
}

// Envelope is the logical wire frame shared by every transport.
// SenderID exists only so a client can drop its own echoed broadcasts.
type Envelope struct {
	Type     MessageType     `json:"type"`
	SenderID string          `json:"senderId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope, marshaling payload. A nil payload is fine.
func NewEnvelope(t MessageType, senderID string, payload any) (Envelope, error) {
	env := Envelope{Type: t, SenderID: senderID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	return env, nil
}

// Validate rejects frames the state machine must never see.
func (e Envelope) Validate() error {
	if !knownTypes[e.Type] {
		return ErrUnknownType
	}
	if e.SenderID == "" {
		return ErrMissingSender
	}
	return nil
}

// PlayerProgress is the per-player race snapshot exchanged between peers.
// Finished implies FinishTime is set and Progress is 100; the converse does
// not hold because reaching the end of the text below the accuracy floor
// does not count as finishing.
type PlayerProgress struct {
	Progress       int     `json:"progress"`
	WPM            int     `json:"wpm"`
	Accuracy       int     `json:"accuracy"`
	CorrectChars   int     `json:"correctChars"`
	IncorrectChars int     `json:"incorrectChars"`
	ElapsedTime    float64 `json:"elapsedTime"`
	Finished       bool    `json:"finished"`
	FinishTime     *int64  `json:"finishTime"` // unix milliseconds, nil until finished
}

// DefaultProgress is the zero race state: nothing typed, perfect accuracy.
func DefaultProgress() PlayerProgress {
	return PlayerProgress{Accuracy: 100}
}

// progressShape mirrors PlayerProgress with optional fields so a decode can
// tell "absent" from "zero". Only the fields the peer cannot fake around are
// required.
type progressShape struct {
	Progress       *int     `json:"progress"`
	WPM            *int     `json:"wpm"`
	Accuracy       *int     `json:"accuracy"`
	CorrectChars   int      `json:"correctChars"`
	IncorrectChars int      `json:"incorrectChars"`
	ElapsedTime    float64  `json:"elapsedTime"`
	Finished       *bool    `json:"finished"`
	FinishTime     *int64   `json:"finishTime"`
}

// ParseProgress decodes a progress/finish payload, rejecting frames missing
// the required numeric/boolean fields.
func ParseProgress(raw json.RawMessage) (PlayerProgress, error) {
	if len(raw) == 0 {
		return PlayerProgress{}, ErrBadPayload
	}
	var s progressShape
	if err := json.Unmarshal(raw, &s); err != nil {
		return PlayerProgress{}, ErrBadPayload
	}
	if s.Progress == nil || s.WPM == nil || s.Accuracy == nil || s.Finished == nil {
		return PlayerProgress{}, ErrBadPayload
	}
	return PlayerProgress{
		Progress:       *s.Progress,
		WPM:            *s.WPM,
		Accuracy:       *s.Accuracy,
		CorrectChars:   s.CorrectChars,
		IncorrectChars: s.IncorrectChars,
		ElapsedTime:    s.ElapsedTime,
		Finished:       *s.Finished,
		FinishTime:     s.FinishTime,
	}, nil
}

// TextPayload carries the host-selected race passage.
type TextPayload struct {
	Text       string `json:"text"`
	Difficulty string `json:"difficulty,omitempty"`
}

// ParseText decodes a text payload; an empty passage is rejected.
func ParseText(raw json.RawMessage) (TextPayload, error) {
	var p TextPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return TextPayload{}, ErrBadPayload
	}
	if p.Text == "" {
		return TextPayload{}, ErrBadPayload
	}
	return p, nil
}

// ParseString decodes a bare string payload (heartbeat names, reward URLs).
func ParseString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
