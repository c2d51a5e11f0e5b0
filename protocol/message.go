package protocol

import (
	"encoding/json"

	"monopolis-server/game"
)

// Message types.
const (
	TypeHello      = "hello"
	TypeWelcome    = "welcome"
	TypeRoll       = "ROLL"
	TypePrisonSkip = "PRISON_SKIP"
	TypeResume     = "resume"
	TypeSync       = "sync"
	TypeError      = "error"
	TypePeerStatus = "peer_status"
)

// Error codes carried by ErrorMsg.
const (
	CodeNotYourTurn  = "not_your_turn"
	CodeTurnInFlight = "turn_in_flight"
	CodeInvalidRoll  = "invalid_roll"
	CodeInPrison     = "in_prison"
	CodeNotInPrison  = "not_in_prison"
	CodeStaleTurn    = "stale_turn"
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeRoomNotFound = "room_not_found"
	CodeNotSeated    = "not_seated"
)

// InboundEnvelope is the generic envelope for every message on the wire.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Event is a turn decision. Clients send it without Seq; the relay stamps
// Seq and fans it out to every seat, the sender included.
type Event struct {
	Type     string `json:"type"`
	Seq      uint64 `json:"seq,omitempty"`
	Turn     uint64 `json:"turn"`
	PlayerID string `json:"playerId"`
	Roll     int    `json:"roll,omitempty"`
	IntentID string `json:"intentId,omitempty"`
}

// IsTurnEvent reports whether t is ROLL or PRISON_SKIP.
func IsTurnEvent(t string) bool {
	return t == TypeRoll || t == TypePrisonSkip
}

// --- Client-to-relay ---

// HelloMsg is the first message on a connection. LastSeq is the last event
// the device applied, zero on a fresh start.
type HelloMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Token    string `json:"token,omitempty"`
	LastSeq  uint64 `json:"lastSeq"`
}

// ResumeMsg asks for every event after LastSeq, or for a snapshot when Full is set.
type ResumeMsg struct {
	Type    string `json:"type"`
	LastSeq uint64 `json:"lastSeq"`
	Full    bool   `json:"full,omitempty"`
}

// --- Relay-to-client ---

// WelcomeMsg acknowledges a hello. Seq is the room's latest sequence number.
type WelcomeMsg struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"roomId"`
	PlayerID string            `json:"playerId"`
	Players  []game.PlayerInfo `json:"players"`
	Seq      uint64            `json:"seq"`
}

// SyncMsg replaces a device's state when replay is not possible.
type SyncMsg struct {
	Type     string        `json:"type"`
	Seq      uint64        `json:"seq"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// ErrorMsg is sent to the originating device only.
type ErrorMsg struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	IntentID string `json:"intentId,omitempty"`
}

// PeerStatusMsg reports a seat connecting or dropping.
type PeerStatusMsg struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Connected bool   `json:"connected"`
}

// NewError builds an ErrorMsg.
func NewError(code, message, intentID string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: code, Message: message, IntentID: intentID}
}

// Encode marshals v, which must be one of the message structs of this package.
func Encode(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
