package ws

import "encoding/json"

// client -> server
const (
	MsgStartMatching = "start_matching"
	MsgCancelMatch   = "cancel_matching"
	MsgSubmitAnswer  = "submit_answer"
	MsgLeaveBattle   = "leave_battle"
)

// server -> client
const (
	MsgMatched      = "matched"
	MsgMatchTimeout = "match_timeout"
	MsgStatus       = "status"
	MsgError        = "error"
	// battle.updated / battle.rounds.updated pass through with their
	// sync-channel type as the message type
)

// Message is the wire envelope in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type startMatchingPayload struct {
	Mode string `json:"mode"`
}

type submitAnswerPayload struct {
	Action string `json:"action"`
	TimeMs int    `json:"time_ms"`
	Score  int    `json:"score"`
}

type errorPayload struct {
	Message string `json:"message"`
}
