package types

import "time"

// Presence event kinds recorded in the journal
const (
	EventJoined       = "joined"
	EventLeft         = "left"
	EventSessionEnded = "session_ended"
)

// Message types exchanged over a chat connection
const (
	MessageTypeChat          = "message"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
	MessageTypePartnerStatus = "partner_status"
	MessageTypeSessionEnded  = "session_ended"
)

// PresenceEvent is one journaled presence transition in a room.
type PresenceEvent struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	DisplayName string    `json:"display_name,omitempty"`
	ConnID      string    `json:"conn_id,omitempty"`
	Kind        string    `json:"kind"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// InboundMessage is the envelope clients send over a chat connection.
type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatMessage is a relayed chat line as delivered to every room member.
// FUNCTIONAL DISCOVERY: Sender and room are stamped server-side from the
// connection's session so clients cannot spoof either.
type ChatMessage struct {
	Type      string    `json:"type"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	RoomID    string    `json:"room_id"`
}

// ErrorMessage reports a rejected inbound frame back to its sender.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
