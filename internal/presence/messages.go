package presence

import "roomlink/pkg/types"

// PartnerStatus tells a room member whether its partner is connected.
type PartnerStatus struct {
	Type     string `json:"type"`
	IsOnline bool   `json:"is_online"`
}

// NewPartnerStatus builds a partner_status message.
func NewPartnerStatus(online bool) PartnerStatus {
	return PartnerStatus{Type: types.MessageTypePartnerStatus, IsOnline: online}
}

// SessionEnded is the administrative "session is over" broadcast.
type SessionEnded struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// DefaultSessionEndReason is used when an administrator gives no reason.
const DefaultSessionEndReason = "Session ended"

// NewSessionEnded builds a session_ended message, defaulting the reason.
func NewSessionEnded(reason string) SessionEnded {
	if reason == "" {
		reason = DefaultSessionEndReason
	}
	return SessionEnded{Type: types.MessageTypeSessionEnded, Reason: reason}
}
