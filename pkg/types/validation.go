package types

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLength bounds a single relayed chat line, counted in runes.
const MaxTextLength = 4096

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
// for better performance in high-frequency validation scenarios
var roomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidRoomID checks if a room ID meets format requirements
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 128 {
		return false
	}
	return roomIDRegex.MatchString(roomID)
}

// IsValidDisplayName checks that a nickname is non-blank, bounded and printable.
// Nicknames come from the profile service, so anything printable is accepted.
func IsValidDisplayName(name string) bool {
	if strings.TrimSpace(name) == "" || !utf8.ValidString(name) {
		return false
	}
	if utf8.RuneCountInString(name) > 64 {
		return false
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// Validate checks an inbound frame before it is relayed
func (m *InboundMessage) Validate() error {
	switch m.Type {
	case MessageTypePing:
		return nil
	case MessageTypeChat:
	default:
		return ErrInvalidMessageType
	}

	if strings.TrimSpace(m.Text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(m.Text) > MaxTextLength {
		return ErrTextTooLarge
	}
	return nil
}

// Validate ensures a journal entry is well formed before it is stored
func (e *PresenceEvent) Validate() error {
	if !IsValidRoomID(e.RoomID) {
		return ErrInvalidRoomID
	}
	switch e.Kind {
	case EventJoined, EventLeft, EventSessionEnded:
		return nil
	default:
		return ErrInvalidEventKind
	}
}
