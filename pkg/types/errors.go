package types

import "errors"

// ARCHITECTURAL DISCOVERY: Specific error types enable proper error handling
// and user-friendly error messages throughout the system
var (
	ErrInvalidRoomID      = errors.New("room ID must be 1-128 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidDisplayName = errors.New("display name must be 1-64 printable characters")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrEmptyText          = errors.New("message text cannot be empty")
	ErrTextTooLarge       = errors.New("message text exceeds 4096 characters")
	ErrInvalidEventKind   = errors.New("invalid presence event kind")
)
