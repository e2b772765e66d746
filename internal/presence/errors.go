package presence

import "errors"

// Registry-related errors
var (
	ErrNilConnection    = errors.New("connection cannot be nil")
	ErrMissingConnID    = errors.New("connection has no identifier")
	ErrInvalidJoin      = errors.New("room ID and display name are required")
	ErrAlreadyJoined    = errors.New("connection already joined a room")
	ErrDisplayNameTaken = errors.New("display name already present in room")
	ErrNotifyFailed     = errors.New("presence notification failed")
)
