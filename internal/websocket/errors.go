package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write queue timeout")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Handler-related errors
var (
	ErrMissingToken  = errors.New("missing room token")
	ErrRoomMismatch  = errors.New("token was issued for a different room")
	ErrShutdownTimed = errors.New("connections did not drain before shutdown deadline")
	ErrShuttingDown  = errors.New("server is shutting down")
)
