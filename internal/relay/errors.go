package relay

import "errors"

// Relay errors, reported back to the sender as error frames
var (
	ErrMalformedFrame = errors.New("malformed message frame")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrNotJoined      = errors.New("connection has not joined a room")
)
