package database

import "errors"

// Journal errors
var (
	ErrManagerClosed = errors.New("database manager is closed")
	ErrWriteTimeout  = errors.New("write operation timeout")
	ErrNilEvent      = errors.New("presence event is nil")
)
