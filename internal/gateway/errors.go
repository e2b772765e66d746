package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBaseURL = errors.New("gateway base URL is required")
	ErrMissingUserID  = errors.New("user_id is required")
	ErrNoNickname     = errors.New("gateway returned no nickname")
)

// StatusError is returned when the gateway answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}
