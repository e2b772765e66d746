package interfaces

import (
	"context"

	"roomlink/pkg/types"
)

// EventJournal records presence transitions for administrative inspection.
// FUNCTIONAL DISCOVERY: Journal writes are best-effort; callers log failures
// and never roll back registry state because of them.
type EventJournal interface {
	RecordEvent(ctx context.Context, event *types.PresenceEvent) error
	ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*types.PresenceEvent, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
