package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"roomlink/internal/presence"
	"roomlink/pkg/interfaces"
	"roomlink/pkg/types"
)

// Rooms is the part of the presence registry the relay needs.
type Rooms interface {
	GetSession(conn interfaces.Connection) (presence.Session, bool)
	BroadcastToRoom(msg any, roomID string) presence.BroadcastResult
	SendTo(msg any, conn interfaces.Connection) error
}

// Relay turns inbound chat frames into room broadcasts.
// ARCHITECTURAL DISCOVERY: Sender identity comes from the registry session,
// never from the frame, so a client can only speak in the room it joined
type Relay struct {
	rooms   Rooms
	limiter *RateLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRelay creates a relay. A nil limiter disables rate limiting.
func NewRelay(rooms Rooms, limiter *RateLimiter, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		rooms:   rooms,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle processes one inbound text frame from conn.
func (r *Relay) Handle(conn interfaces.Connection, data []byte) {
	session, ok := r.rooms.GetSession(conn)
	if !ok {
		r.reject(conn, ErrNotJoined)
		return
	}

	var in types.InboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		r.reject(conn, ErrMalformedFrame)
		return
	}
	if err := in.Validate(); err != nil {
		r.reject(conn, err)
		return
	}

	switch in.Type {
	case types.MessageTypePing:
		if err := r.rooms.SendTo(map[string]string{"type": types.MessageTypePong}, conn); err != nil {
			r.logger.Debug("failed to answer ping", "conn_id", conn.ID(), "error", err)
		}

	case types.MessageTypeChat:
		if r.limiter != nil && !r.limiter.Allow(session.ConnID) {
			r.reject(conn, ErrRateLimited)
			return
		}

		msg := types.ChatMessage{
			Type:      types.MessageTypeChat,
			Sender:    session.DisplayName,
			Text:      in.Text,
			CreatedAt: r.now().UTC(),
			RoomID:    session.RoomID,
		}
		result := r.rooms.BroadcastToRoom(msg, session.RoomID)
		if len(result.Reaped) > 0 {
			r.logger.Info("reaped unreachable room members",
				"room_id", session.RoomID, "reaped", result.Reaped)
		}
	}
}

// Forget releases per-connection state once conn has left.
func (r *Relay) Forget(conn interfaces.Connection) {
	if r.limiter != nil && conn != nil {
		r.limiter.Forget(conn.ID())
	}
}

// Run periodically drops idle rate limiter state until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	if r.limiter == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// reject reports err to the sender only.
func (r *Relay) reject(conn interfaces.Connection, err error) {
	msg := types.ErrorMessage{Type: types.MessageTypeError, Error: err.Error()}
	if sendErr := r.rooms.SendTo(msg, conn); sendErr != nil {
		r.logger.Debug("failed to send error frame", "conn_id", conn.ID(), "error", sendErr)
	}
}
