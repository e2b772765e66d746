package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"roomlink/internal/presence"
	"roomlink/internal/token"
	"roomlink/pkg/interfaces"
	"roomlink/pkg/types"
)

// Presence is the part of the room registry the accept layer drives.
type Presence interface {
	Join(conn interfaces.Connection, roomID, displayName, token string) error
	Leave(conn interfaces.Connection)
}

// TokenVerifier resolves a room token into its claims.
type TokenVerifier interface {
	Verify(tok string) (*token.Claims, error)
}

// MessageRelay handles inbound text frames from a joined connection and
// forgets per-connection state once it has left.
type MessageRelay interface {
	Handle(conn interfaces.Connection, data []byte)
	Forget(conn interfaces.Connection)
}

// Handler accepts chat connections, joins them to their room and runs their
// read pump until the client goes away.
// ARCHITECTURAL DISCOVERY: Multi-stage validation (room -> token -> upgrade -> join)
// keeps invalid requests from consuming a socket or a registry slot
type Handler struct {
	presence Presence
	tokens   TokenVerifier
	relay    MessageRelay
	journal  interfaces.EventJournal
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[string]*Connection
	closing bool
	wg      sync.WaitGroup
}

// NewHandler creates a chat handler. relay and journal may be nil.
func NewHandler(p Presence, tokens TokenVerifier, relay MessageRelay, journal interfaces.EventJournal, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		presence: p,
		tokens:   tokens,
		relay:    relay,
		journal:  journal,
		opts:     opts.withDefaults(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			// FUNCTIONAL DISCOVERY: Browsers connect from the chat front-end origin;
			// the room token is the access check, not the Origin header
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
		conns: make(map[string]*Connection),
	}
}

// HandleChat serves GET /ws/chat/{room_id}?token=...
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	if !types.IsValidRoomID(roomID) {
		http.Error(w, types.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}

	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.Verify(tok)
	if err != nil {
		h.logger.Info("rejected chat connection", "room_id", roomID, "error", err)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}
	if claims.RoomID != roomID {
		http.Error(w, ErrRoomMismatch.Error(), http.StatusForbidden)
		return
	}
	if !types.IsValidDisplayName(claims.Nickname) {
		http.Error(w, types.ErrInvalidDisplayName.Error(), http.StatusBadRequest)
		return
	}

	if h.isClosing() {
		http.Error(w, ErrShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "room_id", roomID, "error", err)
		return
	}

	wsConn := NewConnection(conn, h.opts, h.logger)
	// TECHNICAL DISCOVERY: track registers with the wait group under the same
	// lock Shutdown uses to stop admissions, so Wait never races an Add
	if !h.track(wsConn) {
		_ = wsConn.CloseWithReason(websocket.CloseGoingAway, "server shutting down")
		return
	}

	if err := h.presence.Join(wsConn, roomID, claims.Nickname, tok); err != nil {
		h.logger.Warn("join failed", "room_id", roomID, "display_name", claims.Nickname,
			"conn_id", wsConn.ID(), "error", err)
		// No-op unless the join was committed before the failure
		h.presence.Leave(wsConn)
		h.untrack(wsConn)
		h.wg.Done()
		if errors.Is(err, presence.ErrDisplayNameTaken) {
			_ = wsConn.CloseWithReason(websocket.ClosePolicyViolation, "display name already connected")
			return
		}
		_ = wsConn.Close()
		return
	}

	h.logger.Info("chat connection joined", "room_id", roomID,
		"display_name", claims.Nickname, "user_id", claims.UserID, "conn_id", wsConn.ID())

	go h.handleConnection(wsConn, roomID, claims.Nickname)
}

// handleConnection runs the read pump. Leave runs exactly once when it exits,
// whatever the reason.
func (h *Handler) handleConnection(conn *Connection, roomID, displayName string) {
	defer h.wg.Done()
	h.record(roomID, displayName, conn.ID(), types.EventJoined)

	defer func() {
		h.presence.Leave(conn)
		h.untrack(conn)
		if h.relay != nil {
			h.relay.Forget(conn)
		}
		_ = conn.Close()
		h.record(roomID, displayName, conn.ID(), types.EventLeft)
		h.logger.Info("chat connection left", "room_id", roomID,
			"display_name", displayName, "conn_id", conn.ID())
	}()

	conn.conn.SetReadLimit(h.opts.MaxMessageSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if messageType == websocket.TextMessage && h.relay != nil {
			h.relay.Handle(conn, data)
		}
	}
}

// record journals a presence transition; failures are logged only.
func (h *Handler) record(roomID, displayName, connID, kind string) {
	if h.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := &types.PresenceEvent{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		DisplayName: displayName,
		ConnID:      connID,
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.journal.RecordEvent(ctx, event); err != nil {
		h.logger.Error("failed to journal presence event", "room_id", roomID, "kind", kind, "error", err)
	}
}

// track admits c and counts it in the wait group. It reports false once
// Shutdown has begun.
func (h *Handler) track(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	h.conns[c.ID()] = c
	return true
}

func (h *Handler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

func (h *Handler) untrack(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID())
}

// ActiveConnections returns the number of open chat sockets.
func (h *Handler) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every open chat socket and waits for their read pumps to
// run the leave protocol.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	open := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		open = append(open, c)
	}
	h.mu.Unlock()

	for _, c := range open {
		_ = c.CloseWithReason(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrShutdownTimed
	}
}
