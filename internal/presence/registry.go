package presence

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"roomlink/pkg/interfaces"
)

// Session is the metadata recorded for a joined connection.
type Session struct {
	ConnID      string    `json:"conn_id"`
	RoomID      string    `json:"room_id"`
	DisplayName string    `json:"display_name"`
	Token       string    `json:"-"`
	JoinedAt    time.Time `json:"joined_at"`
}

// RoomOccupancy lists the display names currently present in one room.
type RoomOccupancy struct {
	RoomID string   `json:"room_id"`
	Users  []string `json:"online_users"`
}

// Stats is a point-in-time summary of registry state.
type Stats struct {
	Rooms    int `json:"active_rooms"`
	Sessions int `json:"sessions"`
	Members  int `json:"room_members"`
}

// BroadcastResult reports the outcome of one BroadcastToRoom pass.
type BroadcastResult struct {
	Delivered []string `json:"delivered"`
	Reaped    []string `json:"reaped"`
}

// member is the sessions view: one entry per joined connection.
type member struct {
	conn    interfaces.Connection
	session Session
	seq     uint64
}

// Registry is the authoritative in-memory store of room membership and
// per-connection sessions.
// ARCHITECTURAL DISCOVERY: rooms and members are two views over the same
// connections; both are only touched while mu is held so no operation ever
// observes one view updated without the other.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]string // roomID -> displayName -> connID
	members map[string]*member           // connID -> member
	seq     uint64

	// Each room has a notification lock held from before its membership
	// change until its presence notifications are written, so they leave in
	// mutation order. Room locks are always taken before mu, never while
	// holding it; a slow recipient only delays its own room.
	locksMu   sync.Mutex
	roomLocks map[string]*roomLock

	strictNames bool
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver attaches an activity observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithStrictDisplayNames makes Join reject a display name that is already
// present in the room instead of overwriting the earlier mapping.
func WithStrictDisplayNames() Option {
	return func(r *Registry) { r.strictNames = true }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:     make(map[string]map[string]string),
		members:   make(map[string]*member),
		roomLocks: make(map[string]*roomLock),
		observer:  nopObserver{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join attaches conn to roomID under displayName and exchanges partner
// presence. A nil error means the connection is joined.
//
// The partner is looked up before the new mapping is inserted. The partner's
// notification is best-effort. If the notification to conn itself fails the
// join is still committed and an error wrapping ErrNotifyFailed is returned;
// the caller is expected to run Leave.
//
// By default a display name already present in the room is overwritten and
// the earlier connection is orphaned from membership while its session still
// points at the room. WithStrictDisplayNames turns this into ErrDisplayNameTaken.
func (r *Registry) Join(conn interfaces.Connection, roomID, displayName, token string) error {
	if conn == nil {
		return ErrNilConnection
	}
	if roomID == "" || displayName == "" {
		return ErrInvalidJoin
	}
	connID := conn.ID()
	if connID == "" {
		return ErrMissingConnID
	}

	unlock := r.lockRoom(roomID)
	defer unlock()

	r.mu.Lock()
	if _, joined := r.members[connID]; joined {
		r.mu.Unlock()
		return ErrAlreadyJoined
	}

	room, exists := r.rooms[roomID]
	if previous, taken := room[displayName]; taken {
		if r.strictNames {
			r.mu.Unlock()
			return ErrDisplayNameTaken
		}
		r.logger.Warn("display name overwritten, earlier connection orphaned",
			"room_id", roomID, "display_name", displayName,
			"orphaned_conn_id", previous, "conn_id", connID)
	}
	if !exists {
		room = make(map[string]string)
		r.rooms[roomID] = room
	}

	partner := r.partnerLocked(room, displayName)

	r.seq++
	room[displayName] = connID
	r.members[connID] = &member{
		conn: conn,
		session: Session{
			ConnID:      connID,
			RoomID:      roomID,
			DisplayName: displayName,
			Token:       token,
			JoinedAt:    r.now(),
		},
		seq: r.seq,
	}
	rooms, sessions := len(r.rooms), len(r.members)
	r.mu.Unlock()

	r.observer.MemberJoined(roomID)
	r.observer.Occupancy(rooms, sessions)

	if partner != nil {
		err := partner.WriteJSON(NewPartnerStatus(true))
		r.observer.Delivered(DeliveryPresence, err)
		if err != nil {
			r.logger.Error("failed to send partner online status",
				"room_id", roomID, "conn_id", partner.ID(), "error", err)
		}
	}

	err := conn.WriteJSON(NewPartnerStatus(partner != nil))
	r.observer.Delivered(DeliveryPresence, err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}

	r.logger.Debug("connection joined room",
		"room_id", roomID, "display_name", displayName,
		"conn_id", connID, "partner_online", partner != nil)
	return nil
}

// Leave detaches conn from its room and tells the remaining partner.
// Idempotent: unknown connections are ignored.
func (r *Registry) Leave(conn interfaces.Connection) {
	if conn == nil {
		return
	}
	connID := conn.ID()

	for {
		r.mu.RLock()
		m, joined := r.members[connID]
		var roomID string
		if joined {
			roomID = m.session.RoomID
		}
		r.mu.RUnlock()
		if !joined {
			return
		}
		if r.leaveRoom(connID, roomID) {
			return
		}
	}
}

// leaveRoom runs Leave under roomID's notification lock. It reports false
// if the connection was no longer in roomID once the lock was held.
func (r *Registry) leaveRoom(connID, roomID string) bool {
	unlock := r.lockRoom(roomID)
	defer unlock()

	r.mu.Lock()
	m, joined := r.members[connID]
	if !joined {
		r.mu.Unlock()
		return true
	}
	session := m.session
	if session.RoomID != roomID {
		r.mu.Unlock()
		return false
	}

	var partner interfaces.Connection
	if room, exists := r.rooms[roomID]; exists {
		// RACE CONDITION FIX: only remove the mapping if it still belongs to
		// this connection. An orphaned duplicate leaves silently because the
		// name it shared is still online.
		if room[session.DisplayName] == connID {
			delete(room, session.DisplayName)
			partner = r.partnerLocked(room, session.DisplayName)
		}
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	delete(r.members, connID)
	rooms, sessions := len(r.rooms), len(r.members)
	r.mu.Unlock()

	r.observer.MemberLeft(roomID)
	r.observer.Occupancy(rooms, sessions)

	if partner != nil {
		err := partner.WriteJSON(NewPartnerStatus(false))
		r.observer.Delivered(DeliveryPresence, err)
		if err != nil {
			r.logger.Error("failed to send partner offline status",
				"room_id", roomID, "conn_id", partner.ID(), "error", err)
		}
	}

	r.logger.Debug("connection left room",
		"room_id", roomID, "display_name", session.DisplayName, "conn_id", connID)
	return true
}

// roomLock is a reference-counted notification lock for one room.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

// lockRoom acquires roomID's notification lock and returns its release.
// Must not be called while holding mu.
func (r *Registry) lockRoom(roomID string) func() {
	r.locksMu.Lock()
	l, ok := r.roomLocks[roomID]
	if !ok {
		l = &roomLock{}
		r.roomLocks[roomID] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.roomLocks, roomID)
		}
		r.locksMu.Unlock()
	}
}

type target struct {
	name   string
	connID string
	conn   interfaces.Connection
}

// BroadcastToRoom delivers msg to every current member of roomID. A failed
// recipient does not stop the others; afterwards each failed recipient's
// membership entry is removed (its session is left in place) and the room is
// deleted if that empties it.
func (r *Registry) BroadcastToRoom(msg any, roomID string) BroadcastResult {
	r.mu.RLock()
	room := r.rooms[roomID]
	targets := make([]target, 0, len(room))
	for name, connID := range room {
		if m, ok := r.members[connID]; ok {
			targets = append(targets, target{name: name, connID: connID, conn: m.conn})
		}
	}
	r.mu.RUnlock()

	result := BroadcastResult{Delivered: []string{}, Reaped: []string{}}
	var failed []target

	// FUNCTIONAL DISCOVERY: Delivery happens outside the lock; a slow
	// recipient never stalls joins and leaves in other rooms
	for _, t := range targets {
		err := t.conn.WriteJSON(msg)
		r.observer.Delivered(DeliveryBroadcast, err)
		if err != nil {
			r.logger.Warn("user disconnected unexpectedly",
				"room_id", roomID, "display_name", t.name, "conn_id", t.connID, "error", err)
			failed = append(failed, t)
			continue
		}
		result.Delivered = append(result.Delivered, t.name)
	}

	if len(failed) > 0 {
		r.mu.Lock()
		if room, exists := r.rooms[roomID]; exists {
			for _, t := range failed {
				if room[t.name] == t.connID {
					delete(room, t.name)
					result.Reaped = append(result.Reaped, t.name)
				}
			}
			if len(room) == 0 {
				delete(r.rooms, roomID)
			}
		}
		rooms, sessions := len(r.rooms), len(r.members)
		r.mu.Unlock()

		r.observer.Reaped(roomID, len(result.Reaped))
		r.observer.Occupancy(rooms, sessions)
	}

	sort.Strings(result.Delivered)
	sort.Strings(result.Reaped)
	return result
}

// SendTo delivers msg to exactly one connection. Failures are returned to the
// caller and never reaped here.
func (r *Registry) SendTo(msg any, conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	err := conn.WriteJSON(msg)
	r.observer.Delivered(DeliveryDirect, err)
	if err != nil {
		return fmt.Errorf("send to %s: %w", conn.ID(), err)
	}
	return nil
}

// GetOnlineUsers returns the sorted display names present in roomID. Unknown
// rooms yield an empty, non-nil slice.
func (r *Registry) GetOnlineUsers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	users := make([]string, 0, len(room))
	for name := range room {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// GetSession returns the session recorded for conn, if any.
func (r *Registry) GetSession(conn interfaces.Connection) (Session, bool) {
	if conn == nil {
		return Session{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return Session{}, false
	}
	return m.session, true
}

// Rooms returns the occupancy of every live room, ordered by room ID.
func (r *Registry) Rooms() []RoomOccupancy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomOccupancy, 0, len(r.rooms))
	for roomID, room := range r.rooms {
		users := make([]string, 0, len(room))
		for name := range room {
			users = append(users, name)
		}
		sort.Strings(users)
		out = append(out, RoomOccupancy{RoomID: roomID, Users: users})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Stats returns registry statistics for monitoring and debugging
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := 0
	for _, room := range r.rooms {
		members += len(room)
	}
	return Stats{Rooms: len(r.rooms), Sessions: len(r.members), Members: members}
}

// partnerLocked returns the earliest-joined occupant of room whose display
// name differs from displayName. Caller holds mu.
func (r *Registry) partnerLocked(room map[string]string, displayName string) interfaces.Connection {
	var partner *member
	for name, connID := range room {
		if name == displayName {
			continue
		}
		m, ok := r.members[connID]
		if !ok {
			continue
		}
		if partner == nil || m.seq < partner.seq {
			partner = m
		}
	}
	if partner == nil {
		return nil
	}
	return partner.conn
}
