package presence

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeConn records every message written to it
type fakeConn struct {
	id   string
	mu   sync.Mutex
	msgs []any
	fail error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) breakWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// statuses extracts the is_online flags of every partner_status received
func (c *fakeConn) statuses() []bool {
	var out []bool
	for _, m := range c.messages() {
		if ps, ok := m.(PartnerStatus); ok {
			out = append(out, ps.IsOnline)
		}
	}
	return out
}

var errBroken = errors.New("broken pipe")

func newTestRegistry(opts ...Option) *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(append([]Option{WithLogger(logger)}, opts...)...)
}

func assertStatuses(t *testing.T, name string, c *fakeConn, want []bool) {
	t.Helper()
	got := c.statuses()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s partner statuses = %v, want %v", name, got, want)
	}
}

func assertUsers(t *testing.T, r *Registry, roomID string, want []string) {
	t.Helper()
	got := r.GetOnlineUsers(roomID)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetOnlineUsers(%q) = %v, want %v", roomID, got, want)
	}
}

func roomExists(r *Registry, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

func TestRegistry_NewRegistryInitialization(t *testing.T) {
	r := newTestRegistry()

	stats := r.Stats()
	if stats.Rooms != 0 || stats.Sessions != 0 || stats.Members != 0 {
		t.Errorf("expected empty registry, got %+v", stats)
	}
	if rooms := r.Rooms(); len(rooms) != 0 {
		t.Errorf("expected no rooms, got %v", rooms)
	}
}

func TestRegistry_JoinValidation(t *testing.T) {
	r := newTestRegistry()

	if err := r.Join(nil, "r1", "alice", "tok"); !errors.Is(err, ErrNilConnection) {
		t.Errorf("expected ErrNilConnection, got %v", err)
	}
	if err := r.Join(newFakeConn("c1"), "", "alice", "tok"); !errors.Is(err, ErrInvalidJoin) {
		t.Errorf("expected ErrInvalidJoin for empty room, got %v", err)
	}
	if err := r.Join(newFakeConn("c1"), "r1", "", "tok"); !errors.Is(err, ErrInvalidJoin) {
		t.Errorf("expected ErrInvalidJoin for empty name, got %v", err)
	}
	if err := r.Join(newFakeConn(""), "r1", "alice", "tok"); !errors.Is(err, ErrMissingConnID) {
		t.Errorf("expected ErrMissingConnID, got %v", err)
	}
	if stats := r.Stats(); stats.Sessions != 0 {
		t.Errorf("rejected joins must not record sessions, got %+v", stats)
	}
}

func TestRegistry_JoinRejectsAlreadyJoinedConnection(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")

	if err := r.Join(c, "r1", "alice", "tok"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if err := r.Join(c, "r2", "alice", "tok"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	// Single occupancy: still only in r1
	assertUsers(t, r, "r1", []string{"alice"})
	assertUsers(t, r, "r2", nil)
	if roomExists(r, "r2") {
		t.Error("rejected join must not create a room")
	}
}

func TestRegistry_PartnerNotificationOrder(t *testing.T) {
	r := newTestRegistry()
	a := newFakeConn("a")
	b := newFakeConn("b")

	if err := r.Join(a, "room", "alice", "ta"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	assertStatuses(t, "a after own join", a, []bool{false})

	if err := r.Join(b, "room", "bob", "tb"); err != nil {
		t.Fatalf("join b: %v", err)
	}
	assertStatuses(t, "a", a, []bool{false, true})
	assertStatuses(t, "b", b, []bool{true})
}

func TestRegistry_Scenario(t *testing.T) {
	r := newTestRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")

	if err := r.Join(c1, "r1", "alice", "t1"); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := r.Join(c2, "r1", "bob", "t2"); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	assertStatuses(t, "c1", c1, []bool{false, true})
	assertStatuses(t, "c2", c2, []bool{true})
	assertUsers(t, r, "r1", []string{"alice", "bob"})

	r.Leave(c1)
	assertStatuses(t, "c2 after alice left", c2, []bool{true, false})
	assertUsers(t, r, "r1", []string{"bob"})

	r.Leave(c2)
	if roomExists(r, "r1") {
		t.Error("room r1 should be removed after last leave")
	}
	assertUsers(t, r, "r1", nil)

	// alice received nothing after leaving
	assertStatuses(t, "c1 final", c1, []bool{false, true})
}

func TestRegistry_JoinLeaveSymmetry(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")

	if err := r.Join(c, "solo", "alice", "tok"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, ok := r.GetSession(c); !ok {
		t.Fatal("session should exist after join")
	}

	r.Leave(c)

	if _, ok := r.GetSession(c); ok {
		t.Error("session should be removed after leave")
	}
	if roomExists(r, "solo") {
		t.Error("room with no other occupant should be removed")
	}
}

func TestRegistry_IdempotentLeave(t *testing.T) {
	r := newTestRegistry()
	a := newFakeConn("a")
	b := newFakeConn("b")

	_ = r.Join(a, "room", "alice", "")
	_ = r.Join(b, "room", "bob", "")

	r.Leave(a)
	before := r.Stats()
	bMsgs := len(b.messages())

	r.Leave(a)

	if after := r.Stats(); after != before {
		t.Errorf("second leave changed state: before %+v after %+v", before, after)
	}
	if len(b.messages()) != bMsgs {
		t.Error("second leave must not notify the partner again")
	}

	// Never-joined connection is a no-op as well
	r.Leave(newFakeConn("stranger"))
	r.Leave(nil)
}

func TestRegistry_EmptyRoomQuery(t *testing.T) {
	r := newTestRegistry()

	users := r.GetOnlineUsers("nonexistent")
	if users == nil {
		t.Fatal("GetOnlineUsers should return an empty slice, not nil")
	}
	if len(users) != 0 {
		t.Errorf("expected no users, got %v", users)
	}
}

func TestRegistry_GetSession(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")

	if _, ok := r.GetSession(c); ok {
		t.Error("unknown connection should have no session")
	}
	if _, ok := r.GetSession(nil); ok {
		t.Error("nil connection should have no session")
	}

	_ = r.Join(c, "r1", "alice", "secret-token")

	s, ok := r.GetSession(c)
	if !ok {
		t.Fatal("session not found after join")
	}
	if s.ConnID != "c1" || s.RoomID != "r1" || s.DisplayName != "alice" || s.Token != "secret-token" {
		t.Errorf("unexpected session %+v", s)
	}
	if s.JoinedAt.IsZero() {
		t.Error("JoinedAt should be set")
	}
}

func TestRegistry_BroadcastReachAndReap(t *testing.T) {
	r := newTestRegistry()
	x := newFakeConn("x")
	y := newFakeConn("y")
	z := newFakeConn("z")

	_ = r.Join(x, "room", "xavier", "")
	_ = r.Join(y, "room", "yara", "")
	_ = r.Join(z, "room", "zoe", "")

	y.breakWith(errBroken)

	msg := NewSessionEnded("time is up")
	result := r.BroadcastToRoom(msg, "room")

	if !reflect.DeepEqual(result.Delivered, []string{"xavier", "zoe"}) {
		t.Errorf("delivered = %v", result.Delivered)
	}
	if !reflect.DeepEqual(result.Reaped, []string{"yara"}) {
		t.Errorf("reaped = %v", result.Reaped)
	}

	for name, c := range map[string]*fakeConn{"x": x, "z": z} {
		msgs := c.messages()
		if len(msgs) == 0 || msgs[len(msgs)-1] != any(msg) {
			t.Errorf("%s did not receive the broadcast", name)
		}
	}

	assertUsers(t, r, "room", []string{"xavier", "zoe"})

	// Reaping leaves the session for the caller's Leave
	if _, ok := r.GetSession(y); !ok {
		t.Error("reaped connection should keep its session record")
	}
	r.Leave(y)
	if _, ok := r.GetSession(y); ok {
		t.Error("Leave should remove the reaped connection's session")
	}
	assertUsers(t, r, "room", []string{"xavier", "zoe"})

	// Leave of a reaped member still notifies the earliest remaining occupant
	assertStatuses(t, "x", x, []bool{false, true, true, false})
	assertStatuses(t, "z", z, []bool{true})
}

func TestRegistry_BroadcastReapEmptiesRoom(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")
	_ = r.Join(c, "room", "alice", "")

	c.breakWith(errBroken)
	result := r.BroadcastToRoom(map[string]string{"type": "custom"}, "room")

	if len(result.Delivered) != 0 || len(result.Reaped) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if roomExists(r, "room") {
		t.Error("room emptied by reaping should be deleted")
	}
	if stats := r.Stats(); stats.Sessions != 1 || stats.Rooms != 0 {
		t.Errorf("expected 1 session and 0 rooms, got %+v", stats)
	}
}

func TestRegistry_BroadcastToUnknownRoom(t *testing.T) {
	r := newTestRegistry()

	result := r.BroadcastToRoom(NewSessionEnded(""), "ghost")
	if len(result.Delivered) != 0 || len(result.Reaped) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if roomExists(r, "ghost") {
		t.Error("broadcast must not create rooms")
	}
}

func TestRegistry_BroadcastPassesPayloadThrough(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")
	_ = r.Join(c, "room", "alice", "")

	payload := map[string]any{"type": "custom_event", "n": 3}
	r.BroadcastToRoom(payload, "room")

	msgs := c.messages()
	got, ok := msgs[len(msgs)-1].(map[string]any)
	if !ok || !reflect.DeepEqual(got, payload) {
		t.Errorf("payload was modified: %#v", msgs[len(msgs)-1])
	}
}

func TestRegistry_SendToPropagatesError(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")
	_ = r.Join(c, "room", "alice", "")

	if err := r.SendTo(map[string]string{"type": "pong"}, c); err != nil {
		t.Fatalf("SendTo failed: %v", err)
	}

	c.breakWith(errBroken)
	err := r.SendTo(map[string]string{"type": "pong"}, c)
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected transport error, got %v", err)
	}

	// Single-send failures are not reaped
	assertUsers(t, r, "room", []string{"alice"})

	if err := r.SendTo("x", nil); !errors.Is(err, ErrNilConnection) {
		t.Errorf("expected ErrNilConnection, got %v", err)
	}
}

func TestRegistry_DuplicateDisplayNameOverwrites(t *testing.T) {
	r := newTestRegistry()
	first := newFakeConn("first")
	second := newFakeConn("second")

	_ = r.Join(first, "room", "alice", "")
	if err := r.Join(second, "room", "alice", ""); err != nil {
		t.Fatalf("duplicate join should overwrite by default, got %v", err)
	}

	// Same name is never its own partner
	assertStatuses(t, "second", second, []bool{false})
	assertUsers(t, r, "room", []string{"alice"})

	// The earlier connection is orphaned but keeps its session
	s, ok := r.GetSession(first)
	if !ok || s.RoomID != "room" {
		t.Fatalf("orphaned session should still point at the room, got %+v ok=%v", s, ok)
	}

	// Leaving the orphan must not evict the current owner of the name
	r.Leave(first)
	assertUsers(t, r, "room", []string{"alice"})
	if _, ok := r.GetSession(second); !ok {
		t.Error("current owner lost its session")
	}
}

func TestRegistry_OrphanLeaveKeepsPartnerStatus(t *testing.T) {
	r := newTestRegistry()
	bob := newFakeConn("bob")
	first := newFakeConn("first")
	second := newFakeConn("second")

	_ = r.Join(bob, "room", "bob", "")
	_ = r.Join(first, "room", "alice", "")
	_ = r.Join(second, "room", "alice", "")
	assertStatuses(t, "bob", bob, []bool{false, true, true})

	// alice is still online through the replacing connection
	r.Leave(first)
	assertStatuses(t, "bob", bob, []bool{false, true, true})
	assertUsers(t, r, "room", []string{"alice", "bob"})

	r.Leave(second)
	assertStatuses(t, "bob", bob, []bool{false, true, true, false})
	assertUsers(t, r, "room", []string{"bob"})
}

func TestRegistry_StrictDisplayNames(t *testing.T) {
	r := newTestRegistry(WithStrictDisplayNames())
	first := newFakeConn("first")
	second := newFakeConn("second")

	_ = r.Join(first, "room", "alice", "")
	if err := r.Join(second, "room", "alice", ""); !errors.Is(err, ErrDisplayNameTaken) {
		t.Fatalf("expected ErrDisplayNameTaken, got %v", err)
	}
	if _, ok := r.GetSession(second); ok {
		t.Error("rejected connection must not have a session")
	}
	if len(second.messages()) != 0 {
		t.Error("rejected connection must not be notified")
	}

	// Same name in another room is fine
	if err := r.Join(second, "other", "alice", ""); err != nil {
		t.Errorf("join into other room failed: %v", err)
	}
}

func TestRegistry_SelfNotifyFailureStillJoins(t *testing.T) {
	r := newTestRegistry()
	c := newFakeConn("c1")
	c.breakWith(errBroken)

	err := r.Join(c, "room", "alice", "")
	if !errors.Is(err, ErrNotifyFailed) || !errors.Is(err, errBroken) {
		t.Fatalf("expected ErrNotifyFailed wrapping transport error, got %v", err)
	}
	if _, ok := r.GetSession(c); !ok {
		t.Fatal("join should be committed even when self notification fails")
	}

	r.Leave(c)
	if roomExists(r, "room") {
		t.Error("room should be gone after the caller runs Leave")
	}
}

func TestRegistry_PartnerNotifyFailureDoesNotAbortJoin(t *testing.T) {
	r := newTestRegistry()
	a := newFakeConn("a")
	b := newFakeConn("b")

	_ = r.Join(a, "room", "alice", "")
	a.breakWith(errBroken)

	if err := r.Join(b, "room", "bob", ""); err != nil {
		t.Fatalf("partner failure must not abort join: %v", err)
	}
	assertStatuses(t, "b", b, []bool{true})
	assertUsers(t, r, "room", []string{"alice", "bob"})
}

func TestRegistry_PartnerIsEarliestOtherOccupant(t *testing.T) {
	r := newTestRegistry()
	a := newFakeConn("a")
	b := newFakeConn("b")
	c := newFakeConn("c")

	_ = r.Join(a, "room", "alice", "")
	_ = r.Join(b, "room", "bob", "")
	_ = r.Join(c, "room", "carol", "")

	// Only one partner is notified of carol's arrival
	assertStatuses(t, "a", a, []bool{false, true, true})
	assertStatuses(t, "b", b, []bool{true})
	assertStatuses(t, "c", c, []bool{true})

	// Broadcast is the only operation reaching everyone
	result := r.BroadcastToRoom(NewSessionEnded(""), "room")
	if len(result.Delivered) != 3 {
		t.Errorf("broadcast should reach all three occupants, got %v", result.Delivered)
	}
}

func TestRegistry_RoomsAndStats(t *testing.T) {
	r := newTestRegistry()
	_ = r.Join(newFakeConn("1"), "b-room", "bob", "")
	_ = r.Join(newFakeConn("2"), "a-room", "zed", "")
	_ = r.Join(newFakeConn("3"), "a-room", "amy", "")

	rooms := r.Rooms()
	want := []RoomOccupancy{
		{RoomID: "a-room", Users: []string{"amy", "zed"}},
		{RoomID: "b-room", Users: []string{"bob"}},
	}
	if !reflect.DeepEqual(rooms, want) {
		t.Errorf("Rooms() = %+v, want %+v", rooms, want)
	}

	stats := r.Stats()
	if stats != (Stats{Rooms: 2, Sessions: 3, Members: 3}) {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	r := newTestRegistry()
	const rooms = 20
	const perRoom = 4

	conns := make([]*fakeConn, 0, rooms*perRoom)
	for i := 0; i < rooms; i++ {
		for j := 0; j < perRoom; j++ {
			conns = append(conns, newFakeConn(fmt.Sprintf("conn-%d-%d", i, j)))
		}
	}

	var wg sync.WaitGroup
	for idx, c := range conns {
		wg.Add(1)
		go func(idx int, c *fakeConn) {
			defer wg.Done()
			roomID := fmt.Sprintf("room-%d", idx/perRoom)
			name := fmt.Sprintf("user-%d", idx%perRoom)
			if err := r.Join(c, roomID, name, ""); err != nil {
				t.Errorf("join %s: %v", c.id, err)
				return
			}
			r.BroadcastToRoom(map[string]string{"type": "tick"}, roomID)
			_ = r.GetOnlineUsers(roomID)
		}(idx, c)
	}
	wg.Wait()

	stats := r.Stats()
	if stats.Rooms != rooms || stats.Sessions != rooms*perRoom || stats.Members != rooms*perRoom {
		t.Fatalf("unexpected stats after concurrent joins: %+v", stats)
	}

	// Single occupancy: every connection appears exactly once across all rooms
	seen := make(map[string]int)
	r.mu.RLock()
	for _, room := range r.rooms {
		for _, connID := range room {
			seen[connID]++
		}
	}
	r.mu.RUnlock()
	for id, n := range seen {
		if n != 1 {
			t.Errorf("connection %s appears %d times", id, n)
		}
	}

	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Leave(c)
			r.Leave(c)
		}(c)
	}
	wg.Wait()

	if stats := r.Stats(); stats != (Stats{}) {
		t.Errorf("expected empty registry after concurrent leaves, got %+v", stats)
	}
}

// recordingObserver counts registry activity
type recordingObserver struct {
	mu        sync.Mutex
	joins     int
	leaves    int
	failures  int
	delivered int
	reaped    int
	rooms     int
	sessions  int
}

func (o *recordingObserver) MemberJoined(string) {
	o.mu.Lock()
	o.joins++
	o.mu.Unlock()
}

func (o *recordingObserver) MemberLeft(string) {
	o.mu.Lock()
	o.leaves++
	o.mu.Unlock()
}

func (o *recordingObserver) Reaped(_ string, n int) {
	o.mu.Lock()
	o.reaped += n
	o.mu.Unlock()
}

func (o *recordingObserver) Occupancy(rooms, sessions int) {
	o.mu.Lock()
	o.rooms, o.sessions = rooms, sessions
	o.mu.Unlock()
}

func (o *recordingObserver) Delivered(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures++
		return
	}
	o.delivered++
}

func TestRegistry_ObserverReceivesActivity(t *testing.T) {
	obs := &recordingObserver{}
	r := newTestRegistry(WithObserver(obs))
	a := newFakeConn("a")
	b := newFakeConn("b")

	_ = r.Join(a, "room", "alice", "")
	_ = r.Join(b, "room", "bob", "")
	b.breakWith(errBroken)
	r.BroadcastToRoom(NewSessionEnded(""), "room")
	r.Leave(a)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.joins != 2 || obs.leaves != 1 {
		t.Errorf("joins=%d leaves=%d", obs.joins, obs.leaves)
	}
	if obs.reaped != 1 || obs.failures != 1 {
		t.Errorf("reaped=%d failures=%d", obs.reaped, obs.failures)
	}
	// a: false, true, broadcast; b: true
	if obs.delivered != 4 {
		t.Errorf("delivered=%d, want 4", obs.delivered)
	}
	if obs.rooms != 0 || obs.sessions != 1 {
		t.Errorf("occupancy rooms=%d sessions=%d", obs.rooms, obs.sessions)
	}
}

// blockingConn stalls every write until released, like a client whose send
// queue is full
type blockingConn struct {
	id      string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingConn(id string) *blockingConn {
	return &blockingConn{id: id, entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *blockingConn) ID() string { return c.id }

func (c *blockingConn) WriteJSON(v any) error {
	c.once.Do(func() { close(c.entered) })
	<-c.release
	return nil
}

func (c *blockingConn) Close() error { return nil }

// within fails the test if fn does not return before d
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Errorf("%s blocked for more than %v behind a slow delivery", what, d)
	}
}

// TECHNICAL VALIDATION TEST: a stalled recipient only delays its own room
func TestRegistry_SlowDeliveryDoesNotStallOtherRooms(t *testing.T) {
	r := newTestRegistry()
	slow := newBlockingConn("slow")
	defer close(slow.release)

	go func() { _ = r.Join(slow, "r1", "alice", "") }()
	select {
	case <-slow.entered:
	case <-time.After(time.Second):
		t.Fatal("slow join never reached its notification")
	}

	carol := newFakeConn("carol")
	dave := newFakeConn("dave")
	within(t, 500*time.Millisecond, "Join on another room", func() {
		if err := r.Join(carol, "r2", "carol", ""); err != nil {
			t.Errorf("join r2: %v", err)
		}
		if err := r.Join(dave, "r2", "dave", ""); err != nil {
			t.Errorf("join r2: %v", err)
		}
	})
	within(t, 500*time.Millisecond, "GetOnlineUsers", func() { _ = r.GetOnlineUsers("r3") })
	within(t, 500*time.Millisecond, "BroadcastToRoom", func() {
		if res := r.BroadcastToRoom("x", "r2"); len(res.Delivered) != 2 {
			t.Errorf("broadcast delivered to %v", res.Delivered)
		}
	})
	within(t, 500*time.Millisecond, "Leave on another room", func() { r.Leave(dave) })
	within(t, 500*time.Millisecond, "Rooms", func() { _ = r.Rooms() })

	assertStatuses(t, "carol", carol, []bool{false, true, false})

	// The slow join is committed before its notification is written
	if _, ok := r.GetSession(slow); !ok {
		t.Error("slow connection should already hold a session")
	}
}

func TestRegistry_RoomLocksReleased(t *testing.T) {
	r := newTestRegistry()
	a := newFakeConn("a")
	b := newFakeConn("b")
	_ = r.Join(a, "room", "a", "")
	_ = r.Join(b, "other", "b", "")
	r.Leave(a)
	r.Leave(b)

	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	if n := len(r.roomLocks); n != 0 {
		t.Errorf("expected no room locks after all operations, got %d", n)
	}
}
