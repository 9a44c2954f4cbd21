package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avoren/go-messenger-backend/internal/config"
	"github.com/avoren/go-messenger-backend/internal/domain"
	"github.com/avoren/go-messenger-backend/internal/presence"
	"github.com/avoren/go-messenger-backend/internal/services"
)

// fakeConn is an in-memory Conn. Reads block on the inbound channel; writes
// are recorded for inspection.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, raw, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	if messageType == websocket.TextMessage {
		f.written = append(f.written, data)
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeConn) frames(t *testing.T) []Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.written))
	for _, raw := range f.written {
		var fr Frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			t.Fatalf("bad outbound frame %q: %v", raw, err)
		}
		out = append(out, fr)
	}
	return out
}

// fakeState is a map-backed services.ChatState.
type fakeState struct {
	mu       sync.Mutex
	partners map[string][]string
	unread   map[string]int64
	rooms    map[string][]domain.Message
	keys     map[string]string
}

func newFakeState() *fakeState {
	return &fakeState{
		partners: map[string][]string{},
		unread:   map[string]int64{},
		rooms:    map[string][]domain.Message{},
		keys:     map[string]string{},
	}
}

func (f *fakeState) LinkUsers(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partners[a] = append(f.partners[a], b)
	f.partners[b] = append(f.partners[b], a)
	return nil
}

func (f *fakeState) UnlinkUsers(_ context.Context, a, b string) error { return nil }

func (f *fakeState) Partners(_ context.Context, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partners[user], nil
}

func (f *fakeState) AppendMessage(_ context.Context, roomKey string, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomKey] = append(f.rooms[roomKey], msg)
	return nil
}

func (f *fakeState) History(_ context.Context, roomKey string, _, _ int64) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[roomKey], nil
}

func (f *fakeState) HistoryLen(_ context.Context, roomKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rooms[roomKey])), nil
}

func (f *fakeState) IncrUnread(_ context.Context, owner, partner string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread[owner+":"+partner]++
	return f.unread[owner+":"+partner], nil
}

func (f *fakeState) ResetUnread(_ context.Context, owner, partner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.unread, owner+":"+partner)
	return nil
}

func (f *fakeState) Unread(_ context.Context, owner, partner string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread[owner+":"+partner], nil
}

func (f *fakeState) SetPublicKey(_ context.Context, user, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[user] = key
	return nil
}

func (f *fakeState) GetPublicKey(_ context.Context, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[user], nil
}

func (f *fakeState) OverviewStats(_ context.Context, user string) (int64, int64, error) {
	return 0, 0, nil
}

type fakeDirectory struct{ users map[string]bool }

func (d *fakeDirectory) Exists(_ context.Context, username string) (bool, error) {
	return d.users[username], nil
}

// harness bundles the shared registry and services backing multiple clients.
type harness struct {
	registry *presence.Registry
	state    *fakeState
	messages *services.MessageService
	chats    *services.ChatService
	users    *fakeDirectory
}

func newHarness(usernames ...string) *harness {
	dir := &fakeDirectory{users: map[string]bool{}}
	for _, u := range usernames {
		dir.users[u] = true
	}
	state := newFakeState()
	registry := presence.NewRegistry()
	return &harness{
		registry: registry,
		state:    state,
		messages: services.NewMessageService(dir, state, registry, 4000),
		chats:    services.NewChatService(dir, state),
		users:    dir,
	}
}

func (h *harness) client() (*Client, *fakeConn) {
	conn := newFakeConn()
	cfg := config.WSConfig{
		WriteWait:  time.Second,
		PongWait:   time.Second,
		SendBuffer: 16,
		MaxFrame:   1 << 10,
	}
	return NewClient(conn, cfg, h.registry, h.users, h.messages, h.chats), conn
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	raw, err := encodeFrame(event, payload)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	return raw
}

// drain pulls every queued outbound frame off the client's send queue.
func drain(t *testing.T, c *Client) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case raw := <-c.send:
			var fr Frame
			if err := json.Unmarshal(raw, &fr); err != nil {
				t.Fatalf("bad frame %q: %v", raw, err)
			}
			out = append(out, fr)
		default:
			return out
		}
	}
}

func authenticate(t *testing.T, c *Client, user string) {
	t.Helper()
	c.handleFrame(context.Background(), frame(t, EventUserConnected, connectPayload{Username: user}))
	for _, fr := range drain(t, c) {
		if fr.Type == EventError {
			t.Fatalf("handshake for %s rejected: %s", user, fr.Payload)
		}
	}
}

func TestClient_Handshake(t *testing.T) {
	h := newHarness("alice")
	c, _ := h.client()

	c.handleFrame(context.Background(), frame(t, EventUserConnected, connectPayload{Username: "alice"}))

	if c.Username() != "alice" {
		t.Errorf("Username = %q; want alice", c.Username())
	}
	if !h.registry.IsOnline("alice") {
		t.Errorf("alice should be registered after handshake")
	}
	frames := drain(t, c)
	if len(frames) == 0 || frames[0].Type != EventOnlineUsers {
		t.Errorf("frames after handshake = %+v; want online users list", frames)
	}
}

func TestClient_RejectsFramesBeforeHandshake(t *testing.T) {
	h := newHarness("alice", "bob")
	c, _ := h.client()

	c.handleFrame(context.Background(), frame(t, EventPrivateMessage, sendPayload{To: "bob", Message: "hi"}))

	frames := drain(t, c)
	if len(frames) != 1 || frames[0].Type != EventError {
		t.Fatalf("frames = %+v; want one error", frames)
	}
	if n, _ := h.state.HistoryLen(context.Background(), "alice-bob"); n != 0 {
		t.Errorf("message relayed before handshake")
	}
}

func TestClient_HandshakeUnknownUser(t *testing.T) {
	h := newHarness("alice")
	c, _ := h.client()

	c.handleFrame(context.Background(), frame(t, EventUserConnected, connectPayload{Username: "ghost"}))

	if h.registry.IsOnline("ghost") {
		t.Errorf("unknown user must not register")
	}
	frames := drain(t, c)
	if len(frames) != 1 || frames[0].Type != EventError {
		t.Errorf("frames = %+v; want one error", frames)
	}
}

func TestClient_PrivateMessageReachesRecipient(t *testing.T) {
	h := newHarness("alice", "bob")
	alice, _ := h.client()
	bob, _ := h.client()
	authenticate(t, alice, "alice")
	authenticate(t, bob, "bob")
	drain(t, bob) // discard handshake traffic

	alice.handleFrame(context.Background(), frame(t, EventPrivateMessage, sendPayload{To: "bob", Message: "hello"}))

	var got *domain.Message
	for _, fr := range drain(t, bob) {
		if fr.Type == EventPrivateMessage {
			var m domain.Message
			if err := json.Unmarshal(fr.Payload, &m); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			got = &m
		}
	}
	if got == nil {
		t.Fatalf("bob never received the message")
	}
	if got.From != "alice" || got.Body != "hello" || got.Timestamp == 0 {
		t.Errorf("delivered message = %+v", got)
	}

	if n, _ := h.state.HistoryLen(context.Background(), "alice-bob"); n != 1 {
		t.Errorf("history length = %d; want 1", n)
	}
	if n, _ := h.state.Unread(context.Background(), "bob", "alice"); n != 1 {
		t.Errorf("bob unread = %d; want 1", n)
	}
}

func TestClient_SenderIdentityComesFromSession(t *testing.T) {
	h := newHarness("alice", "bob", "mallory")
	mallory, _ := h.client()
	authenticate(t, mallory, "mallory")

	// A forged "from" inside the payload must be ignored.
	raw := []byte(`{"type":"private message","payload":{"to":"bob","message":"hi","from":"alice"}}`)
	mallory.handleFrame(context.Background(), raw)

	hist, _ := h.state.History(context.Background(), domain.RoomKey("mallory", "bob"), 0, -1)
	if len(hist) != 1 || hist[0].From != "mallory" {
		t.Fatalf("history = %+v; want one message from mallory", hist)
	}
}

func TestClient_MessagesReadClearsCounter(t *testing.T) {
	h := newHarness("alice", "bob")
	alice, _ := h.client()
	bob, _ := h.client()
	authenticate(t, alice, "alice")
	authenticate(t, bob, "bob")

	bob.handleFrame(context.Background(), frame(t, EventPrivateMessage, sendPayload{To: "alice", Message: "ping"}))
	if n, _ := h.state.Unread(context.Background(), "alice", "bob"); n != 1 {
		t.Fatalf("unread = %d; want 1", n)
	}

	alice.handleFrame(context.Background(), frame(t, EventMessagesRead, readPayload{Partner: "bob"}))
	if n, _ := h.state.Unread(context.Background(), "alice", "bob"); n != 0 {
		t.Errorf("unread after read ack = %d; want 0", n)
	}
}

func TestClient_TeardownUnregisters(t *testing.T) {
	h := newHarness("alice")
	c, conn := h.client()
	authenticate(t, c, "alice")

	c.teardown()
	if h.registry.IsOnline("alice") {
		t.Errorf("alice still online after teardown")
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Errorf("underlying connection not closed")
	}

	// Idempotent.
	c.teardown()
}

func TestClient_SupersededTeardownKeepsReconnectOnline(t *testing.T) {
	h := newHarness("alice")
	first, _ := h.client()
	authenticate(t, first, "alice")

	second, _ := h.client()
	authenticate(t, second, "alice")

	// The old connection's teardown races in after the reconnect.
	first.teardown()

	if !h.registry.IsOnline("alice") {
		t.Fatalf("reconnect knocked offline by stale teardown")
	}
	if s, _ := h.registry.Lookup("alice"); s != presence.Session(second) {
		t.Fatalf("active session is not the reconnect")
	}
}

func TestClient_TeardownDuringHandshakeNeverLeaksRegistration(t *testing.T) {
	// A write failure can tear the session down while the read pump is still
	// inside the handshake. Whatever the interleaving, the dead session must
	// not stay registered as online.
	for i := 0; i < 200; i++ {
		h := newHarness("alice")
		c, _ := h.client()
		raw := frame(t, EventUserConnected, connectPayload{Username: "alice"})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.handleFrame(context.Background(), raw)
		}()
		go func() {
			defer wg.Done()
			c.teardown()
		}()
		wg.Wait()

		if h.registry.IsOnline("alice") {
			t.Fatalf("iteration %d: dead session left registered", i)
		}
	}
}

func TestPumps_EndToEnd(t *testing.T) {
	h := newHarness("alice", "bob")
	alice, aliceConn := h.client()
	bob, bobConn := h.client()

	for _, c := range []*Client{alice, bob} {
		go c.WritePump()
		go c.ReadPump(context.Background())
	}
	aliceConn.inbound <- frame(t, EventUserConnected, connectPayload{Username: "alice"})
	bobConn.inbound <- frame(t, EventUserConnected, connectPayload{Username: "bob"})

	waitFor(t, func() bool { return h.registry.IsOnline("alice") && h.registry.IsOnline("bob") })

	aliceConn.inbound <- frame(t, EventPrivateMessage, sendPayload{To: "bob", Message: "over the wire"})

	waitFor(t, func() bool {
		for _, fr := range bobConn.frames(t) {
			if fr.Type == EventPrivateMessage {
				return true
			}
		}
		return false
	})

	aliceConn.Close()
	waitFor(t, func() bool { return !h.registry.IsOnline("alice") })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
