package presence

import (
	"sync"
	"testing"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

type recordedEvent struct {
	Event   string
	Payload any
}

type stubSession struct {
	mu   sync.Mutex
	user string
	got  []recordedEvent
}

func newStubSession(user string) *stubSession { return &stubSession{user: user} }

func (s *stubSession) Username() string { return s.user }

func (s *stubSession) Send(event string, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, recordedEvent{Event: event, Payload: payload})
	return true
}

func (s *stubSession) events() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.got...)
}

func lastStatus(t *testing.T, s *stubSession) domain.PresenceEvent {
	t.Helper()
	evs := s.events()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Event == StatusEvent {
			return evs[i].Payload.(domain.PresenceEvent)
		}
	}
	t.Fatalf("no %q event seen by %s", StatusEvent, s.user)
	return domain.PresenceEvent{}
}

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()
	alice := newStubSession("alice")

	tok := r.Register(alice)
	if !r.IsOnline("alice") {
		t.Fatalf("alice should be online after Register")
	}
	if s, ok := r.Lookup("alice"); !ok || s != Session(alice) {
		t.Fatalf("Lookup(alice) = %v, %v", s, ok)
	}

	r.Unregister("alice", tok)
	if r.IsOnline("alice") {
		t.Fatalf("alice should be offline after Unregister")
	}
}

func TestRegistry_StaleTokenCannotKnockReconnectOffline(t *testing.T) {
	r := NewRegistry()
	conn1 := newStubSession("alice")
	conn2 := newStubSession("alice")

	tok1 := r.Register(conn1)
	// Rapid reconnect: the new connection registers before the old one's
	// teardown runs.
	tok2 := r.Register(conn2)

	r.Unregister("alice", tok1)
	if !r.IsOnline("alice") {
		t.Fatalf("stale teardown must not remove the fresh session")
	}
	if s, _ := r.Lookup("alice"); s != Session(conn2) {
		t.Fatalf("active session should be the reconnect")
	}

	r.Unregister("alice", tok2)
	if r.IsOnline("alice") {
		t.Fatalf("current token should remove the session")
	}
}

func TestRegistry_StaleUnregisterSendsNoOfflineEvent(t *testing.T) {
	r := NewRegistry()
	bob := newStubSession("bob")
	r.Register(bob)

	conn1 := newStubSession("alice")
	tok1 := r.Register(conn1)
	r.Register(newStubSession("alice"))

	before := len(bob.events())
	r.Unregister("alice", tok1)
	after := bob.events()
	if len(after) != before {
		t.Fatalf("bob saw %d new events after stale unregister; want 0", len(after)-before)
	}
}

func TestRegistry_BroadcastsToOthersOnly(t *testing.T) {
	r := NewRegistry()
	bob := newStubSession("bob")
	r.Register(bob)

	alice := newStubSession("alice")
	tok := r.Register(alice)

	ev := lastStatus(t, bob)
	if ev.Username != "alice" || !ev.IsOnline {
		t.Errorf("bob saw %+v; want alice online", ev)
	}
	for _, got := range alice.events() {
		if got.Event == StatusEvent && got.Payload.(domain.PresenceEvent).Username == "alice" {
			t.Errorf("alice received her own status event")
		}
	}

	r.Unregister("alice", tok)
	ev = lastStatus(t, bob)
	if ev.Username != "alice" || ev.IsOnline {
		t.Errorf("bob saw %+v; want alice offline", ev)
	}
}

func TestRegistry_Deliver(t *testing.T) {
	r := NewRegistry()
	alice := newStubSession("alice")
	r.Register(alice)

	if !r.Deliver("alice", "private message", domain.Message{From: "bob", Body: "hi"}) {
		t.Fatalf("Deliver to online user should report true")
	}
	if r.Deliver("ghost", "private message", nil) {
		t.Fatalf("Deliver to offline user should report false")
	}

	evs := alice.events()
	found := false
	for _, e := range evs {
		if e.Event == "private message" {
			found = true
		}
	}
	if !found {
		t.Fatalf("alice never received the delivered event: %+v", evs)
	}
}

func TestRegistry_Online(t *testing.T) {
	r := NewRegistry()
	r.Register(newStubSession("alice"))
	r.Register(newStubSession("bob"))

	online := r.Online()
	if len(online) != 2 {
		t.Fatalf("Online() = %v; want two users", online)
	}
}
