package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// fakeState is an in-memory ChatState with the same semantics as the redis
// implementation: missing counters read as zero, links are idempotent.
// unreadErr, when set, makes every Unread call fail.
type fakeState struct {
	mu        sync.Mutex
	partners  map[string][]string
	unread    map[string]int64
	rooms     map[string][]string
	keys      map[string]string
	unreadErr error
}

func newFakeState() *fakeState {
	return &fakeState{
		partners: map[string][]string{},
		unread:   map[string]int64{},
		rooms:    map[string][]string{},
		keys:     map[string]string{},
	}
}

func (f *fakeState) linkOne(from, to string) {
	for _, p := range f.partners[from] {
		if p == to {
			return
		}
	}
	f.partners[from] = append(f.partners[from], to)
}

func (f *fakeState) LinkUsers(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkOne(a, b)
	f.linkOne(b, a)
	return nil
}

func (f *fakeState) UnlinkUsers(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	remove := func(list []string, x string) []string {
		out := list[:0]
		for _, p := range list {
			if p != x {
				out = append(out, p)
			}
		}
		return out
	}
	f.partners[a] = remove(f.partners[a], b)
	f.partners[b] = remove(f.partners[b], a)
	delete(f.rooms, domain.RoomKey(a, b))
	delete(f.unread, a+":"+b)
	delete(f.unread, b+":"+a)
	return nil
}

func (f *fakeState) Partners(_ context.Context, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.partners[user]...), nil
}

func (f *fakeState) AppendMessage(_ context.Context, roomKey string, msg domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomKey] = append(f.rooms[roomKey], string(raw))
	return nil
}

func (f *fakeState) History(_ context.Context, roomKey string, start, stop int64) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raws := f.rooms[roomKey]
	n := int64(len(raws))
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 || start > stop {
		return []domain.Message{}, nil
	}
	msgs := make([]domain.Message, 0, stop-start+1)
	for _, raw := range raws[start : stop+1] {
		var m domain.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
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
	if f.unreadErr != nil {
		return 0, f.unreadErr
	}
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
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, p := range f.partners[user] {
		total += f.unread[user+":"+p]
	}
	return int64(len(f.partners[user])), total, nil
}

// fakeDirectory knows a fixed set of usernames.
type fakeDirectory struct{ users map[string]bool }

func newFakeDirectory(names ...string) *fakeDirectory {
	d := &fakeDirectory{users: map[string]bool{}}
	for _, n := range names {
		d.users[n] = true
	}
	return d
}

func (d *fakeDirectory) Exists(_ context.Context, username string) (bool, error) {
	return d.users[username], nil
}

// delivery records one Deliver call.
type delivery struct {
	User    string
	Event   string
	Payload any
}

// fakeNotifier records deliveries and reports the recipients in online as connected.
type fakeNotifier struct {
	mu         sync.Mutex
	online     map[string]bool
	deliveries []delivery
}

func newFakeNotifier(online ...string) *fakeNotifier {
	n := &fakeNotifier{online: map[string]bool{}}
	for _, u := range online {
		n.online[u] = true
	}
	return n
}

func (n *fakeNotifier) Deliver(user, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, delivery{User: user, Event: event, Payload: payload})
	return n.online[user]
}

func (n *fakeNotifier) sent() []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivery(nil), n.deliveries...)
}
