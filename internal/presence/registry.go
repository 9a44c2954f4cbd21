// Package presence tracks which users currently hold a live websocket
// session and broadcasts status changes to everyone else. Each registration
// is stamped with a generation token so that the teardown of a superseded
// connection can never knock a fresh reconnect offline.
package presence

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// StatusEvent is the event name broadcast when a user's presence changes.
const StatusEvent = "user status changed"

// Session is a live connection that can accept outbound events. Send must not
// block; implementations drop the frame when the outbound queue is full.
type Session interface {
	Username() string
	Send(event string, payload any) bool
}

type entry struct {
	session Session
	token   uint64
}

// Registry maps usernames to their single active session. A user opening a
// second connection supersedes the first; the superseded session's token goes
// stale so its later Unregister is a no-op.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]entry
	lastTok  uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]entry)}
}

// Register installs s as the user's active session, superseding any previous
// one, and broadcasts an online event to all other users. The returned token
// must be passed back to Unregister by the same connection.
func (r *Registry) Register(s Session) uint64 {
	user := s.Username()

	r.mu.Lock()
	r.lastTok++
	tok := r.lastTok
	prev, had := r.sessions[user]
	r.sessions[user] = entry{session: s, token: tok}
	r.mu.Unlock()

	if had {
		log.Debug().Str("user", user).Uint64("stale_token", prev.token).Msg("session superseded")
	}
	r.broadcast(user, domain.PresenceEvent{Username: user, IsOnline: true})
	return tok
}

// Unregister removes the user's session, but only when token still identifies
// the active one. A stale token means the connection was already superseded
// by a reconnect, in which case nothing happens and no offline event is sent.
func (r *Registry) Unregister(user string, token uint64) {
	r.mu.Lock()
	cur, ok := r.sessions[user]
	if !ok || cur.token != token {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, user)
	r.mu.Unlock()

	r.broadcast(user, domain.PresenceEvent{Username: user, IsOnline: false})
}

// Lookup returns the user's active session, if any.
func (r *Registry) Lookup(user string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[user]
	return e.session, ok
}

// IsOnline reports whether the user has an active session.
func (r *Registry) IsOnline(user string) bool {
	_, ok := r.Lookup(user)
	return ok
}

// Online returns the usernames with an active session, in no particular order.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.sessions))
	for u := range r.sessions {
		users = append(users, u)
	}
	return users
}

// Deliver enqueues an event on the user's active session. It reports whether
// a session existed, not whether the frame reached the client.
func (r *Registry) Deliver(user, event string, payload any) bool {
	s, ok := r.Lookup(user)
	if !ok {
		return false
	}
	if !s.Send(event, payload) {
		log.Warn().Str("user", user).Str("event", event).Msg("outbound queue full, frame dropped")
	}
	return true
}

// broadcast sends a presence event to every session except the subject's own.
func (r *Registry) broadcast(subject string, ev domain.PresenceEvent) {
	r.mu.RLock()
	targets := make([]Session, 0, len(r.sessions))
	for u, e := range r.sessions {
		if u != subject {
			targets = append(targets, e.session)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		s.Send(StatusEvent, ev)
	}
}
