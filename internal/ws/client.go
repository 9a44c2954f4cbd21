package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avoren/go-messenger-backend/internal/config"
	"github.com/avoren/go-messenger-backend/internal/presence"
	"github.com/avoren/go-messenger-backend/internal/services"
)

// Session lifecycle. A connection starts unauthenticated, becomes active on a
// successful handshake, and ends disconnected. Frames other than the
// handshake are rejected until the session is active.
const (
	stateUnauthenticated int32 = iota
	stateActive
	stateDisconnected
)

// Conn is the subset of *websocket.Conn the client needs. Tests substitute an
// in-memory implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one websocket session. ReadPump and WritePump each own one side
// of the connection; all outbound frames go through the send queue so only
// WritePump ever writes.
type Client struct {
	conn     Conn
	cfg      config.WSConfig
	registry *presence.Registry
	users    services.UserDirectory
	messages *services.MessageService
	chats    *services.ChatService

	state atomic.Int32

	// mu guards user and token: the read pump writes them during the
	// handshake while the write pump may concurrently run teardown.
	mu    sync.Mutex
	user  string
	token uint64

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient wraps an upgraded connection. The session stays unauthenticated
// until the client sends its handshake frame.
func NewClient(
	conn Conn,
	cfg config.WSConfig,
	registry *presence.Registry,
	users services.UserDirectory,
	messages *services.MessageService,
	chats *services.ChatService,
) *Client {
	return &Client{
		conn:     conn,
		cfg:      cfg,
		registry: registry,
		users:    users,
		messages: messages,
		chats:    chats,
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
	}
}

// Username returns the authenticated user, or "" before the handshake.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Send enqueues an event for delivery. It never blocks: a full queue or a
// finished session drops the frame and reports false.
func (c *Client) Send(event string, payload any) bool {
	if c.state.Load() == stateDisconnected {
		return false
	}
	buf, err := encodeFrame(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode outbound frame")
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- buf:
		return true
	default:
		return false
	}
}

// ReadPump consumes inbound frames until the connection errors or closes,
// then tears the session down. It must run on its own goroutine per
// connection, alongside WritePump.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.teardown()

	c.conn.SetReadLimit(c.cfg.MaxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user", c.Username()).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.handleFrame(ctx, raw)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	pingPeriod := c.cfg.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case buf := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches one inbound frame. Rejections go back to the client
// as EventError frames; they never close the session.
func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var f Frame
	if err := decodeFrame(raw, &f); err != nil {
		c.Send(EventError, errorPayload{Message: "malformed frame"})
		return
	}

	if c.state.Load() == stateUnauthenticated {
		if f.Type != EventUserConnected {
			c.Send(EventError, errorPayload{Message: "handshake required"})
			return
		}
		c.handleConnect(ctx, f)
		return
	}

	switch f.Type {
	case EventUserConnected:
		// Already authenticated; repeated handshakes are ignored.
	case EventPrivateMessage:
		c.handleSend(ctx, f)
	case EventMessagesRead:
		c.handleRead(ctx, f)
	default:
		c.Send(EventError, errorPayload{Message: "unknown event: " + f.Type})
	}
}

func (c *Client) handleConnect(ctx context.Context, f Frame) {
	var p connectPayload
	if err := decodePayload(f.Payload, &p); err != nil || p.Username == "" {
		c.Send(EventError, errorPayload{Message: "username required"})
		return
	}
	ok, err := c.users.Exists(ctx, p.Username)
	if err != nil {
		log.Error().Err(err).Msg("handshake existence check failed")
		c.Send(EventError, errorPayload{Message: "try again"})
		return
	}
	if !ok {
		c.Send(EventError, errorPayload{Message: "unknown user"})
		return
	}

	c.mu.Lock()
	if c.state.Load() == stateDisconnected {
		// Torn down while the handshake was validating; never register.
		c.mu.Unlock()
		return
	}
	c.user = p.Username
	c.mu.Unlock()

	tok := c.registry.Register(c)

	c.mu.Lock()
	c.token = tok
	torn := c.state.Load() == stateDisconnected
	c.mu.Unlock()
	if torn {
		// teardown ran between Register and storing the token, so it could
		// not unregister this session. Undo the registration here.
		c.registry.Unregister(p.Username, tok)
		return
	}

	c.state.Store(stateActive)
	c.Send(EventOnlineUsers, c.registry.Online())

	log.Info().Str("user", p.Username).Msg("websocket session active")
}

func (c *Client) handleSend(ctx context.Context, f Frame) {
	var p sendPayload
	if err := decodePayload(f.Payload, &p); err != nil {
		c.Send(EventError, errorPayload{Message: "malformed message payload"})
		return
	}
	if _, err := c.messages.Send(ctx, c.user, p.To, p.Message); err != nil {
		c.Send(EventError, errorPayload{Message: err.Error()})
	}
}

func (c *Client) handleRead(ctx context.Context, f Frame) {
	var p readPayload
	if err := decodePayload(f.Payload, &p); err != nil || p.Partner == "" {
		c.Send(EventError, errorPayload{Message: "partner required"})
		return
	}
	if err := c.chats.MarkRead(ctx, c.user, p.Partner); err != nil {
		c.Send(EventError, errorPayload{Message: "mark read failed"})
	}
}

// teardown runs exactly once. A registered session unregisters from presence
// with its own token, so a reconnect that already superseded this session is
// left untouched. The token is read under the mutex because the handshake may
// still be assigning it; if Register has not completed yet, handleConnect
// sees the disconnected state and unregisters on its side instead.
func (c *Client) teardown() {
	c.once.Do(func() {
		c.state.Store(stateDisconnected)
		close(c.done)
		_ = c.conn.Close()

		c.mu.Lock()
		user, token := c.user, c.token
		c.mu.Unlock()
		if token != 0 {
			c.registry.Unregister(user, token)
			log.Info().Str("user", user).Msg("websocket session closed")
		}
	})
}
