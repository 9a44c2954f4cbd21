// Package ws implements the websocket session layer: one connection per user,
// authenticated by a handshake frame, with read/write pumps, keepalive, and
// presence registration. Frames are JSON envelopes of {"type", "payload"}.
package ws

import "encoding/json"

// Event names carried in the frame envelope.
const (
	// EventUserConnected is the handshake: the first frame a client must
	// send, carrying its username. The server answers with EventOnlineUsers.
	EventUserConnected = "user connected"

	// EventPrivateMessage carries a chat message. Inbound the payload is
	// {to, message}; outbound it is the full relayed message.
	EventPrivateMessage = "private message"

	// EventMessagesRead acknowledges that the client has viewed a partner's
	// messages, clearing the unread counter.
	EventMessagesRead = "messages read"

	// EventOnlineUsers is sent to a freshly authenticated session with the
	// list of currently online usernames.
	EventOnlineUsers = "online users"

	// EventError reports a rejected inbound frame back to the client.
	EventError = "error"
)

// Frame is the wire envelope for every websocket message in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// connectPayload is the handshake payload of EventUserConnected.
type connectPayload struct {
	Username string `json:"username"`
}

// sendPayload is the inbound payload of EventPrivateMessage. The sender is
// the session's authenticated user, never taken from the frame.
type sendPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// readPayload is the inbound payload of EventMessagesRead.
type readPayload struct {
	Partner string `json:"partner"`
}

// errorPayload is the outbound payload of EventError.
type errorPayload struct {
	Message string `json:"message"`
}

// encodeFrame marshals an event and its payload into a wire-ready frame.
func encodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: event, Payload: raw})
}

// decodeFrame parses a raw inbound frame.
func decodeFrame(raw []byte, f *Frame) error {
	return json.Unmarshal(raw, f)
}

// decodePayload parses an inbound frame's payload into dst.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(raw, dst)
}
