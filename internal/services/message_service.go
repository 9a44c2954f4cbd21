package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// MessageService relays messages between users: it validates the envelope,
// appends to the durable room history, bumps the recipient's unread counter,
// and attempts live delivery through the notifier.
type MessageService struct {
	users    UserDirectory
	state    ChatState
	notifier Notifier
	maxRunes int
	now      func() time.Time
}

// NewMessageService wires a MessageService. maxRunes caps the message body
// length; bodies are counted in runes, not bytes.
func NewMessageService(users UserDirectory, state ChatState, notifier Notifier, maxRunes int) *MessageService {
	return &MessageService{
		users:    users,
		state:    state,
		notifier: notifier,
		maxRunes: maxRunes,
		now:      time.Now,
	}
}

// Send relays one message from sender to recipient. The server assigns the
// timestamp so history order and delivery order agree. The message is durable
// once this returns: it is appended to the room history and the recipient's
// unread counter is bumped before live delivery is attempted. Delivery itself
// is fire and forget; an offline recipient is not an error.
func (s *MessageService) Send(ctx context.Context, sender, recipient, body string) (domain.Message, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "MessageService.Send")
	defer span.End()
	span.SetAttributes(attribute.String("message.recipient", recipient))

	if sender == recipient {
		return domain.Message{}, ErrSelfMessage
	}
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > s.maxRunes {
		return domain.Message{}, ErrMessageTooLong
	}
	// Both identities must be registered. The websocket path verifies the
	// sender at handshake, but the HTTP path takes it from the request body.
	for _, name := range []string{sender, recipient} {
		ok, err := s.users.Exists(ctx, name)
		if err != nil {
			return domain.Message{}, fmt.Errorf("check %s: %w", name, err)
		}
		if !ok {
			return domain.Message{}, ErrUnknownUser
		}
	}

	msg := domain.Message{
		From:      sender,
		Body:      body,
		Timestamp: s.now().UnixMilli(),
	}
	room := domain.RoomKey(sender, recipient)

	if err := s.state.AppendMessage(ctx, room, msg); err != nil {
		return domain.Message{}, err
	}
	if _, err := s.state.IncrUnread(ctx, recipient, sender); err != nil {
		// The message is already durable; a failed counter bump must not
		// surface as a failed send.
		log.Ctx(ctx).Error().Err(err).Str("recipient", recipient).Msg("unread increment failed")
	}

	delivered := s.notifier.Deliver(recipient, "private message", msg)
	relayedMessages.WithLabelValues(strconv.FormatBool(delivered)).Inc()
	log.Ctx(ctx).Debug().
		Str("room", room).
		Bool("delivered_live", delivered).
		Msg("message relayed")

	return msg, nil
}

// History returns a page of the room's messages, oldest first, plus the total
// number stored. The requester must be one of the room's two members. page is
// 1-based; perPage is clamped to [1, 200].
func (s *MessageService) History(ctx context.Context, requester, roomKey string, page, perPage int) ([]domain.Message, int64, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "MessageService.History")
	defer span.End()
	span.SetAttributes(attribute.String("message.room", roomKey))

	a, b, ok := domain.RoomMembers(roomKey)
	if !ok {
		return nil, 0, ErrBadRoomKey
	}
	if requester != a && requester != b {
		return nil, 0, ErrNotMember
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	if perPage > 200 {
		perPage = 200
	}

	total, err := s.state.HistoryLen(ctx, roomKey)
	if err != nil {
		return nil, 0, err
	}
	start := int64(page-1) * int64(perPage)
	stop := start + int64(perPage) - 1
	if start >= total {
		return []domain.Message{}, total, nil
	}

	msgs, err := s.state.History(ctx, roomKey, start, stop)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// SetPublicKey stores user's armored public key for partners to fetch.
func (s *MessageService) SetPublicKey(ctx context.Context, user, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyPublicKey
	}
	return s.state.SetPublicKey(ctx, user, key)
}

// GetPublicKey fetches the stored public key of any registered user.
// Returns ErrUnknownUser when no account exists and "" when the account has
// not uploaded a key.
func (s *MessageService) GetPublicKey(ctx context.Context, user string) (string, error) {
	ok, err := s.users.Exists(ctx, user)
	if err != nil {
		return "", fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return "", ErrUnknownUser
	}
	return s.state.GetPublicKey(ctx, user)
}
