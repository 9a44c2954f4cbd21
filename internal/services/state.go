package services

import (
	"context"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// ChatState is the conversation store as seen by the services: partner lists,
// unread counters, room histories, and public keys. The production
// implementation is repo.RedisState; tests substitute an in-memory fake.
type ChatState interface {
	LinkUsers(ctx context.Context, a, b string) error
	UnlinkUsers(ctx context.Context, a, b string) error
	Partners(ctx context.Context, user string) ([]string, error)

	AppendMessage(ctx context.Context, roomKey string, msg domain.Message) error
	History(ctx context.Context, roomKey string, start, stop int64) ([]domain.Message, error)
	HistoryLen(ctx context.Context, roomKey string) (int64, error)

	IncrUnread(ctx context.Context, owner, partner string) (int64, error)
	ResetUnread(ctx context.Context, owner, partner string) error
	Unread(ctx context.Context, owner, partner string) (int64, error)

	SetPublicKey(ctx context.Context, user, key string) error
	GetPublicKey(ctx context.Context, user string) (string, error)

	OverviewStats(ctx context.Context, user string) (partners int64, unreadTotal int64, err error)
}

// UserDirectory answers existence checks against the account database.
// AccountService is the production implementation.
type UserDirectory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Notifier pushes events to live sessions. Delivery is fire and forget: the
// return value reports whether the recipient had a connected session, not
// whether the frame reached the client.
type Notifier interface {
	Deliver(user, event string, payload any) bool
}
