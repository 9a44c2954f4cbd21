package repo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// RedisState adapts a go-redis client to the method set the services expect.
// Each method forwards to the package-level function of the same name.
type RedisState struct {
	rdb *redis.Client
}

// NewRedisState wraps rdb as a chat state store.
func NewRedisState(rdb *redis.Client) *RedisState { return &RedisState{rdb: rdb} }

func (s *RedisState) LinkUsers(ctx context.Context, a, b string) error {
	return LinkUsers(ctx, s.rdb, a, b)
}

func (s *RedisState) UnlinkUsers(ctx context.Context, a, b string) error {
	return UnlinkUsers(ctx, s.rdb, a, b)
}

func (s *RedisState) Partners(ctx context.Context, user string) ([]string, error) {
	return Partners(ctx, s.rdb, user)
}

func (s *RedisState) AppendMessage(ctx context.Context, roomKey string, msg domain.Message) error {
	return AppendMessage(ctx, s.rdb, roomKey, msg)
}

func (s *RedisState) History(ctx context.Context, roomKey string, start, stop int64) ([]domain.Message, error) {
	return History(ctx, s.rdb, roomKey, start, stop)
}

func (s *RedisState) HistoryLen(ctx context.Context, roomKey string) (int64, error) {
	return HistoryLen(ctx, s.rdb, roomKey)
}

func (s *RedisState) IncrUnread(ctx context.Context, owner, partner string) (int64, error) {
	return IncrUnread(ctx, s.rdb, owner, partner)
}

func (s *RedisState) ResetUnread(ctx context.Context, owner, partner string) error {
	return ResetUnread(ctx, s.rdb, owner, partner)
}

func (s *RedisState) Unread(ctx context.Context, owner, partner string) (int64, error) {
	return Unread(ctx, s.rdb, owner, partner)
}

func (s *RedisState) SetPublicKey(ctx context.Context, user, key string) error {
	return SetPublicKey(ctx, s.rdb, user, key)
}

func (s *RedisState) GetPublicKey(ctx context.Context, user string) (string, error) {
	return GetPublicKey(ctx, s.rdb, user)
}

func (s *RedisState) OverviewStats(ctx context.Context, user string) (int64, int64, error) {
	return OverviewStats(ctx, s.rdb, user)
}

// ClaimIdempotencyKey forwards to the package-level idempotency claim. Its
// signature matches the middleware's ClaimFunc so the method value can be
// passed directly.
func (s *RedisState) ClaimIdempotencyKey(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	return ClaimIdempotencyKey(ctx, s.rdb, scope, key, ttl)
}
