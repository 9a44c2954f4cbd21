package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// Key layout in the chat state store:
//
//	chats:<user>              list of partner usernames
//	unread:<owner>:<partner>  counter of unread messages from partner
//	messages:<roomKey>        list of JSON messages, oldest first
//	public_key:<user>         armored public key blob
//	idem:<scope>:<key>        idempotency marks (see idempotency.go)

func chatsKey(user string) string            { return "chats:" + user }
func unreadKey(owner, partner string) string { return fmt.Sprintf("unread:%s:%s", owner, partner) }
func messagesKey(roomKey string) string      { return "messages:" + roomKey }
func publicKeyKey(user string) string        { return "public_key:" + user }

// linkScript appends a partner to a chat list only when absent, so repeated
// links never produce duplicate entries. Returns 1 when the entry was added.
var linkScript = redis.NewScript(`
local pos = redis.call('LPOS', KEYS[1], ARGV[1])
if not pos then
  redis.call('RPUSH', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// LinkUsers records that a and b are chat partners, updating both lists.
// Idempotent: linking an already linked pair is a no-op. The two sides are
// separate operations; a crash between them leaves a one-sided edge that the
// next link repairs.
func LinkUsers(ctx context.Context, rdb *redis.Client, a, b string) error {
	if err := linkScript.Run(ctx, rdb, []string{chatsKey(a)}, b).Err(); err != nil {
		return fmt.Errorf("link %s -> %s: %w", a, b, err)
	}
	if err := linkScript.Run(ctx, rdb, []string{chatsKey(b)}, a).Err(); err != nil {
		return fmt.Errorf("link %s -> %s: %w", b, a, err)
	}
	return nil
}

// UnlinkUsers removes the partner edge in both directions and clears the
// room history and both unread counters. Unlinking a pair that was never
// linked is a no-op.
func UnlinkUsers(ctx context.Context, rdb *redis.Client, a, b string) error {
	pipe := rdb.Pipeline()
	pipe.LRem(ctx, chatsKey(a), 0, b)
	pipe.LRem(ctx, chatsKey(b), 0, a)
	pipe.Del(ctx, messagesKey(domain.RoomKey(a, b)))
	pipe.Del(ctx, unreadKey(a, b))
	pipe.Del(ctx, unreadKey(b, a))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unlink %s/%s: %w", a, b, err)
	}
	return nil
}

// Partners returns the chat partner list for user, in link order.
func Partners(ctx context.Context, rdb *redis.Client, user string) ([]string, error) {
	names, err := rdb.LRange(ctx, chatsKey(user), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("partners of %s: %w", user, err)
	}
	return names, nil
}

// AppendMessage pushes msg onto the end of the room's history so the list
// stays in chronological order.
func AppendMessage(ctx context.Context, rdb *redis.Client, roomKey string, msg domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := rdb.RPush(ctx, messagesKey(roomKey), raw).Err(); err != nil {
		return fmt.Errorf("append to %s: %w", roomKey, err)
	}
	return nil
}

// History returns messages for a room, oldest first. start and stop are list
// indexes in redis semantics (0, -1 means everything). Entries that fail to
// decode are skipped rather than failing the whole read.
func History(ctx context.Context, rdb *redis.Client, roomKey string, start, stop int64) ([]domain.Message, error) {
	raws, err := rdb.LRange(ctx, messagesKey(roomKey), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", roomKey, err)
	}
	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var m domain.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// HistoryLen returns the number of messages stored for a room.
func HistoryLen(ctx context.Context, rdb *redis.Client, roomKey string) (int64, error) {
	n, err := rdb.LLen(ctx, messagesKey(roomKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("history length of %s: %w", roomKey, err)
	}
	return n, nil
}

// IncrUnread atomically bumps owner's unread counter for partner and returns
// the new value. A single INCR keeps concurrent senders from losing counts.
func IncrUnread(ctx context.Context, rdb *redis.Client, owner, partner string) (int64, error) {
	n, err := rdb.Incr(ctx, unreadKey(owner, partner)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr unread %s:%s: %w", owner, partner, err)
	}
	return n, nil
}

// ResetUnread clears owner's unread counter for partner. Missing counters
// read as zero, so deleting the key is equivalent to setting it to 0.
func ResetUnread(ctx context.Context, rdb *redis.Client, owner, partner string) error {
	if err := rdb.Del(ctx, unreadKey(owner, partner)).Err(); err != nil {
		return fmt.Errorf("reset unread %s:%s: %w", owner, partner, err)
	}
	return nil
}

// Unread returns owner's unread counter for partner, defaulting to 0 when the
// counter does not exist.
func Unread(ctx context.Context, rdb *redis.Client, owner, partner string) (int64, error) {
	n, err := rdb.Get(ctx, unreadKey(owner, partner)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("unread %s:%s: %w", owner, partner, err)
	}
	return n, nil
}

// SetPublicKey stores user's armored public key, replacing any previous one.
func SetPublicKey(ctx context.Context, rdb *redis.Client, user, key string) error {
	if err := rdb.Set(ctx, publicKeyKey(user), key, 0).Err(); err != nil {
		return fmt.Errorf("set public key for %s: %w", user, err)
	}
	return nil
}

// GetPublicKey returns user's stored public key, or "" when none was uploaded.
func GetPublicKey(ctx context.Context, rdb *redis.Client, user string) (string, error) {
	key, err := rdb.Get(ctx, publicKeyKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get public key for %s: %w", user, err)
	}
	return key, nil
}

// OverviewStats summarizes a user's chat state for cache validation: the
// partner count plus the sum of all unread counters. Used to derive a weak
// ETag for the overview endpoint.
func OverviewStats(ctx context.Context, rdb *redis.Client, user string) (partners int64, unreadTotal int64, err error) {
	names, err := Partners(ctx, rdb, user)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range names {
		n, err := Unread(ctx, rdb, user, p)
		if err != nil {
			return 0, 0, err
		}
		unreadTotal += n
	}
	return int64(len(names)), unreadTotal, nil
}
