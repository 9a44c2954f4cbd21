package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func idemKey(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// ClaimIdempotencyKey marks (scope, key) as used for ttl. It returns true
// when this call claimed the key and false when a previous request already
// holds it, in which case the caller should skip the side effect.
func ClaimIdempotencyKey(ctx context.Context, rdb *redis.Client, scope, key string, ttl time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, idemKey(scope, key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}
