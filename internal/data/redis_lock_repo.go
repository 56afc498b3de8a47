package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/target/ivt-chain/internal/core"
)

var _ core.Locker = (*RedisLockRepo)(nil)

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired lease re-acquired by someone else is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockRepo implements core.Locker using Redis.
type RedisLockRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLockRepo creates a RedisLockRepo. Keys are stored as prefix+key.
func NewRedisLockRepo(client redis.UniversalClient, prefix string) *RedisLockRepo {
	return &RedisLockRepo{client: client, prefix: prefix}
}

// Acquire atomically takes the lease with SET NX and a TTL.
// Returns the token needed to release it; ok is false when the key is already held.
func (r *RedisLockRepo) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}

	actualTTL := ttl
	if ttl <= 0 {
		actualTTL = time.Second // Minimum TTL of 1 second
	}

	token := uuid.NewString()
	// SETNX followed by EXPIRE is not atomic; SET with NX + TTL is.
	status, err := r.client.SetArgs(ctx, r.prefix+key, token, redis.SetArgs{Mode: "NX", TTL: actualTTL}).Result()
	if err != nil {
		// When NX condition is not met (key exists), Redis returns a nil reply.
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis SET NX: %w", err)
	}

	return token, status == "OK", nil
}

// Release deletes the lease if token still owns it.
func (r *RedisLockRepo) Release(ctx context.Context, key, token string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	n, err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("redis release: %w", err)
	}
	return n > 0, nil
}
