package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "guardtag:pin_attempts:"

// RedisStore tracks attempt windows in Redis so the budget holds across
// service instances. The window TTL is set only when the counter is created,
// anchoring the window at the first failure.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed attempt store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	rkey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	// NX keeps the original expiry, so later failures never stretch the window.
	pipe.ExpireNX(ctx, rkey, window)
	ttl := pipe.PTTL(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("increment pin attempts: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return int(incr.Val()), remaining, nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int, time.Duration, error) {
	rkey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	get := pipe.Get(ctx, rkey)
	ttl := pipe.PTTL(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("count pin attempts: %w", err)
	}

	count, err := get.Int()
	if err != nil {
		return 0, 0, fmt.Errorf("count pin attempts: %w", err)
	}
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset pin attempts: %w", err)
	}
	return nil
}
