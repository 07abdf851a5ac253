package allocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const batchKeyPrefix = "alloc:batch:"

// IdempotencyStore remembers batch keys so retried calls can be rejected
// instead of double-applied.
type IdempotencyStore interface {
	// Reserve claims a batch key. It returns false if the key was already
	// claimed within its TTL window.
	Reserve(ctx context.Context, key string) (bool, error)
}

// RedisIdempotency is a Redis-backed IdempotencyStore using SETNX with TTL.
type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (s *RedisIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, batchKeyPrefix+key, "1", s.ttl).Result()
}
