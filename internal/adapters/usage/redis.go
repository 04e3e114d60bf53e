package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "policyqa:"

// RedisCounter keeps daily counts in Redis so every replica shares one quota.
type RedisCounter struct {
	client *goredis.Client
	prefix string
}

// NewRedisCounter wraps an existing client. An empty prefix uses "policyqa:".
func NewRedisCounter(client *goredis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCounter{client: client, prefix: prefix}
}

// Get returns the count for key, 0 when the key does not exist.
func (c *RedisCounter) Get(ctx context.Context, key string) (int, error) {
	n, err := c.client.Get(ctx, c.prefix+key).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

// Increment bumps key and refreshes its expiry in one transaction.
func (c *RedisCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	redisKey := c.prefix + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis pipeline error: %w", err)
	}
	return int(incr.Val()), nil
}
