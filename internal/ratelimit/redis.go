package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is the distributed Counter backend selected when REDIS_URL is
// set, the same boot-time driver-selection pattern the Store uses for
// SQLite vs Postgres.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter parses redisURL and opens a client; the caller is expected
// to Ping it once at boot to fail fast on a bad DSN.
func NewRedisCounter(redisURL string) (*RedisCounter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse REDIS_URL: %w", err)
	}
	return &RedisCounter{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity at boot.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

// IncrementCounter atomically increments the (table, subject, windowStart)
// counter and sets its expiry on first write, giving the same
// upsert-with-increment semantics as the SQL counters table without needing
// a read-modify-write round trip.
func (c *RedisCounter) IncrementCounter(ctx context.Context, table, subject string, windowStart time.Time) (int, error) {
	key := fmt.Sprintf("edon:rl:%s:%s:%d", table, subject, windowStart.Unix())

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 25*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: redis incr %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

// DecrementCounter undoes a prior IncrementCounter, floored at zero, so a
// non-2xx response never consumes the caller's quota.
func (c *RedisCounter) DecrementCounter(ctx context.Context, table, subject string, windowStart time.Time) error {
	key := fmt.Sprintf("edon:rl:%s:%s:%d", table, subject, windowStart.Unix())
	if err := c.client.DecrBy(ctx, key, 1).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis decr %s: %w", key, err)
	}
	return c.client.Eval(ctx, `if tonumber(redis.call('GET', KEYS[1]) or '0') < 0 then redis.call('SET', KEYS[1], 0) end return 1`, []string{key}).Err()
}
