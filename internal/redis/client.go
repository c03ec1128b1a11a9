// Package redis wraps go-redis with the operations the cache hierarchy
// needs: key/value access with TTLs, batch get/set, pattern enumeration,
// token-checked locks, and shared counters.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseScript deletes a lock key only when its value still equals the
// caller's token, so a holder whose lock already expired cannot delete a
// later holder's lock.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Config holds Redis connection settings
type Config struct {
	Address   string        `json:"address"`
	Password  string        `json:"password"`
	DB        int           `json:"db"`
	PoolSize  int           `json:"pool_size"`
	OpTimeout time.Duration `json:"op_timeout"`
}

// Client wraps a go-redis client. The connection is established lazily on
// first use, so constructing a Client never fails on an unreachable server;
// callers probe reachability with Ping.
type Client struct {
	rdb       *redis.Client
	opTimeout time.Duration
}

// NewClient creates a Redis client for the given config. No connection is
// attempted here.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	return &Client{rdb: rdb, opTimeout: config.OpTimeout}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// withTimeout bounds every network call so an unreachable server degrades
// instead of blocking the caller.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// Get returns the raw value for key. redis.Nil is passed through for the
// caller to translate into a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value under key. ttl of zero means no expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX stores value only if key is absent, returning whether it was set.
func (c *Client) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the given keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.Del(ctx, keys...).Result()
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	count, err := c.rdb.Exists(ctx, key).Result()
	return count > 0, err
}

// MGet fetches multiple keys in one round trip. Absent keys come back nil.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.MGet(ctx, keys...).Result()
}

// MSet stores multiple key/value pairs, then applies the TTL key by key in
// a second pass since Redis has no batched SET-with-expiry. The second pass
// is not transactional: a crash mid-batch can leave values stored without
// expiry.
func (c *Client) MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error {
	if len(pairs) == 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	flat := make([]interface{}, 0, len(pairs)*2)
	for key, value := range pairs {
		flat = append(flat, key, value)
	}
	if err := c.rdb.MSet(ctx, flat...).Err(); err != nil {
		return err
	}

	if ttl <= 0 {
		return nil
	}
	for key := range pairs {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Keys enumerates keys matching pattern using SCAN, never the blocking
// KEYS command.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeletePattern removes every key matching pattern and returns the count.
func (c *Client) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := c.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return c.Del(ctx, keys...)
}

// AcquireLock atomically sets a lock key to token if absent, with expiry.
func (c *Client) AcquireLock(ctx context.Context, lockKey, token string, expiration time.Duration) (bool, error) {
	return c.SetNX(ctx, lockKey, []byte(token), expiration)
}

// ReleaseLock deletes the lock key only if it still holds token, returning
// whether the delete happened.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.rdb.Eval(ctx, releaseScript, []string{lockKey}, token).Result()
	if err != nil {
		return false, err
	}
	deleted, ok := result.(int64)
	return ok && deleted == 1, nil
}

// HIncrBy increments a field of a shared counter hash.
func (c *Client) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.rdb.HIncrBy(ctx, key, field, incr).Err()
}

// IsNil reports whether err is the go-redis key-absent sentinel.
func IsNil(err error) bool {
	return err == redis.Nil
}
