// Package remote implements the shared L3 cache tier over Redis. It is the
// only tier visible to other processes. Every transport failure is
// downgraded to a tier-level unavailable error so a Redis outage degrades
// the hierarchy instead of failing it.
package remote

import (
	"context"
	"time"

	cacheerrors "hotly-cache/internal/common/errors"
	"hotly-cache/internal/redis"
)

// Tier adapts the Redis client to the cache tier contract. A ttl of zero
// is honored as "no expiry", which only this tier supports.
type Tier struct {
	client *redis.Client
}

// New creates an L3 tier over an already-constructed Redis client. The
// underlying connection is lazy; an unreachable server surfaces as
// unavailable results on use, never as a construction failure.
func New(client *redis.Client) (*Tier, error) {
	if client == nil {
		return nil, cacheerrors.ConfigError("redis client is required")
	}
	return &Tier{client: client}, nil
}

// Get returns the value for key, a miss, or unavailable.
func (t *Tier) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := t.client.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, cacheerrors.Miss(key)
		}
		return nil, cacheerrors.Unavailable("L3", err)
	}
	return value, nil
}

// Set stores value under key. ttl <= 0 stores without expiry.
func (t *Tier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := t.client.Set(ctx, key, value, ttl); err != nil {
		return cacheerrors.Unavailable("L3", err)
	}
	return nil
}

// Delete removes key, reporting whether it existed.
func (t *Tier) Delete(ctx context.Context, key string) (bool, error) {
	count, err := t.client.Del(ctx, key)
	if err != nil {
		return false, cacheerrors.Unavailable("L3", err)
	}
	return count > 0, nil
}

// Exists reports whether key is present.
func (t *Tier) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := t.client.Exists(ctx, key)
	if err != nil {
		return false, cacheerrors.Unavailable("L3", err)
	}
	return exists, nil
}

// MGet fetches several keys at once. The result maps only the keys that
// were present.
func (t *Tier) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	raw, err := t.client.MGet(ctx, keys...)
	if err != nil {
		return nil, cacheerrors.Unavailable("L3", err)
	}

	values := make(map[string][]byte, len(keys))
	for i, item := range raw {
		if item == nil {
			continue
		}
		if s, ok := item.(string); ok {
			values[keys[i]] = []byte(s)
		}
	}
	return values, nil
}

// MSet stores several pairs, applying ttl in a non-atomic second pass. A
// crash mid-batch can leave some values without expiry; callers accepting
// batched writes accept that window.
func (t *Tier) MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := t.client.MSet(ctx, pairs, ttl); err != nil {
		return cacheerrors.Unavailable("L3", err)
	}
	return nil
}

// Keys enumerates keys matching pattern. This tier is the enumeration
// source of truth for the hierarchy since L1/L2 keep no pattern index.
func (t *Tier) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := t.client.Keys(ctx, pattern)
	if err != nil {
		return nil, cacheerrors.Unavailable("L3", err)
	}
	return keys, nil
}

// DeletePattern removes every key matching pattern and returns the count.
func (t *Tier) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	count, err := t.client.DeletePattern(ctx, pattern)
	if err != nil {
		return 0, cacheerrors.Unavailable("L3", err)
	}
	return count, nil
}
