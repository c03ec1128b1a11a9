// Package locks provides a Redis-backed mutual-exclusion primitive used for
// cache stampede protection: at most one holder per resource key, automatic
// expiry, and ownership-checked release.
//
// Acquire is fail-fast. It never waits for a held lock to free; callers
// that want blocking semantics retry with their own backoff, or fall back
// to recomputing without the lock. Mutual exclusion here is a best-effort
// optimization, not a correctness requirement of the cached data.
package locks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hotly-cache/internal/common/errors"
	"hotly-cache/internal/common/logging"
	"hotly-cache/internal/redis"
)

const lockKeyPrefix = "lock:"

// Locker hands out expiring, token-owned locks over a Redis client.
type Locker struct {
	client         *redis.Client
	defaultTimeout time.Duration
	logger         logging.Logger
}

// New creates a Locker. defaultTimeout bounds how long a lock outlives a
// holder that never releases it.
func New(client *redis.Client, defaultTimeout time.Duration, logger logging.Logger) (*Locker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Locker{
		client:         client,
		defaultTimeout: defaultTimeout,
		logger:         logger.WithFields(logging.String("component", "locks")),
	}, nil
}

// Acquire attempts to take the lock for resourceKey, returning a token that
// identifies this holder. A lock already held by anyone (including a
// previous call from this process) fails immediately with a lock-timeout
// error. timeout <= 0 applies the default.
func (l *Locker) Acquire(ctx context.Context, resourceKey string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = l.defaultTimeout
	}

	token := uuid.NewString()
	acquired, err := l.client.AcquireLock(ctx, lockKeyPrefix+resourceKey, token, timeout)
	if err != nil {
		return "", errors.Unavailable("lock", err).WithContext("resource", resourceKey)
	}
	if !acquired {
		return "", errors.LockTimeout(resourceKey)
	}

	return token, nil
}

// Release frees the lock for resourceKey if token still owns it. The
// compare-and-delete runs atomically in Redis, so a holder whose lock
// already expired cannot delete a successor's lock. Failures are logged,
// never returned; the lock's own expiry is the safety net.
func (l *Locker) Release(ctx context.Context, resourceKey, token string) {
	released, err := l.client.ReleaseLock(ctx, lockKeyPrefix+resourceKey, token)
	if err != nil {
		l.logger.Warn("lock release failed, relying on expiry",
			logging.String("resource", resourceKey), logging.Err(err))
		return
	}
	if !released {
		l.logger.Debug("lock no longer owned at release",
			logging.String("resource", resourceKey))
	}
}
