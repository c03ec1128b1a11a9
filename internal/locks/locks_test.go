package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotly-cache/internal/common/errors"
	"hotly-cache/internal/redis"
)

func setupLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr(), OpTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	locker, err := New(client, 30*time.Second, nil)
	require.NoError(t, err)
	return locker, mr
}

func TestNew(t *testing.T) {
	_, err := New(nil, time.Second, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestLocker_MutualExclusion(t *testing.T) {
	locker, _ := setupLocker(t)
	ctx := context.Background()

	t.Run("second acquire fails fast", func(t *testing.T) {
		token, err := locker.Acquire(ctx, "place:42", time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		_, err = locker.Acquire(ctx, "place:42", time.Minute)
		assert.True(t, errors.IsType(err, errors.ErrTypeLockTimeout))

		locker.Release(ctx, "place:42", token)

		// Released lock is acquirable again
		_, err = locker.Acquire(ctx, "place:42", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("independent resources do not conflict", func(t *testing.T) {
		_, err := locker.Acquire(ctx, "place:1", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "place:2", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("exactly one concurrent winner", func(t *testing.T) {
		var wg sync.WaitGroup
		winners := make(chan string, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if token, err := locker.Acquire(ctx, "contested", time.Minute); err == nil {
					winners <- token
				}
			}()
		}
		wg.Wait()
		close(winners)

		count := 0
		for range winners {
			count++
		}
		assert.Equal(t, 1, count)
	})
}

func TestLocker_OwnershipSafety(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	staleToken, err := locker.Acquire(ctx, "place:7", time.Second)
	require.NoError(t, err)

	// Lock expires and a second holder takes over
	mr.FastForward(2 * time.Second)
	_, err = locker.Acquire(ctx, "place:7", time.Minute)
	require.NoError(t, err)

	// The first holder's stale release must not free the successor's lock
	locker.Release(ctx, "place:7", staleToken)

	_, err = locker.Acquire(ctx, "place:7", time.Minute)
	assert.True(t, errors.IsType(err, errors.ErrTypeLockTimeout))
}

func TestLocker_Expiry(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "place:9", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = locker.Acquire(ctx, "place:9", time.Minute)
	assert.NoError(t, err, "expired lock should be acquirable without release")
}

func TestLocker_ReleaseNeverFails(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "place:11", time.Minute)
	require.NoError(t, err)

	mr.Close()

	// Redis down: release logs and returns, no panic, no error surface
	locker.Release(ctx, "place:11", token)
}

func TestLocker_DefaultTimeout(t *testing.T) {
	locker, mr := setupLocker(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "place:13", 0)
	require.NoError(t, err)

	// Lock carries the default 30s expiry, not zero (which would never expire)
	ttl := mr.TTL("lock:place:13")
	assert.Greater(t, ttl, time.Duration(0))
}
