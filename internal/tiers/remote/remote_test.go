package remote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheerrors "hotly-cache/internal/common/errors"
	"hotly-cache/internal/redis"
)

func setupTestTier(t *testing.T) (*Tier, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr(), OpTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	tier, err := New(client)
	require.NoError(t, err)
	return tier, mr
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.True(t, cacheerrors.IsType(err, cacheerrors.ErrTypeConfig))
}

func TestTier_GetSet(t *testing.T) {
	tier, mr := setupTestTier(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "k", []byte(`{"name":"Cafe"}`), time.Hour))

		value, err := tier.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"name":"Cafe"}`), value)
	})

	t.Run("absent key is a miss", func(t *testing.T) {
		_, err := tier.Get(ctx, "absent")
		assert.True(t, cacheerrors.IsMiss(err))
	})

	t.Run("zero ttl does not expire", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "forever", []byte("v"), 0))

		mr.FastForward(48 * time.Hour)

		_, err := tier.Get(ctx, "forever")
		assert.NoError(t, err)
	})

	t.Run("ttl expiry is a miss", func(t *testing.T) {
		require.NoError(t, tier.Set(ctx, "brief", []byte("v"), time.Second))

		mr.FastForward(2 * time.Second)

		_, err := tier.Get(ctx, "brief")
		assert.True(t, cacheerrors.IsMiss(err))
	})
}

func TestTier_DeleteExists(t *testing.T) {
	tier, _ := setupTestTier(t)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k", []byte("v"), 0))

	exists, err := tier.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := tier.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = tier.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTier_Batch(t *testing.T) {
	tier, _ := setupTestTier(t)
	ctx := context.Background()

	pairs := map[string][]byte{
		"m1": []byte("v1"),
		"m2": []byte("v2"),
	}
	require.NoError(t, tier.MSet(ctx, pairs, time.Hour))

	values, err := tier.MGet(ctx, []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"m1": []byte("v1"),
		"m2": []byte("v2"),
	}, values)
}

func TestTier_Patterns(t *testing.T) {
	tier, _ := setupTestTier(t)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "hotly:v1:place:1", []byte("a"), 0))
	require.NoError(t, tier.Set(ctx, "hotly:v1:place:2", []byte("b"), 0))
	require.NoError(t, tier.Set(ctx, "hotly:v1:search:1", []byte("c"), 0))

	keys, err := tier.Keys(ctx, "hotly:v1:place:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	count, err := tier.DeletePattern(ctx, "hotly:v1:place:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTier_Unavailable(t *testing.T) {
	tier, mr := setupTestTier(t)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k", []byte("v"), 0))
	mr.Close()

	t.Run("get", func(t *testing.T) {
		_, err := tier.Get(ctx, "k")
		assert.True(t, cacheerrors.IsUnavailable(err))
	})

	t.Run("set", func(t *testing.T) {
		err := tier.Set(ctx, "k", []byte("v"), 0)
		assert.True(t, cacheerrors.IsUnavailable(err))
	})

	t.Run("delete", func(t *testing.T) {
		_, err := tier.Delete(ctx, "k")
		assert.True(t, cacheerrors.IsUnavailable(err))
	})

	t.Run("keys", func(t *testing.T) {
		_, err := tier.Keys(ctx, "*")
		assert.True(t, cacheerrors.IsUnavailable(err))
	})
}
