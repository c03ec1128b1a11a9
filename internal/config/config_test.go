package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "hotly", cfg.KeyPrefix)
	assert.Equal(t, 1000, cfg.L1MaxEntries)
	assert.Equal(t, int64(100*1024*1024), cfg.L1MaxBytes)
	assert.Equal(t, 5*time.Minute, cfg.L1DefaultTTL)
	assert.Equal(t, "./cache", cfg.L2Directory)
	assert.True(t, cfg.L2Compression)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, 24*time.Hour, cfg.L3DefaultTTL)
	assert.Equal(t, 30*time.Second, cfg.LockDefaultTimeout)
	assert.Equal(t, 100, cfg.StatsFlushEvery)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_KEY_PREFIX", "testapp")
	t.Setenv("L1_MAX_ENTRIES", "50")
	t.Setenv("L1_DEFAULT_TTL", "30s")
	t.Setenv("L2_COMPRESSION", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("STATS_FLUSH_EVERY", "10")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "testapp", cfg.KeyPrefix)
	assert.Equal(t, 50, cfg.L1MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.L1DefaultTTL)
	assert.False(t, cfg.L2Compression)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 10, cfg.StatsFlushEvery)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("L1_MAX_ENTRIES", "not-a-number")
	t.Setenv("L1_DEFAULT_TTL", "eternity")
	t.Setenv("L2_COMPRESSION", "maybe")

	cfg := Load()

	assert.Equal(t, 1000, cfg.L1MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.L1DefaultTTL)
	assert.True(t, cfg.L2Compression)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return Load()
	}

	t.Run("defaults validate", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := valid()
		cfg.Port = "not-a-port"
		assert.ErrorContains(t, cfg.Validate(), "PORT")

		cfg.Port = "70000"
		assert.ErrorContains(t, cfg.Validate(), "PORT")
	})

	t.Run("empty key prefix", func(t *testing.T) {
		cfg := valid()
		cfg.KeyPrefix = ""
		assert.ErrorContains(t, cfg.Validate(), "CACHE_KEY_PREFIX")
	})

	t.Run("non-positive bounds", func(t *testing.T) {
		cfg := valid()
		cfg.L1MaxEntries = 0
		assert.ErrorContains(t, cfg.Validate(), "L1_MAX_ENTRIES")

		cfg = valid()
		cfg.L2MaxBytes = 0
		assert.ErrorContains(t, cfg.Validate(), "L2_MAX_SIZE_BYTES")
	})

	t.Run("missing disk directory", func(t *testing.T) {
		cfg := valid()
		cfg.L2Directory = ""
		assert.ErrorContains(t, cfg.Validate(), "L2_DIRECTORY")
	})

	t.Run("redis db out of range", func(t *testing.T) {
		cfg := valid()
		cfg.RedisDB = 16
		assert.ErrorContains(t, cfg.Validate(), "REDIS_DB")
	})

	t.Run("bad lock timeout", func(t *testing.T) {
		cfg := valid()
		cfg.LockDefaultTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "LOCK_DEFAULT_TIMEOUT")
	})
}
