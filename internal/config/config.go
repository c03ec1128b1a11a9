// Package config loads cache service configuration from environment
// variables with sensible defaults and validates it so the process starts
// safely.
//
// Environment Variables:
//
// Application settings:
//   - PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Key derivation:
//   - CACHE_KEY_PREFIX: prefix embedded in every derived key (default: hotly)
//
// Memory tier (L1):
//   - L1_MAX_ENTRIES: entry-count bound (default: 1000)
//   - L1_MAX_MEMORY_BYTES: byte bound (default: 104857600)
//   - L1_DEFAULT_TTL: default entry TTL (default: 5m)
//
// Disk tier (L2):
//   - L2_DIRECTORY: cache directory (default: ./cache)
//   - L2_MAX_SIZE_BYTES: total size cap (default: 524288000)
//   - L2_DEFAULT_TTL: default entry TTL (default: 1h)
//   - L2_COMPRESSION: gzip values on disk (default: true)
//
// Remote tier (L3):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: connection pool size (default: 10)
//   - L3_DEFAULT_TTL: default entry TTL (default: 24h)
//
// Locking and statistics:
//   - LOCK_DEFAULT_TIMEOUT: lock expiry when callers pass none (default: 30s)
//   - STATS_FLUSH_EVERY: operations between shared-counter merges (default: 100)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the cache service.
type Config struct {
	Port     string
	LogLevel string

	KeyPrefix string

	L1MaxEntries int
	L1MaxBytes   int64
	L1DefaultTTL time.Duration

	L2Directory   string
	L2MaxBytes    int64
	L2DefaultTTL  time.Duration
	L2Compression bool

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	L3DefaultTTL  time.Duration

	LockDefaultTimeout time.Duration
	StatsFlushEvery    int
}

// Load creates a Config from environment variables, applying defaults for
// anything unset. Call Validate before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		KeyPrefix: getEnv("CACHE_KEY_PREFIX", "hotly"),

		L1MaxEntries: getIntEnv("L1_MAX_ENTRIES", 1000),
		L1MaxBytes:   getInt64Env("L1_MAX_MEMORY_BYTES", 100*1024*1024),
		L1DefaultTTL: getDurationEnv("L1_DEFAULT_TTL", 5*time.Minute),

		L2Directory:   getEnv("L2_DIRECTORY", "./cache"),
		L2MaxBytes:    getInt64Env("L2_MAX_SIZE_BYTES", 500*1024*1024),
		L2DefaultTTL:  getDurationEnv("L2_DEFAULT_TTL", time.Hour),
		L2Compression: getBoolEnv("L2_COMPRESSION", true),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
		L3DefaultTTL:  getDurationEnv("L3_DEFAULT_TTL", 24*time.Hour),

		LockDefaultTimeout: getDurationEnv("LOCK_DEFAULT_TIMEOUT", 30*time.Second),
		StatsFlushEvery:    getIntEnv("STATS_FLUSH_EVERY", 100),
	}
}

// Validate checks required fields, ranges, and cross-field constraints.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.KeyPrefix == "" {
		return fmt.Errorf("CACHE_KEY_PREFIX must not be empty")
	}

	if c.L1MaxEntries < 1 {
		return fmt.Errorf("L1_MAX_ENTRIES must be a positive number")
	}
	if c.L1MaxBytes < 1 {
		return fmt.Errorf("L1_MAX_MEMORY_BYTES must be a positive number")
	}

	if c.L2Directory == "" {
		return fmt.Errorf("L2_DIRECTORY is required")
	}
	if c.L2MaxBytes < 1 {
		return fmt.Errorf("L2_MAX_SIZE_BYTES must be a positive number")
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
	}
	if c.RedisPoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
	}

	if c.LockDefaultTimeout <= 0 {
		return fmt.Errorf("LOCK_DEFAULT_TIMEOUT must be a positive duration")
	}
	if c.StatsFlushEvery < 0 {
		return fmt.Errorf("STATS_FLUSH_EVERY must not be negative")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
