package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestZapAdapter(t *testing.T) {
	t.Run("writes leveled output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
		require.NoError(t, err)

		logger.Info("cache ready", String("tier", "L1"), Int("entries", 0))
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "cache ready")
		assert.Contains(t, out, "L1")
	})

	t.Run("filters below configured level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
		require.NoError(t, err)

		logger.Debug("ignored")
		logger.Info("ignored too")
		logger.Warn("kept")
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.NotContains(t, out, "ignored")
		assert.Contains(t, out, "kept")
	})

	t.Run("error includes cause", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		logger.Error("flush failed", errors.New("redis down"))
		require.NoError(t, logger.Sync())

		assert.Contains(t, buf.String(), "redis down")
	})

	t.Run("with fields propagates", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		child := logger.WithFields(String("component", "disk_tier"))
		child.Info("sweep complete")
		require.NoError(t, logger.Sync())

		assert.Contains(t, buf.String(), "disk_tier")
	})
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
	require.NoError(t, err)

	SetGlobalLogger(logger)
	assert.Equal(t, Logger(logger), GetGlobalLogger())
}
