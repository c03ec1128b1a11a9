package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheError_Error(t *testing.T) {
	t.Run("type and message", func(t *testing.T) {
		err := Miss("hotly:v1:place:42")
		assert.Contains(t, err.Error(), "miss")
		assert.Contains(t, err.Error(), "hotly:v1:place:42")
	})

	t.Run("includes cause", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := Unavailable("L3", cause)
		assert.Contains(t, err.Error(), "tier_unavailable")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("includes context", func(t *testing.T) {
		err := SerializationError("bad payload", nil).WithContext("key", "k1")
		assert.Contains(t, err.Error(), "key=k1")
	})
}

func TestCacheError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := InternalError("unexpected", cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestIsType(t *testing.T) {
	t.Run("matching type", func(t *testing.T) {
		assert.True(t, IsType(Miss("k"), ErrTypeMiss))
		assert.True(t, IsMiss(Miss("k")))
		assert.True(t, IsUnavailable(Unavailable("L3", nil)))
		assert.True(t, IsType(LockTimeout("place:42"), ErrTypeLockTimeout))
	})

	t.Run("wrapped cache error", func(t *testing.T) {
		wrapped := fmt.Errorf("while reading: %w", Miss("k"))
		assert.True(t, IsMiss(wrapped))
	})

	t.Run("non-matching type", func(t *testing.T) {
		assert.False(t, IsMiss(Unavailable("L3", nil)))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, IsMiss(stderrors.New("plain")))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.False(t, IsMiss(nil))
	})
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeConfig, GetType(ConfigError("bad")))
	assert.Equal(t, ErrTypeInternal, GetType(stderrors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
