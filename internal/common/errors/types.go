package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of cache error
type ErrorType string

const (
	// ErrTypeMiss represents an absent or expired key - not a failure
	ErrTypeMiss ErrorType = "miss"
	// ErrTypeUnavailable represents a tier transport/connection failure
	ErrTypeUnavailable ErrorType = "tier_unavailable"
	// ErrTypeSerialization represents a value that could not be encoded or decoded
	ErrTypeSerialization ErrorType = "serialization"
	// ErrTypeLockTimeout represents a lock that is already held elsewhere
	ErrTypeLockTimeout ErrorType = "lock_timeout"
	// ErrTypeConfig represents invalid construction parameters
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents an unexpected invariant violation
	ErrTypeInternal ErrorType = "internal"
)

// CacheError is a structured error carrying the cache error taxonomy.
// Tier implementations downgrade transport and serialization failures into
// CacheError values so the orchestrator can distinguish "miss" from
// "tier down" from "corrupt data" without catching raw client errors.
type CacheError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *CacheError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Miss creates a miss error for an absent or expired key
func Miss(key string) *CacheError {
	return &CacheError{
		Type:    ErrTypeMiss,
		Message: fmt.Sprintf("key %q not found", key),
	}
}

// Unavailable creates a tier-unavailable error
func Unavailable(tier string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeUnavailable,
		Message: fmt.Sprintf("%s tier unavailable", tier),
		Cause:   cause,
	}
}

// SerializationError creates a serialization error
func SerializationError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeSerialization,
		Message: msg,
		Cause:   cause,
	}
}

// LockTimeout creates a lock-timeout error for an already-held lock
func LockTimeout(resource string) *CacheError {
	return &CacheError{
		Type:    ErrTypeLockTimeout,
		Message: fmt.Sprintf("lock for %q already held", resource),
	}
}

// ConfigError creates a configuration error
func ConfigError(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates an internal error
func InternalError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var cacheErr *CacheError
	if !errors.As(err, &cacheErr) {
		return false
	}

	return cacheErr.Type == errType
}

// IsMiss reports whether err represents an absent or expired key
func IsMiss(err error) bool {
	return IsType(err, ErrTypeMiss)
}

// IsUnavailable reports whether err represents a tier transport failure
func IsUnavailable(err error) bool {
	return IsType(err, ErrTypeUnavailable)
}

// GetType returns the error type if it's a CacheError, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var cacheErr *CacheError
	if !errors.As(err, &cacheErr) {
		return ErrTypeInternal
	}

	return cacheErr.Type
}
