// Package memory implements the in-process L1 cache tier: a bounded
// key/value store with LRU eviction and independent per-entry TTL.
package memory

import (
	"container/list"
	"sync"
	"time"

	"hotly-cache/internal/common/errors"
)

// defaultSizeEstimate is charged against the byte budget when a value's
// serialized size cannot be estimated, so eviction bookkeeping stays
// consistent.
const defaultSizeEstimate = 64

// Config holds the L1 tier bounds
type Config struct {
	MaxEntries int
	MaxBytes   int64
	DefaultTTL time.Duration
}

// Tier is a thread-safe LRU cache. Get mutates recency state, so all
// internal structures are guarded by a single mutex.
type Tier struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	defaultTTL time.Duration

	items      map[string]*entry
	evictList  *list.List // front = most recently used
	totalBytes int64
	evictions  uint64
}

type entry struct {
	key            string
	value          []byte
	sizeBytes      int64
	accessCount    int64
	createdAt      time.Time
	lastAccessedAt time.Time
	expiresAt      time.Time
	element        *list.Element
}

// New creates an L1 tier. Zero or negative bounds fall back to defaults.
func New(config Config) *Tier {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 100 * 1024 * 1024
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}

	return &Tier{
		maxEntries: config.MaxEntries,
		maxBytes:   config.MaxBytes,
		defaultTTL: config.DefaultTTL,
		items:      make(map[string]*entry),
		evictList:  list.New(),
	}
}

// Get returns the value for key or a miss error. An expired entry found on
// read is deleted before returning the miss (lazy expiry). A hit refreshes
// the entry's recency, protecting it from the next eviction.
func (t *Tier) Get(key string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[key]
	if !ok {
		return nil, errors.Miss(key)
	}

	if time.Now().After(item.expiresAt) {
		t.removeLocked(item)
		return nil, errors.Miss(key)
	}

	item.accessCount++
	item.lastAccessedAt = time.Now()
	t.evictList.MoveToFront(item.element)

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, nil
}

// Set stores value under key, fully replacing any existing entry, then
// evicts least-recently-used entries until both bounds are satisfied.
// ttl <= 0 applies the tier's default TTL.
func (t *Tier) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	size := int64(len(value))
	if size == 0 {
		size = defaultSizeEstimate
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	if existing, ok := t.items[key]; ok {
		t.totalBytes -= existing.sizeBytes
		existing.value = append([]byte(nil), value...)
		existing.sizeBytes = size
		existing.accessCount++
		existing.createdAt = now
		existing.lastAccessedAt = now
		existing.expiresAt = now.Add(ttl)
		t.totalBytes += size
		t.evictList.MoveToFront(existing.element)
		t.evictLocked()
		return nil
	}

	item := &entry{
		key:            key,
		value:          append([]byte(nil), value...),
		sizeBytes:      size,
		accessCount:    1,
		createdAt:      now,
		lastAccessedAt: now,
		expiresAt:      now.Add(ttl),
	}
	item.element = t.evictList.PushFront(item)
	t.items[key] = item
	t.totalBytes += size

	t.evictLocked()
	return nil
}

// Delete removes key and reports whether it existed.
func (t *Tier) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[key]
	if !ok {
		return false
	}
	t.removeLocked(item)
	return true
}

// Clear drops every entry.
func (t *Tier) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make(map[string]*entry)
	t.evictList.Init()
	t.totalBytes = 0
}

// Len returns the current entry count.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// SizeBytes returns the estimated total size of stored values.
func (t *Tier) SizeBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalBytes
}

// Evictions returns the number of entries evicted by the LRU policy.
func (t *Tier) Evictions() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictions
}

// evictLocked removes least-recently-used entries while either bound is
// exceeded. Caller must hold t.mu.
func (t *Tier) evictLocked() {
	for len(t.items) > t.maxEntries || t.totalBytes > t.maxBytes {
		back := t.evictList.Back()
		if back == nil {
			return
		}
		t.removeLocked(back.Value.(*entry))
		t.evictions++
	}
}

// removeLocked unlinks an entry from all internal structures. Caller must
// hold t.mu.
func (t *Tier) removeLocked(item *entry) {
	t.evictList.Remove(item.element)
	delete(t.items, item.key)
	t.totalBytes -= item.sizeBytes
}
