// Package disk implements the persistent L2 cache tier: one data file per
// key plus a serialized index, with optional compression and TTL/size
// bounded cleanup that runs opportunistically on Set.
package disk

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hotly-cache/internal/common/errors"
	"hotly-cache/internal/common/logging"
)

const indexFileName = "index.json"

// Config holds the L2 tier construction parameters
type Config struct {
	Directory    string
	MaxSizeBytes int64
	DefaultTTL   time.Duration
	Compression  bool
}

// indexEntry is the per-key bookkeeping persisted in the index file.
type indexEntry struct {
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Size       int64      `json:"size"`
	Compressed bool       `json:"compressed"`
}

// Tier is a disk-backed cache. The in-memory index and its on-disk mirror
// are the one shared resource requiring exclusive-writer discipline, so all
// operations serialize on a single mutex.
type Tier struct {
	mu          sync.Mutex
	directory   string
	maxSize     int64
	defaultTTL  time.Duration
	compression bool
	index       map[string]*indexEntry
	totalBytes  int64
	logger      logging.Logger
}

// New creates an L2 tier rooted at config.Directory, loading any index left
// by a previous process. Index entries whose data file is missing are
// dropped on load, and orphan data files not referenced by the index are
// removed.
func New(config Config, logger logging.Logger) (*Tier, error) {
	if config.Directory == "" {
		return nil, errors.ConfigError("disk tier directory is required")
	}
	if config.MaxSizeBytes <= 0 {
		config.MaxSizeBytes = 500 * 1024 * 1024
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	if err := os.MkdirAll(config.Directory, 0750); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to create cache directory: %v", err))
	}

	t := &Tier{
		directory:   config.Directory,
		maxSize:     config.MaxSizeBytes,
		defaultTTL:  config.DefaultTTL,
		compression: config.Compression,
		index:       make(map[string]*indexEntry),
		logger:      logger.WithFields(logging.String("component", "disk_tier")),
	}

	if err := t.loadIndex(); err != nil {
		return nil, err
	}
	t.removeOrphans()

	return t, nil
}

// Get returns the value for key or a miss error. Expired entries are
// deleted on read. A data file that is missing, unreadable, or fails to
// decode is deleted along with its index entry and reported as a miss, so
// corruption self-heals instead of wedging the key.
func (t *Tier) Get(key string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.index[key]
	if !ok {
		return nil, errors.Miss(key)
	}

	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		t.removeLocked(key)
		t.persistIndexLocked()
		return nil, errors.Miss(key)
	}

	raw, err := os.ReadFile(t.dataPath(key))
	if err != nil {
		t.logger.Warn("unreadable cache file, self-healing",
			logging.String("key", key), logging.Err(err))
		t.removeLocked(key)
		t.persistIndexLocked()
		return nil, errors.Miss(key)
	}

	value, err := decode(raw, entry.Compressed)
	if err != nil {
		t.logger.Warn("corrupt cache entry, self-healing",
			logging.String("key", key), logging.Err(err))
		t.removeLocked(key)
		t.persistIndexLocked()
		return nil, errors.Miss(key)
	}

	return value, nil
}

// Set stores value under key. Expired-entry cleanup runs first, the data
// file is written before the index is persisted (a crash in between leaves
// at worst an orphan data file), and the size-bounded sweep runs last.
// ttl <= 0 applies the tier's default TTL.
func (t *Tier) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	encoded, err := encode(value, t.compression)
	if err != nil {
		return errors.SerializationError("failed to encode value", err).WithContext("key", key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepExpiredLocked()

	if err := os.WriteFile(t.dataPath(key), encoded, 0640); err != nil {
		return errors.Unavailable("L2", err).WithContext("key", key)
	}

	now := time.Now()
	expires := now.Add(ttl)

	if old, ok := t.index[key]; ok {
		t.totalBytes -= old.Size
	}
	t.index[key] = &indexEntry{
		CreatedAt:  now,
		ExpiresAt:  &expires,
		Size:       int64(len(encoded)),
		Compressed: t.compression,
	}
	t.totalBytes += int64(len(encoded))

	t.sweepSizeLocked()

	if err := t.persistIndexLocked(); err != nil {
		return errors.Unavailable("L2", err).WithContext("key", key)
	}
	return nil
}

// Delete removes key and reports whether it existed.
func (t *Tier) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.index[key]; !ok {
		return false
	}
	t.removeLocked(key)
	t.persistIndexLocked()
	return true
}

// Len returns the number of indexed entries.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index)
}

// SizeBytes returns the total indexed size on disk.
func (t *Tier) SizeBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalBytes
}

// dataPath names the data file for a key by hash, avoiding filesystem
// escaping and length issues.
func (t *Tier) dataPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(t.directory, hex.EncodeToString(sum[:])+".cache")
}

func (t *Tier) indexPath() string {
	return filepath.Join(t.directory, indexFileName)
}

// removeLocked drops a key's index entry and data file. Caller must hold
// t.mu and persist the index afterwards.
func (t *Tier) removeLocked(key string) {
	if entry, ok := t.index[key]; ok {
		t.totalBytes -= entry.Size
		delete(t.index, key)
	}
	if err := os.Remove(t.dataPath(key)); err != nil && !os.IsNotExist(err) {
		t.logger.Warn("failed to remove cache file", logging.String("key", key), logging.Err(err))
	}
}

// sweepExpiredLocked removes every entry whose expiry has passed. Caller
// must hold t.mu.
func (t *Tier) sweepExpiredLocked() {
	now := time.Now()
	for key, entry := range t.index {
		if entry.ExpiresAt != nil && now.After(*entry.ExpiresAt) {
			t.removeLocked(key)
		}
	}
}

// sweepSizeLocked deletes oldest-created entries until the total indexed
// size is under the configured cap. Caller must hold t.mu.
func (t *Tier) sweepSizeLocked() {
	if t.totalBytes <= t.maxSize {
		return
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	entries := make([]aged, 0, len(t.index))
	for key, entry := range t.index {
		entries = append(entries, aged{key: key, createdAt: entry.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	for _, candidate := range entries {
		if t.totalBytes <= t.maxSize {
			return
		}
		t.removeLocked(candidate.key)
	}
}

// persistIndexLocked writes the index to a temp file and renames it over
// the live index so readers never observe a partial write. Caller must
// hold t.mu.
func (t *Tier) persistIndexLocked() error {
	data, err := json.MarshalIndent(t.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp := t.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, t.indexPath()); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}
	return nil
}

// loadIndex reads the persisted index, dropping entries whose data file no
// longer exists so a dangling entry is never treated as present.
func (t *Tier) loadIndex() error {
	data, err := os.ReadFile(t.indexPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read cache index: %v", err))
	}

	index := make(map[string]*indexEntry)
	if err := json.Unmarshal(data, &index); err != nil {
		t.logger.Warn("corrupt cache index, starting empty", logging.Err(err))
		return nil
	}

	for key, entry := range index {
		if _, err := os.Stat(t.dataPath(key)); err != nil {
			continue
		}
		t.index[key] = entry
		t.totalBytes += entry.Size
	}
	return nil
}

// removeOrphans scans the directory for data files the index does not
// reference, as left by a crash between "write data file" and "persist
// index", and deletes them.
func (t *Tier) removeOrphans() {
	referenced := make(map[string]bool, len(t.index))
	for key := range t.index {
		referenced[filepath.Base(t.dataPath(key))] = true
	}

	files, err := os.ReadDir(t.directory)
	if err != nil {
		return
	}
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".cache") || referenced[name] {
			continue
		}
		if err := os.Remove(filepath.Join(t.directory, name)); err == nil {
			t.logger.Debug("removed orphan cache file", logging.String("file", name))
		}
	}
}

// encode gzips and base64-encodes value when compression is on; otherwise
// the value is stored as-is.
func encode(value []byte, compress bool) ([]byte, error) {
	if !compress {
		return value, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(value); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(encoded, buf.Bytes())
	return encoded, nil
}

func decode(raw []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return raw, nil
	}

	packed := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(packed, raw)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(packed[:n]))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
