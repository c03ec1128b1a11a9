// Package cache composes the three storage tiers into one read-through,
// write-through hierarchy: reads walk L1→L2→L3 promoting hits upward,
// writes fan out to every tier concurrently, and a single unreachable tier
// degrades hit rate instead of availability.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"hotly-cache/internal/common/errors"
	"hotly-cache/internal/common/logging"
	"hotly-cache/internal/locks"
)

// Tier identifies which level of the hierarchy served an operation.
type Tier string

const (
	// TierL1 is the in-process memory tier
	TierL1 Tier = "L1"
	// TierL2 is the local persistent-disk tier
	TierL2 Tier = "L2"
	// TierL3 is the shared distributed tier
	TierL3 Tier = "L3"
	// TierMiss means no tier held the key
	TierMiss Tier = "MISS"
	// TierError means an unexpected failure, distinct from a tier being
	// unavailable (which is a transparent pass-through, not an error)
	TierError Tier = "ERROR"
)

// MemoryTier is the L1 contract consumed by the orchestrator.
type MemoryTier interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) bool
	Clear()
}

// DiskTier is the L2 contract consumed by the orchestrator.
type DiskTier interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) bool
}

// RemoteTier is the L3 contract consumed by the orchestrator. L3 is the
// only tier with pattern enumeration, so it is the source of truth for
// InvalidatePattern.
type RemoteTier interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Config holds orchestrator tuning knobs.
type Config struct {
	DefaultL1TTL time.Duration
	DefaultL2TTL time.Duration
	DefaultL3TTL time.Duration

	// StatsFlushEvery merges local counters into the shared counter store
	// after this many operations. Zero disables flushing.
	StatsFlushEvery int
	// StatsKey is the shared counter hash the stats merge into.
	StatsKey string
}

// Orchestrator is the cache façade. It owns no entry data itself, only the
// statistics counters; each tier exclusively owns its storage. Safe for
// concurrent use; it holds no lock of its own around tier calls.
type Orchestrator struct {
	l1     MemoryTier
	l2     DiskTier
	l3     RemoteTier
	locker *locks.Locker

	config   Config
	stats    *stats
	counters CounterStore
	logger   logging.Logger
}

// New creates an orchestrator over already-constructed tiers. l1 and l2 are
// required; l3, locker and counters may be nil, in which case the hierarchy
// runs two-tiered without distributed features.
func New(l1 MemoryTier, l2 DiskTier, l3 RemoteTier, locker *locks.Locker, counters CounterStore, config Config, logger logging.Logger) (*Orchestrator, error) {
	if l1 == nil || l2 == nil {
		return nil, errors.ConfigError("memory and disk tiers are required")
	}
	if config.DefaultL1TTL <= 0 {
		config.DefaultL1TTL = 5 * time.Minute
	}
	if config.DefaultL2TTL <= 0 {
		config.DefaultL2TTL = time.Hour
	}
	if config.DefaultL3TTL <= 0 {
		config.DefaultL3TTL = 24 * time.Hour
	}
	if config.StatsKey == "" {
		config.StatsKey = "hotly:cache:stats"
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Orchestrator{
		l1:       l1,
		l2:       l2,
		l3:       l3,
		locker:   locker,
		config:   config,
		stats:    &stats{},
		counters: counters,
		logger:   logger.WithFields(logging.String("component", "cache")),
	}, nil
}

// Get returns the value for key and the tier that served it. Lower-tier
// hits are promoted upward; promotion failures only affect stats and logs,
// never the returned value. TierError is reserved for invariant violations,
// a tier being unreachable reads as a pass-through to the next one.
func (o *Orchestrator) Get(ctx context.Context, key string) (value []byte, tier Tier) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic during cache get", nil,
				logging.String("key", key), logging.Field{Key: "panic", Value: r})
			o.stats.recordError()
			value, tier = nil, TierError
		}
		o.stats.observe(time.Since(start))
		o.maybeFlush(ctx)
	}()

	if v, err := o.l1.Get(key); err == nil {
		o.stats.recordHit(TierL1)
		return v, TierL1
	}

	if v, err := o.l2.Get(key); err == nil {
		o.promote(key, v, TierL1)
		o.stats.recordHit(TierL2)
		return v, TierL2
	}

	if o.l3 != nil {
		v, err := o.l3.Get(ctx, key)
		if err == nil {
			o.promote(key, v, TierL2)
			o.promote(key, v, TierL1)
			o.stats.recordHit(TierL3)
			return v, TierL3
		}
		if errors.IsUnavailable(err) {
			o.logger.Debug("remote tier unavailable on get", logging.String("key", key))
		}
	}

	o.stats.recordMiss()
	return nil, TierMiss
}

// promote copies a value found in a lower tier into a higher one using the
// destination tier's default TTL. Best-effort.
func (o *Orchestrator) promote(key string, value []byte, into Tier) {
	var err error
	switch into {
	case TierL1:
		err = o.l1.Set(key, value, o.config.DefaultL1TTL)
	case TierL2:
		err = o.l2.Set(key, value, o.config.DefaultL2TTL)
	}
	if err != nil {
		o.logger.Warn("tier promotion failed",
			logging.String("key", key), logging.String("into", string(into)), logging.Err(err))
	}
}

// Set writes value through to all tiers concurrently and succeeds when at
// least one tier accepted the write, so a partial outage (commonly L3)
// never fails a Set that L1 can still serve. TTLs of zero apply each
// tier's default; a zero l3Ttl therefore does not mean "no expiry" here.
func (o *Orchestrator) Set(ctx context.Context, key string, value []byte, l1TTL, l2TTL, l3TTL time.Duration) bool {
	start := time.Now()
	if l1TTL <= 0 {
		l1TTL = o.config.DefaultL1TTL
	}
	if l2TTL <= 0 {
		l2TTL = o.config.DefaultL2TTL
	}
	if l3TTL <= 0 {
		l3TTL = o.config.DefaultL3TTL
	}

	var (
		mu     sync.Mutex
		merr   *multierror.Error
		anyOK  bool
		wg     sync.WaitGroup
		record = func(err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				merr = multierror.Append(merr, err)
			} else {
				anyOK = true
			}
		}
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		record(o.l1.Set(key, value, l1TTL))
	}()
	go func() {
		defer wg.Done()
		record(o.l2.Set(key, value, l2TTL))
	}()
	if o.l3 != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(o.l3.Set(ctx, key, value, l3TTL))
		}()
	}
	wg.Wait()

	if err := merr.ErrorOrNil(); err != nil {
		o.logger.Warn("partial cache write", logging.String("key", key), logging.Err(err))
	}

	o.stats.recordSet(anyOK)
	o.stats.observe(time.Since(start))
	o.maybeFlush(ctx)
	return anyOK
}

// Delete removes key from all tiers concurrently, reporting whether any
// tier actually held it.
func (o *Orchestrator) Delete(ctx context.Context, key string) bool {
	start := time.Now()
	deleted := o.deleteEverywhere(ctx, key)

	o.stats.recordDelete()
	o.stats.observe(time.Since(start))
	o.maybeFlush(ctx)
	return deleted
}

func (o *Orchestrator) deleteEverywhere(ctx context.Context, key string) bool {
	var (
		mu      sync.Mutex
		deleted bool
		wg      sync.WaitGroup
		record  = func(ok bool) {
			mu.Lock()
			defer mu.Unlock()
			deleted = deleted || ok
		}
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		record(o.l1.Delete(key))
	}()
	go func() {
		defer wg.Done()
		record(o.l2.Delete(key))
	}()
	if o.l3 != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := o.l3.Delete(ctx, key)
			if err != nil {
				o.logger.Debug("remote delete failed", logging.String("key", key), logging.Err(err))
				ok = false
			}
			record(ok)
		}()
	}
	wg.Wait()

	return deleted
}

// InvalidatePattern deletes every key matching pattern from all tiers and
// returns how many keys were invalidated. L3 is the enumeration source of
// truth since L1/L2 keep no pattern index; with L3 unavailable the result
// is zero.
func (o *Orchestrator) InvalidatePattern(ctx context.Context, pattern string) int {
	if o.l3 == nil {
		return 0
	}

	matched, err := o.l3.Keys(ctx, pattern)
	if err != nil {
		o.logger.Warn("pattern enumeration failed", logging.String("pattern", pattern), logging.Err(err))
		return 0
	}

	count := 0
	for _, key := range matched {
		if o.deleteEverywhere(ctx, key) {
			count++
		}
		o.stats.recordDelete()
	}
	o.maybeFlush(ctx)
	return count
}

// GetOrCompute returns the cached value for key or computes and stores it,
// serializing the recomputation through the distributed lock so concurrent
// callers do not redundantly recompute the same expensive value. Losing the
// lock race falls back to a re-read and then to computing without the lock;
// at-most-one recomputation is best-effort, not a correctness requirement.
func (o *Orchestrator) GetOrCompute(ctx context.Context, key string, compute func(context.Context) ([]byte, error), l1TTL, l2TTL, l3TTL time.Duration) ([]byte, Tier, error) {
	if value, tier := o.Get(ctx, key); tier != TierMiss && tier != TierError {
		return value, tier, nil
	}

	if o.locker != nil {
		token, err := o.locker.Acquire(ctx, key, 0)
		switch {
		case err == nil:
			defer o.locker.Release(ctx, key, token)
		case errors.IsType(err, errors.ErrTypeLockTimeout):
			// Another holder may have filled the cache meanwhile
			if value, tier := o.Get(ctx, key); tier != TierMiss && tier != TierError {
				return value, tier, nil
			}
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, TierMiss, err
	}

	o.Set(ctx, key, value, l1TTL, l2TTL, l3TTL)
	return value, TierMiss, nil
}

// ClearMemory drops every L1 entry, forcing subsequent reads down-tier.
func (o *Orchestrator) ClearMemory() {
	o.l1.Clear()
}

// Stats returns a snapshot of the orchestrator's counters.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.snapshot()
}

// maybeFlush merges local counters into the shared store once enough
// operations accumulated. Flush failures are logged and retried later; L3
// being down must not surface through stats bookkeeping.
func (o *Orchestrator) maybeFlush(ctx context.Context) {
	if o.counters == nil || !o.stats.shouldFlush(o.config.StatsFlushEvery) {
		return
	}
	if err := o.stats.flush(ctx, o.counters, o.config.StatsKey); err != nil {
		o.logger.Debug("stats flush failed", logging.Err(err))
	}
}

// Close flushes outstanding statistics. Tiers and clients are closed by
// whoever constructed them.
func (o *Orchestrator) Close(ctx context.Context) error {
	if o.counters == nil {
		return nil
	}
	return o.stats.flush(ctx, o.counters, o.config.StatsKey)
}
