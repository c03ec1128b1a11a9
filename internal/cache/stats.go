package cache

import (
	"context"
	"sync"
	"time"
)

// sampleWindow bounds the rolling response-time sample.
const sampleWindow = 256

// CounterStore is the shared store local counters are periodically merged
// into, so every process contributes to one aggregate view. Implemented by
// the Redis client via HINCRBY.
type CounterStore interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) error
}

// StatsSnapshot is a point-in-time copy of the orchestrator's counters.
// Stats are eventually consistent: counters reset after each successful
// merge into the shared store, so a snapshot reflects activity since the
// last flush.
type StatsSnapshot struct {
	Hits              uint64  `json:"hits"`
	Misses            uint64  `json:"misses"`
	Sets              uint64  `json:"sets"`
	Deletes           uint64  `json:"deletes"`
	Errors            uint64  `json:"errors"`
	L1Hits            uint64  `json:"l1_hits"`
	L2Hits            uint64  `json:"l2_hits"`
	L3Hits            uint64  `json:"l3_hits"`
	HitRate           float64 `json:"hit_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// stats tracks process-wide cache counters plus a rolling sample of
// operation latencies.
type stats struct {
	mu      sync.Mutex
	hits    uint64
	misses  uint64
	sets    uint64
	deletes uint64
	errors  uint64
	l1Hits  uint64
	l2Hits  uint64
	l3Hits  uint64

	samples     [sampleWindow]float64
	sampleCount int
	sampleNext  int

	opsSinceFlush int
}

func (s *stats) recordHit(tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits++
	switch tier {
	case TierL1:
		s.l1Hits++
	case TierL2:
		s.l2Hits++
	case TierL3:
		s.l3Hits++
	}
	s.opsSinceFlush++
}

func (s *stats) recordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses++
	s.opsSinceFlush++
}

func (s *stats) recordSet(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if !ok {
		s.errors++
	}
	s.opsSinceFlush++
}

func (s *stats) recordDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	s.opsSinceFlush++
}

func (s *stats) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	s.opsSinceFlush++
}

func (s *stats) observe(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.sampleNext] = float64(elapsed.Microseconds()) / 1000.0
	s.sampleNext = (s.sampleNext + 1) % sampleWindow
	if s.sampleCount < sampleWindow {
		s.sampleCount++
	}
}

func (s *stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Hits:    s.hits,
		Misses:  s.misses,
		Sets:    s.sets,
		Deletes: s.deletes,
		Errors:  s.errors,
		L1Hits:  s.l1Hits,
		L2Hits:  s.l2Hits,
		L3Hits:  s.l3Hits,
	}

	if total := s.hits + s.misses; total > 0 {
		snap.HitRate = float64(s.hits) / float64(total)
	}
	if s.sampleCount > 0 {
		var sum float64
		for i := 0; i < s.sampleCount; i++ {
			sum += s.samples[i]
		}
		snap.AvgResponseTimeMs = sum / float64(s.sampleCount)
	}
	return snap
}

// shouldFlush reports whether enough operations accumulated since the last
// merge into the shared store.
func (s *stats) shouldFlush(every int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return every > 0 && s.opsSinceFlush >= every
}

// flush merges local counters into the shared store and subtracts the
// merged amounts on success. On failure the counters stay put and a later
// flush retries; operations recorded during the merge are never lost
// because only the flushed portion is subtracted.
func (s *stats) flush(ctx context.Context, store CounterStore, key string) error {
	s.mu.Lock()
	pending := map[string]uint64{
		"hits":    s.hits,
		"misses":  s.misses,
		"sets":    s.sets,
		"deletes": s.deletes,
		"errors":  s.errors,
		"l1_hits": s.l1Hits,
		"l2_hits": s.l2Hits,
		"l3_hits": s.l3Hits,
	}
	s.opsSinceFlush = 0
	s.mu.Unlock()

	for field, count := range pending {
		if count == 0 {
			continue
		}
		if err := store.HIncrBy(ctx, key, field, int64(count)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.hits -= pending["hits"]
	s.misses -= pending["misses"]
	s.sets -= pending["sets"]
	s.deletes -= pending["deletes"]
	s.errors -= pending["errors"]
	s.l1Hits -= pending["l1_hits"]
	s.l2Hits -= pending["l2_hits"]
	s.l3Hits -= pending["l3_hits"]
	s.mu.Unlock()

	return nil
}
