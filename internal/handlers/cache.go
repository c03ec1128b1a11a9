// Package handlers exposes the cache façade over HTTP for operations and
// debugging. Values are treated as opaque bytes: request bodies are stored
// verbatim and hits are returned verbatim with the serving tier in the
// X-Cache-Tier header.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hotly-cache/internal/cache"
	"hotly-cache/internal/common/logging"
	"hotly-cache/internal/keys"
)

// maxValueBytes bounds PUT bodies so one oversized value cannot exhaust
// the tiers.
const maxValueBytes = 16 * 1024 * 1024

// CacheHandler serves the cache API
type CacheHandler struct {
	cache  *cache.Orchestrator
	codec  *keys.Codec
	logger logging.Logger
}

// NewCacheHandler creates the handler over a constructed orchestrator.
func NewCacheHandler(orch *cache.Orchestrator, codec *keys.Codec, logger logging.Logger) *CacheHandler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &CacheHandler{cache: orch, codec: codec, logger: logger}
}

// Routes registers the cache endpoints on the router.
func (h *CacheHandler) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/cache/{key}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/cache/{key}", h.Set).Methods(http.MethodPut)
	r.HandleFunc("/cache/{key}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/invalidate", h.InvalidatePattern).Methods(http.MethodPost)
	r.HandleFunc("/keys/derive", h.DeriveKey).Methods(http.MethodPost)
}

// Health reports liveness.
func (h *CacheHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns the orchestrator's counter snapshot.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// Get serves a cached value, or 404 on miss.
func (h *CacheHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, tier := h.cache.Get(r.Context(), key)
	w.Header().Set("X-Cache-Tier", string(tier))

	switch tier {
	case cache.TierMiss:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "key not found"})
	case cache.TierError:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache error"})
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(value)
	}
}

// Set stores the request body under the key. Per-tier TTLs come from the
// l1_ttl, l2_ttl, and l3_ttl query parameters as Go durations; missing
// parameters apply the configured defaults.
func (h *CacheHandler) Set(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read value"})
		return
	}
	if len(value) > maxValueBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "value too large"})
		return
	}

	l1TTL := parseTTL(r, "l1_ttl")
	l2TTL := parseTTL(r, "l2_ttl")
	l3TTL := parseTTL(r, "l3_ttl")

	if !h.cache.Set(r.Context(), key, value, l1TTL, l2TTL, l3TTL) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no tier accepted the write"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stored": true})
}

// Delete removes the key from every tier.
func (h *CacheHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	deleted := h.cache.Delete(r.Context(), key)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// InvalidatePattern deletes every key matching the pattern query parameter.
func (h *CacheHandler) InvalidatePattern(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pattern is required"})
		return
	}

	count := h.cache.InvalidatePattern(r.Context(), pattern)
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": count})
}

type deriveKeyRequest struct {
	Domain     string            `json:"domain"`
	ResourceID string            `json:"resource_id"`
	URL        string            `json:"url"`
	Params     map[string]string `json:"params"`
}

// DeriveKey derives a cache key from a domain plus either a resource id or
// a URL, so callers share the service's key derivation instead of
// reimplementing it.
func (h *CacheHandler) DeriveKey(w http.ResponseWriter, r *http.Request) {
	var req deriveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Domain == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "domain is required"})
		return
	}

	var key string
	switch {
	case req.URL != "":
		key = h.codec.DeriveURLKey(req.Domain, req.URL)
	case req.ResourceID != "":
		key = h.codec.DeriveKey(req.Domain, req.ResourceID, req.Params)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resource_id or url is required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func parseTTL(r *http.Request, param string) time.Duration {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return 0
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
