package review

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Clock supplies the current time. Injected so tests control expiry.
type Clock func() time.Time

// ResultCache stores prior pipeline outputs keyed by content hash. Entries
// expire lazily on read; nothing is actively purged. Unbounded growth is an
// accepted tradeoff, bounded in practice by the rate of distinct content.
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[string]cacheEntry
}

type cacheEntry struct {
	state     PipelineState
	createdAt time.Time
}

// NewResultCache creates a cache with the given TTL. A nil clock uses
// time.Now.
func NewResultCache(ttl time.Duration, now Clock) *ResultCache {
	if now == nil {
		now = time.Now
	}
	return &ResultCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached state for hash if it exists and has not expired.
func (c *ResultCache) Get(hash string) (PipelineState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[hash]
	if !ok {
		return PipelineState{}, false
	}
	if c.now().Sub(entry.createdAt) >= c.ttl {
		delete(c.entries, hash)
		return PipelineState{}, false
	}
	return entry.state, true
}

// Put stores a state snapshot under hash, resetting its TTL.
func (c *ResultCache) Put(hash string, state PipelineState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = cacheEntry{state: state, createdAt: c.now()}
}

// ContentHash keys the cache on the full subject text and nothing else:
// identical text always maps to the same entry regardless of when or why it
// was resubmitted.
func ContentHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
