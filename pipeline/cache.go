package pipeline

import (
	"sync"
	"time"

	"zapihook/metrics"

	"github.com/jonboulle/clockwork"
)

const DEFAULT_CACHE_MAX_ENTRIES = 5000

type CacheEntry struct {
	Key        string
	InsertedAt time.Time
}

// TTLCache is a bounded set of recently seen keys.
// Expired entries are dropped lazily on read and swept when the cap is hit.
type TTLCache struct {
	name       string
	clock      clockwork.Clock
	maxEntries int

	mu      sync.Mutex
	entries map[string]CacheEntry
}

func NewTTLCache(name string, clock clockwork.Clock, maxEntries int) *TTLCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxEntries <= 0 {
		maxEntries = DEFAULT_CACHE_MAX_ENTRIES
	}
	return &TTLCache{
		name:       name,
		clock:      clock,
		maxEntries: maxEntries,
		entries:    make(map[string]CacheEntry),
	}
}

// ShouldSkip reports whether key was claimed less than ttl ago. When it was
// not, the key is claimed now. Check and claim happen under the same lock, so
// of two concurrent callers only one gets false.
func (c *TTLCache) ShouldSkip(key string, ttl time.Duration) bool {
	if key == "" || ttl <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if entry, ok := c.entries[key]; ok {
		if now.Sub(entry.InsertedAt) < ttl {
			metrics.CacheHits.WithLabelValues(c.name).Inc()
			return true
		}
		delete(c.entries, key)
	}

	if len(c.entries) >= c.maxEntries {
		c.evict(now, ttl)
	}
	c.entries[key] = CacheEntry{Key: key, InsertedAt: now}
	return false
}

// Forget libera a chave (ex.: a operação que ela protegia falhou).
func (c *TTLCache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict must be called with mu held.
func (c *TTLCache) evict(now time.Time, ttl time.Duration) {
	for k, e := range c.entries {
		if now.Sub(e.InsertedAt) >= ttl {
			delete(c.entries, k)
		}
	}
	for len(c.entries) >= c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.InsertedAt.Before(oldest) {
				oldestKey, oldest = k, e.InsertedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}
