package kanjialive

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultCacheTTL bounds how long a successful upstream response is reused.
// Kanji data changes rarely, so a generous TTL mostly saves rate-limit
// budget on repeated lookups within one session.
const DefaultCacheTTL = 10 * time.Minute

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// Cache is an in-memory TTL cache for successful upstream response bodies,
// keyed by the xxhash of the request endpoint and encoded query.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[uint64]cacheEntry
	now     func() time.Time
}

// NewCache creates a cache with the given TTL. A non-positive TTL falls
// back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[uint64]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(endpoint, encodedQuery string) uint64 {
	d := xxhash.New()
	d.WriteString(endpoint)
	d.WriteString("?")
	d.WriteString(encodedQuery)
	return d.Sum64()
}

// Get returns the cached body for the request, or false when absent or
// expired. Expired entries are dropped on access.
func (c *Cache) Get(endpoint, encodedQuery string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(endpoint, encodedQuery)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.body, true
}

// Put stores a successful response body. The caller must not mutate body
// afterwards.
func (c *Cache) Put(endpoint, encodedQuery string, body []byte) {
	if c == nil {
		return
	}
	key := cacheKey(endpoint, encodedQuery)
	deadline := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistically drop whatever has expired so the map does not grow
	// without bound between lookups.
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = cacheEntry{body: body, expiresAt: deadline}
}

// Len reports the number of live entries, for tests and stats.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
