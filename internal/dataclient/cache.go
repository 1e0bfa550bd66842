package dataclient

import (
	"sync"
	"time"
)

// responseCache is a bounded TTL cache grouped by endpoint family.
// It is an explicit object owned by one Client, never package state, so
// tests get isolation by constructing fresh clients.
//
// Eviction is deliberately relaxed: beyond the per-family bound the
// oldest-inserted entry goes, with no recency tracking.
type responseCache struct {
	mu           sync.Mutex
	families     map[string]*cacheFamily
	ttl          time.Duration
	maxPerFamily int
	now          func() time.Time
}

type cacheFamily struct {
	entries map[string]cacheEntry
	order   []string // insertion order for eviction
}

type cacheEntry struct {
	value   any
	expires time.Time
}

func newResponseCache(ttl time.Duration, maxPerFamily int) *responseCache {
	return &responseCache{
		families:     make(map[string]*cacheFamily),
		ttl:          ttl,
		maxPerFamily: maxPerFamily,
		now:          time.Now,
	}
}

func (c *responseCache) get(family, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.families[family]
	if !ok {
		return nil, false
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(f.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *responseCache) put(family, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.families[family]
	if !ok {
		f = &cacheFamily{entries: make(map[string]cacheEntry)}
		c.families[family] = f
	}

	if _, exists := f.entries[key]; !exists {
		f.order = append(f.order, key)
	}
	f.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}

	for len(f.entries) > c.maxPerFamily && len(f.order) > 0 {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.entries, oldest)
	}
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.families = make(map[string]*cacheFamily)
}

// size returns the entry count of one family, for tests and monitoring.
func (c *responseCache) size(family string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.families[family]; ok {
		return len(f.entries)
	}
	return 0
}
