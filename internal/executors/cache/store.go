package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

// MissKind classifies a cache miss
type MissKind string

const (
	// MissNone means the lookup was a hit
	MissNone MissKind = ""
	// MissCold is a key never seen, or forgotten long ago
	MissCold MissKind = "cold"
	// MissStale is a key whose entry outlived the TTL
	MissStale MissKind = "stale"
	// MissCapacity is a key recently evicted to make room
	MissCapacity MissKind = "capacity"
)

// ghostFactor sizes the list of recently evicted keys relative to the cache
const ghostFactor = 4

// minGhosts is the smallest eviction ghost list
const minGhosts = 16

type entry struct {
	value   any
	expires time.Time
}

// ttlCache is an LRU cache with per-entry expiry. It remembers keys evicted
// for capacity so misses can be attributed to the size limit.
type ttlCache struct {
	mu     sync.Mutex
	items  *lru.Cache
	ghosts *lru.Cache
	ttl    time.Duration
	now    func() time.Time

	flight singleflight.Group

	lookups   atomic.Uint64
	hits      atomic.Uint64
	evictions atomic.Uint64
}

func newTTLCache(maxSize int, ttl time.Duration, now func() time.Time) *ttlCache {
	c := &ttlCache{
		items:  lru.New(maxSize),
		ghosts: lru.New(max(maxSize*ghostFactor, minGhosts)),
		ttl:    ttl,
		now:    now,
	}
	// Only capacity evictions reach this hook: expired entries are
	// overwritten in place, never removed
	c.items.OnEvicted = func(key lru.Key, _ any) {
		c.ghosts.Add(key, struct{}{})
		c.evictions.Add(1)
	}
	return c
}

// get returns the live value of key, or why there is none
func (c *ttlCache) get(key string) (any, MissKind) {
	c.lookups.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items.Get(key); ok {
		e := v.(entry)
		if c.now().Before(e.expires) {
			c.hits.Add(1)
			return e.value, MissNone
		}
		return nil, MissStale
	}
	if _, ok := c.ghosts.Get(key); ok {
		return nil, MissCapacity
	}
	return nil, MissCold
}

// put stores value under key for one TTL
func (c *ttlCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ghosts.Remove(key)
	c.items.Add(key, entry{value: value, expires: c.now().Add(c.ttl)})
}

// len returns the number of entries, expired ones included
func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// hitRate is hits/lookups, 0 before the first lookup
func (c *ttlCache) hitRate() float64 {
	lookups := c.lookups.Load()
	if lookups == 0 {
		return 0
	}
	return float64(c.hits.Load()) / float64(lookups)
}
