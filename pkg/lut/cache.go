package lut

import (
	"runtime"
	"sync"
	"weak"
)

// DefaultStrongEntries is the size of the ring of recently stored tables
// kept strongly reachable
const DefaultStrongEntries = 32

// Cache maps Parameters to tables. Entries are weak: a table no caller or
// the strong ring references may be collected, after which its entry is
// removed. Nothing is evicted by count.
type Cache struct {
	mu      sync.Mutex
	entries map[Parameters]weak.Pointer[LookupTable]
	ring    []*LookupTable
	next    int
}

// NewCache returns a cache holding up to strong recent tables strongly
func NewCache(strong int) *Cache {
	return &Cache{
		entries: make(map[Parameters]weak.Pointer[LookupTable]),
		ring:    make([]*LookupTable, max(strong, 0)),
	}
}

var (
	defaultCache     *Cache
	defaultCacheOnce sync.Once
)

// Default returns the process wide cache
func Default() *Cache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewCache(DefaultStrongEntries)
	})
	return defaultCache
}

// Get returns the cached table for p or nil
func (c *Cache) Get(p Parameters) *LookupTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	wp, ok := c.entries[p]
	if !ok {
		return nil
	}
	t := wp.Value()
	if t != nil {
		c.hold(t)
	}
	return t
}

// Put stores t for p unless a live table is already cached, in which case
// the cached instance is returned instead of t
func (c *Cache) Put(p Parameters, t *LookupTable) *LookupTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.entries[p]; ok {
		if existing := wp.Value(); existing != nil {
			return existing
		}
	}
	wp := weak.Make(t)
	c.entries[p] = wp
	c.hold(t)
	runtime.AddCleanup(t, c.evict, cacheEntry{params: p, ptr: wp})
	return t
}

// Len returns the number of entries, including ones whose tables were
// collected but not yet evicted
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type cacheEntry struct {
	params Parameters
	ptr    weak.Pointer[LookupTable]
}

func (c *Cache) evict(e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[e.params] == e.ptr {
		delete(c.entries, e.params)
	}
}

// hold keeps t strongly reachable until the ring wraps; callers hold mu
func (c *Cache) hold(t *LookupTable) {
	if len(c.ring) == 0 {
		return
	}
	c.ring[c.next] = t
	c.next = (c.next + 1) % len(c.ring)
}
