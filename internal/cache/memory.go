package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a concurrency-safe in-memory key/value store with a
// default TTL applied on write. Keys are scoped by namespace. Expired
// entries read as misses and are swept by a background janitor.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]map[string]entry

	ttl  time.Duration
	done chan struct{}
	once sync.Once
}

// NewMemoryCache creates a store with the given default TTL. If ttl is
// <= 0, entries never expire. sweep controls how often the janitor runs;
// <= 0 disables it (expiry is still enforced on read).
func NewMemoryCache(ttl, sweep time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]map[string]entry),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	if sweep > 0 && ttl > 0 {
		go c.janitor(sweep)
	}
	return c
}

// Get returns the value for a key, or a miss if absent or expired.
func (c *MemoryCache) Get(namespace, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ns, ok := c.data[namespace]
	if !ok {
		return nil, false
	}
	e, ok := ns[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set upserts a value under the store's default TTL.
func (c *MemoryCache) Set(namespace, key string, value any) {
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ns, ok := c.data[namespace]
	if !ok {
		ns = make(map[string]entry)
		c.data[namespace] = ns
	}
	ns[key] = entry{value: value, expiresAt: expiresAt}
}

// Len returns the number of live entries in a namespace.
func (c *MemoryCache) Len(namespace string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := time.Now()
	for _, e := range c.data[namespace] {
		if e.expiresAt.IsZero() || e.expiresAt.After(now) {
			n++
		}
	}
	return n
}

// Close stops the janitor.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ns := range c.data {
		for key, e := range ns {
			if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
				delete(ns, key)
			}
		}
	}
}
