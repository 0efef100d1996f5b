package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Expiring is a goroutine-safe map-backed cache with one TTL for every entry.
// Expired entries are dropped on Get, by PurgeExpired, and by a sweep that Set runs at most
// once per TTL. A non-positive TTL disables the cache: Set is a no-op and every Get misses.
type Expiring[K comparable, V any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	items     map[K]entry[V]
	nextSweep time.Time
}

// NewExpiring constructs an Expiring cache whose entries live for ttl.
func NewExpiring[K comparable, V any](ttl time.Duration) *Expiring[K, V] {
	return &Expiring[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
	}
}

// now is a small indirection to allow test stubbing.
var now = time.Now

func (c *Expiring[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !now().Before(e.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

func (c *Expiring[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := now()
	if !ts.Before(c.nextSweep) {
		c.purgeLocked(ts)
		c.nextSweep = ts.Add(c.ttl)
	}
	c.items[key] = entry[V]{value: value, expiresAt: ts.Add(c.ttl)}
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (c *Expiring[K, V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(now())
}

func (c *Expiring[K, V]) purgeLocked(ts time.Time) int {
	removed := 0
	for k, e := range c.items {
		if !ts.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *Expiring[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Expiring[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := now()
	count := 0
	for _, e := range c.items {
		if ts.Before(e.expiresAt) {
			count++
		}
	}
	return count
}

var _ Cache[any, any] = (*Expiring[any, any])(nil)
