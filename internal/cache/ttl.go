// Package cache provides a small keyed store whose entries expire after a
// fixed lifetime. Expired entries are dropped lazily when they are read or
// when room is needed; nothing sweeps in the background.
package cache

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a mutex-guarded map with per-entry expiry and a size bound.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
	items   map[K]entry[V]
}

// New returns a cache holding at most maxSize entries for ttl each.
// A non-positive maxSize means unbounded.
func New[K comparable, V any](ttl time.Duration, maxSize int, clk clock.Clock) *TTL[K, V] {
	if clk == nil {
		clk = clock.WallClock
	}
	return &TTL[K, V]{
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clk,
		items:   make(map[K]entry[V]),
	}
}

// Get returns the live value stored under key.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry and restarting its lifetime.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// SetIfAbsent stores value only when key holds no live entry and reports
// whether it did.
func (c *TTL[K, V]) SetIfAbsent(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && c.clock.Now().Before(e.expires) {
		return false
	}
	c.set(key, value)
	return true
}

// Update replaces the value of a live entry without extending its lifetime.
// It reports false when key holds no live entry.
func (c *TTL[K, V]) Update(key K, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || !c.clock.Now().Before(e.expires) {
		return false
	}
	e.value = fn(e.value)
	c.items[key] = e
	return true
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of stored entries, expired ones included until they are noticed.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *TTL[K, V]) set(key K, value V) {
	now := c.clock.Now()
	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evict(now)
	}
	c.items[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

// evict drops every expired entry, or the one closest to expiry when all are live.
func (c *TTL[K, V]) evict(now time.Time) {
	var (
		oldest    K
		oldestExp time.Time
		found     bool
	)
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			continue
		}
		if !found || e.expires.Before(oldestExp) {
			oldest, oldestExp, found = k, e.expires, true
		}
	}
	if len(c.items) >= c.maxSize && found {
		delete(c.items, oldest)
	}
}
