package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is an in-process map cache whose entries expire ttl after they were
// stored. Expired entries are removed when they are next read.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewTTL creates an empty cache.
func NewTTL[K comparable, V any](ttl time.Duration, opts ...Option) *TTL[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     o.now,
	}
}

// Get returns the value for key if it is still fresh.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) <= c.ttl {
		return e.value, true
	}

	c.mu.Lock()
	// A concurrent Put may have refreshed the entry since the read.
	if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return zero, false
}

// Put stores value under key, replacing any previous entry.
func (c *TTL[K, V]) Put(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Evict removes key.
func (c *TTL[K, V]) Evict(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// EvictAll removes every entry.
func (c *TTL[K, V]) EvictAll() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet read.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
