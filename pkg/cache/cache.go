// Copyright 2025 Certen Protocol
//
// Package cache implements the bounded, TTL-and-capacity-limited caches used
// by the verifier to avoid re-deciding approvals it has already resolved,
// and to hold approvals it could not yet verify. Neither structure is an
// LRU: eviction is TTL-first, then oldest-by-insertion-time — decided
// approvals age out on a fixed clock, they are not kept hot by re-reads.
package cache

import (
	"sync"
	"time"
)

// BoundedHashCache is a capacity- and TTL-bounded set of 32-byte keys.
type BoundedHashCache struct {
	mu      sync.Mutex
	entries map[[32]byte]time.Time
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewBoundedHashCache builds a cache holding at most maxSize live keys, each
// expiring ttl after insertion.
func NewBoundedHashCache(maxSize int, ttl time.Duration) *BoundedHashCache {
	return &BoundedHashCache{
		entries: make(map[[32]byte]time.Time),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Contains reports whether key is present and not yet expired.
func (c *BoundedHashCache) Contains(key [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.entries[key]
	if !ok {
		return false
	}
	return c.now().Sub(ts) < c.ttl
}

// Insert records key as decided at the current time. If the cache is at
// capacity, expired entries are dropped first; if it is still full, the
// single oldest-by-insertion-time entry is evicted to make room.
func (c *BoundedHashCache) Insert(key [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	for len(c.entries) >= c.maxSize {
		if !c.evictOldestLocked() {
			break
		}
	}
	c.entries[key] = c.now()
}

// Clear removes every entry.
func (c *BoundedHashCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[32]byte]time.Time)
}

// Len returns the number of entries currently stored, expired or not.
func (c *BoundedHashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *BoundedHashCache) evictExpiredLocked() {
	now := c.now()
	for k, ts := range c.entries {
		if now.Sub(ts) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *BoundedHashCache) evictOldestLocked() bool {
	var oldestKey [32]byte
	var oldestTS time.Time
	found := false
	for k, ts := range c.entries {
		if !found || ts.Before(oldestTS) {
			oldestKey, oldestTS, found = k, ts, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
	return found
}
