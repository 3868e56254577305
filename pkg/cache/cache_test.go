package cache

import (
	"testing"
	"time"
)

func key(b byte) [32]byte {
	var k [32]byte
	k[31] = b
	return k
}

func TestBoundedHashCacheInsertAndContains(t *testing.T) {
	c := NewBoundedHashCache(10, time.Hour)
	c.Insert(key(1))
	if !c.Contains(key(1)) {
		t.Fatalf("expected key(1) to be present")
	}
	if c.Contains(key(2)) {
		t.Fatalf("expected key(2) to be absent")
	}
}

func TestBoundedHashCacheEvictsOldestWhenFull(t *testing.T) {
	base := time.Now()
	tick := base
	c := NewBoundedHashCache(3, time.Hour)
	c.now = func() time.Time { return tick }

	c.Insert(key(1))
	tick = tick.Add(time.Second)
	c.Insert(key(2))
	tick = tick.Add(time.Second)
	c.Insert(key(3))
	tick = tick.Add(time.Second)
	c.Insert(key(4)) // evicts key(1), the oldest

	if c.Contains(key(1)) {
		t.Fatalf("expected key(1) to have been evicted")
	}
	for _, k := range []byte{2, 3, 4} {
		if !c.Contains(key(k)) {
			t.Fatalf("expected key(%d) to still be present", k)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("expected len 3, got %d", c.Len())
	}
}

func TestBoundedHashCacheTTLEviction(t *testing.T) {
	base := time.Now()
	tick := base
	c := NewBoundedHashCache(10, time.Second)
	c.now = func() time.Time { return tick }

	c.Insert(key(1))
	tick = tick.Add(2 * time.Second)
	if c.Contains(key(1)) {
		t.Fatalf("expected key(1) to have expired")
	}
	// Insert is the only place eviction actually runs (lazy, not background).
	c.Insert(key(2))
	if len(c.entries) != 1 {
		t.Fatalf("expected expired entry to be dropped on next insert, got %d entries", len(c.entries))
	}
}

func TestBoundedHashCacheClear(t *testing.T) {
	c := NewBoundedHashCache(10, time.Hour)
	c.Insert(key(1))
	c.Insert(key(2))
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestBoundedMapCacheInsertGetRemove(t *testing.T) {
	c := NewBoundedMapCache[string](10, time.Hour)
	c.Insert(key(1), "alpha")
	v, ok := c.Get(key(1))
	if !ok || v != "alpha" {
		t.Fatalf("expected alpha, got %q ok=%v", v, ok)
	}
	c.Remove(key(1))
	if _, ok := c.Get(key(1)); ok {
		t.Fatalf("expected key(1) removed")
	}
}

func TestBoundedMapCacheUpdateDoesNotGrow(t *testing.T) {
	c := NewBoundedMapCache[int](10, time.Hour)
	c.Insert(key(1), 1)
	c.Insert(key(1), 2)
	if c.Len() != 1 {
		t.Fatalf("expected len 1 after updating existing key, got %d", c.Len())
	}
	v, _ := c.Get(key(1))
	if v != 2 {
		t.Fatalf("expected updated value 2, got %d", v)
	}
}

func TestBoundedMapCacheEvictsOldestWhenFull(t *testing.T) {
	base := time.Now()
	tick := base
	c := NewBoundedMapCache[int](3, time.Hour)
	c.now = func() time.Time { return tick }

	c.Insert(key(1), 1)
	tick = tick.Add(time.Second)
	c.Insert(key(2), 2)
	tick = tick.Add(time.Second)
	c.Insert(key(3), 3)
	tick = tick.Add(time.Second)
	c.Insert(key(4), 4)

	if _, ok := c.Get(key(1)); ok {
		t.Fatalf("expected key(1) to have been evicted")
	}
	if c.Len() != 3 {
		t.Fatalf("expected len 3, got %d", c.Len())
	}
}

func TestBoundedMapCacheTakeAllDrainsAndFiltersExpired(t *testing.T) {
	base := time.Now()
	tick := base
	c := NewBoundedMapCache[int](10, time.Second)
	c.now = func() time.Time { return tick }

	c.Insert(key(1), 1)
	tick = tick.Add(2 * time.Second)
	c.Insert(key(2), 2) // fresh, key(1) is now stale

	all := c.TakeAll()
	if len(all) != 1 || all[0] != 2 {
		t.Fatalf("expected only the fresh entry to survive TakeAll, got %v", all)
	}
	if c.Len() != 0 {
		t.Fatalf("expected cache empty after TakeAll, got %d", c.Len())
	}
}
