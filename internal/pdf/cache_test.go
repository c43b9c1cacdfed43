package pdf

import "testing"

func TestCacheInsertAndGet(t *testing.T) {
	c := NewCache(2)
	k := CacheKey{Page: 0}
	c.Insert(k, &PageData{Page: 0})

	got, ok := c.Get(k)
	if !ok || got.Page != 0 {
		t.Fatalf("expected cache hit for page 0")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	k0 := CacheKey{Page: 0}
	k1 := CacheKey{Page: 1}
	k2 := CacheKey{Page: 2}

	c.Insert(k0, &PageData{Page: 0})
	c.Insert(k1, &PageData{Page: 1})
	c.Get(k0) // promote k0, making k1 the LRU victim
	c.Insert(k2, &PageData{Page: 2})

	if c.Contains(k1) {
		t.Fatalf("expected k1 to be evicted")
	}
	if !c.Contains(k0) || !c.Contains(k2) {
		t.Fatalf("expected k0 and k2 to remain")
	}
}

func TestCacheInvalidatePage(t *testing.T) {
	c := NewCache(10)
	c.Insert(CacheKey{Page: 1, AreaWidth: 10}, &PageData{Page: 1})
	c.Insert(CacheKey{Page: 1, AreaWidth: 20}, &PageData{Page: 1})
	c.Insert(CacheKey{Page: 2}, &PageData{Page: 2})

	c.InvalidatePage(1)

	if c.Len() != 1 {
		t.Fatalf("expected only page 2 to remain, got %d entries", c.Len())
	}
	if !c.Contains(CacheKey{Page: 2}) {
		t.Fatalf("expected page 2 still cached")
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	c := NewCache(10)
	c.Insert(CacheKey{Page: 1}, &PageData{Page: 1})
	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after invalidate all")
	}
}

func TestCacheContainsDoesNotPromote(t *testing.T) {
	c := NewCache(2)
	k0 := CacheKey{Page: 0}
	k1 := CacheKey{Page: 1}
	k2 := CacheKey{Page: 2}

	c.Insert(k0, &PageData{Page: 0})
	c.Insert(k1, &PageData{Page: 1})
	c.Contains(k0) // must not promote
	c.Insert(k2, &PageData{Page: 2})

	if c.Contains(k0) {
		t.Fatalf("expected k0 evicted since Contains does not promote")
	}
}
