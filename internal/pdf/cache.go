package pdf

import "sync"

// DefaultCacheSize is the default LRU capacity.
const DefaultCacheSize = 30

// Cache is an in-memory LRU keyed by CacheKey, storing shared references to
// PageData. It promotes entries on Get and evicts least-recently-used on
// overflow. Never a source of truth about what is on screen — only about
// what has been rendered.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[CacheKey]*PageData
	order    []CacheKey // least-recently-used first
}

// NewCache creates a Cache with the given capacity, defaulting to
// DefaultCacheSize when capacity <= 0.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[CacheKey]*PageData),
	}
}

// Contains reports whether key is cached, without promoting it.
func (c *Cache) Contains(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Get returns the cached data for key, promoting it to most-recently-used.
func (c *Cache) Get(key CacheKey) (*PageData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(key)
	return data, true
}

// Insert adds data under key, evicting least-recently-used entries if the
// capacity is exceeded.
func (c *Cache) Insert(key CacheKey, data *PageData) *PageData {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = data
		c.touch(key)
		return data
	}

	c.entries[key] = data
	c.order = append(c.order, key)

	for len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	return data
}

// InvalidateAll clears every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*PageData)
	c.order = nil
}

// InvalidatePage removes every entry whose key addresses page p.
func (c *Cache) InvalidatePage(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newOrder := c.order[:0:0]
	for _, key := range c.order {
		if key.Page == p {
			delete(c.entries, key)
			continue
		}
		newOrder = append(newOrder, key)
	}
	c.order = newOrder
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// touch moves key to the most-recently-used end of the order slice. Callers
// must hold c.mu.
func (c *Cache) touch(key CacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}
