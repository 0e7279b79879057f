package fetcher

import "sync"

// Cache holds successful lookups for the lifetime of one command run.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]any
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
