package projection

import "sync"

// Cache memoizes the latest projection per aggregate, keyed by
// (AID, version). A new event replaces the lower-version entry. Projections
// are shared by reference and never mutated in place, so readers holding an
// entry keep a consistent snapshot after replacement. Single writer, many
// readers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Projection
}

// NewCache creates an empty projection cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Projection)}
}

// Get returns the cached projection for an aggregate, or nil.
func (c *Cache) Get(aggregateID string) *Projection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[aggregateID]
}

// GetVersion returns the cached projection only if it is at exactly the
// requested version.
func (c *Cache) GetVersion(aggregateID string, version uint64) *Projection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.entries[aggregateID]
	if p == nil || p.Version() != version {
		return nil
	}
	return p
}

// Put stores a projection, replacing any lower-version entry. A stale put
// (older than the cached version) is ignored.
func (c *Cache) Put(p *Projection) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing := c.entries[p.AggregateID()]; existing != nil && existing.Version() >= p.Version() {
		return
	}
	c.entries[p.AggregateID()] = p
}

// Invalidate drops the entry for an aggregate. The cache is a pure function
// of events and may be discarded at any time.
func (c *Cache) Invalidate(aggregateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, aggregateID)
}

// Len returns the number of cached aggregates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
