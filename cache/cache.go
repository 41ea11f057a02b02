// Package cache provides the bounded in-memory byte store consulted on
// the read path of a read-only crate, avoiding redundant re-reads of
// container members and backing files.
package cache

import (
	"bytes"
	"sync"
)

// DefaultCapacity bounds the total cached bytes unless configured.
const DefaultCapacity int64 = 64 << 20 // 64 MiB

// Cache is a size-bounded name-to-bytes store. It is not an LRU: when an
// insertion would exceed capacity, arbitrary existing entries (map
// iteration order) are evicted until the new entry fits. Reads that race
// with eviction simply miss and fall back to the underlying source.
//
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	active   bool
	entries  map[string][]byte
}

// New creates a cache with the given capacity in bytes. A zero or
// negative capacity falls back to DefaultCapacity. The cache starts
// inactive; it only accepts insertions once Activate is called, which the
// crate does when loaded read-only.
func New(capacity int64) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string][]byte),
	}
}

// Activate enables insertions. Mutable crates never activate their cache,
// so every Insert on them is a no-op.
func (c *Cache) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
}

// TryGet returns a copy of the cached bytes for a name, if present.
func (c *Cache) TryGet(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true
}

// Insert stores bytes under a name and reports whether the entry is now
// cached. Insertion is skipped when the cache is inactive or the single
// item exceeds the capacity outright. Re-inserting identical bytes under
// an existing key is a no-op that still reports true.
func (c *Cache) Insert(name string, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return false
	}
	incoming := int64(len(data))
	if incoming > c.capacity {
		return false
	}

	if existing, ok := c.entries[name]; ok {
		if bytes.Equal(existing, data) {
			return true
		}
		c.size -= int64(len(existing))
		delete(c.entries, name)
	}

	for c.size+incoming > c.capacity && len(c.entries) > 0 {
		for victim, victimData := range c.entries {
			c.size -= int64(len(victimData))
			delete(c.entries, victim)
			break
		}
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	c.entries[name] = cp
	c.size += incoming
	return true
}

// Size returns the current total of cached bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
