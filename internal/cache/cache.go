// Package cache holds the in-memory mirror of last-published operational
// state, one entry per entity, versioned monotonically. Entries are always
// replaced whole by a newer poll result, never partially merged.
package cache

import (
	"sync"
	"time"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Entry is the cached state of one entity.
type Entry struct {
	Snapshot  transponder.Snapshot
	Version   uint64
	UpdatedAt time.Time
}

// Cache is a concurrency-safe map of entity state entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[transponder.Ref]Entry
	now     func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[transponder.Ref]Entry),
		now:     time.Now,
	}
}

// Get returns the entry for ref, if present.
func (c *Cache) Get(ref transponder.Ref) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ref]
	return e, ok
}

// Update atomically replaces the entry for ref with the given snapshot,
// incrementing the version, and returns the new entry.
func (c *Cache) Update(ref transponder.Ref, snap transponder.Snapshot) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry{
		Snapshot:  snap.Clone(),
		Version:   c.entries[ref].Version + 1,
		UpdatedAt: c.now(),
	}
	c.entries[ref] = e
	return e
}

// Drop discards the entry for ref. Called on entity deletion.
func (c *Cache) Drop(ref transponder.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ref)
}

// Len returns the number of cached entities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
