// Package memory provides in-memory implementations for testing and for
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/schemagate/schemagate/domain/class"
	"github.com/schemagate/schemagate/ports"
)

// SchemaCache is an in-memory implementation of ports.SchemaCache with a
// fixed TTL. Entries past their lifetime read as misses.
type SchemaCache struct {
	mu     sync.RWMutex
	clock  ports.Clock
	ttl    time.Duration
	all    []class.Class
	allAt  time.Time
	hasAll bool
	one    map[string]cacheEntry
}

type cacheEntry struct {
	c  class.Class
	at time.Time
}

// NewSchemaCache creates a schema cache. A non-positive ttl means entries
// never expire.
func NewSchemaCache(clock ports.Clock, ttl time.Duration) *SchemaCache {
	return &SchemaCache{
		clock: clock,
		ttl:   ttl,
		one:   make(map[string]cacheEntry),
	}
}

// SetTTL replaces the entry lifetime. Existing entries are judged against
// the new value on their next read.
func (c *SchemaCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

func (c *SchemaCache) fresh(at time.Time) bool {
	return c.ttl <= 0 || c.clock.Now().Sub(at) < c.ttl
}

// GetAllClasses returns the cached full snapshot, if fresh.
func (c *SchemaCache) GetAllClasses(ctx context.Context) ([]class.Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasAll || !c.fresh(c.allAt) {
		return nil, false
	}
	out := make([]class.Class, len(c.all))
	for i, cls := range c.all {
		out[i] = cls.Clone()
	}
	return out, true
}

// GetOneSchema returns one cached class schema, if fresh.
func (c *SchemaCache) GetOneSchema(ctx context.Context, name string) (class.Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.one[name]
	if !ok || !c.fresh(e.at) {
		return class.Class{}, false
	}
	return e.c.Clone(), true
}

// SetAllClasses stores a full snapshot and refreshes the per-class entries.
func (c *SchemaCache) SetAllClasses(ctx context.Context, classes []class.Class) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.all = make([]class.Class, len(classes))
	for i, cls := range classes {
		c.all[i] = cls.Clone()
		c.one[cls.Name] = cacheEntry{c: cls.Clone(), at: now}
	}
	c.allAt = now
	c.hasAll = true
}

// SetOneSchema stores one class schema. The full snapshot is dropped; it no
// longer reflects the store.
func (c *SchemaCache) SetOneSchema(ctx context.Context, cls class.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.one[cls.Name] = cacheEntry{c: cls.Clone(), at: c.clock.Now()}
	c.hasAll = false
	c.all = nil
}

// Clear drops everything.
func (c *SchemaCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.all = nil
	c.hasAll = false
	c.one = make(map[string]cacheEntry)
}

// Ensure interface compliance.
var _ ports.SchemaCache = (*SchemaCache)(nil)

// DisabledCache is a SchemaCache that never holds anything. Every read is a
// miss, so all schema reads go straight to storage.
type DisabledCache struct{}

func (DisabledCache) GetAllClasses(ctx context.Context) ([]class.Class, bool) { return nil, false }
func (DisabledCache) GetOneSchema(ctx context.Context, name string) (class.Class, bool) {
	return class.Class{}, false
}
func (DisabledCache) SetAllClasses(ctx context.Context, classes []class.Class) {}
func (DisabledCache) SetOneSchema(ctx context.Context, c class.Class)          {}
func (DisabledCache) Clear(ctx context.Context)                                {}

// Ensure interface compliance.
var _ ports.SchemaCache = DisabledCache{}
