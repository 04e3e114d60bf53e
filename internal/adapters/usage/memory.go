// Package usage provides daily question counter adapters implementing
// ports.UsageCounter.
package usage

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count     int
	expiresAt time.Time
}

// MemoryCounter is a process-local counter. Counts are lost on restart and
// not shared between replicas; use Redis or SQLite for that.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the live count for key.
func (c *MemoryCounter) Get(ctx context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

// Increment adds one to key, restarting it if expired, and refreshes the ttl.
func (c *MemoryCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := c.entries[key]
	if !now.Before(e.expiresAt) {
		e.count = 0
	}
	e.count++
	e.expiresAt = now.Add(ttl)
	c.entries[key] = e

	c.sweep(now)
	return e.count, nil
}

// sweep drops expired keys; callers hold mu.
func (c *MemoryCounter) sweep(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of tracked keys, expired or not.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
