// Package cache provides small in-memory TTL caches.
package cache

import (
	"sync"
	"time"
)

// Cooldown remembers keys for a bounded time window. The provider layer uses
// it to back off from endpoints that just failed: a key set on failure stays
// active for the TTL and callers skip the fetch while it is.
type Cooldown struct {
	mu      sync.Mutex
	entries map[string]int64 // key -> unix millis of last Set
	ttl     time.Duration
	maxSize int
}

// CooldownOptions configures a Cooldown.
type CooldownOptions struct {
	TTL     time.Duration
	MaxSize int
}

// NewCooldown creates a Cooldown. A non-positive TTL means keys stay active
// until evicted; a non-positive MaxSize disables the size bound.
func NewCooldown(opts CooldownOptions) *Cooldown {
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	maxSize := opts.MaxSize
	if maxSize < 0 {
		maxSize = 0
	}
	return &Cooldown{
		entries: make(map[string]int64),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Set marks the key as recently failed.
func (c *Cooldown) Set(key string) {
	c.SetAt(key, time.Now())
}

// SetAt marks the key with an explicit timestamp (for testing).
func (c *Cooldown) SetAt(key string, now time.Time) {
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nowUnix := now.UnixMilli()

	// Delete and re-add so map insertion tracks recency.
	delete(c.entries, key)
	c.entries[key] = nowUnix
	c.prune(nowUnix)
}

// Active reports whether the key is inside its cooldown window.
func (c *Cooldown) Active(key string) bool {
	return c.ActiveAt(key, time.Now())
}

// ActiveAt checks the key against an explicit timestamp (for testing).
func (c *Cooldown) ActiveAt(key string, now time.Time) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.ttl <= 0 {
		return true
	}
	return now.UnixMilli()-existing < c.ttl.Milliseconds()
}

// prune removes expired and excess entries. Caller holds the lock.
func (c *Cooldown) prune(nowUnix int64) {
	if c.ttl > 0 {
		cutoff := nowUnix - c.ttl.Milliseconds()
		for key, ts := range c.entries {
			if ts < cutoff {
				delete(c.entries, key)
			}
		}
	}

	if c.maxSize <= 0 {
		return
	}

	for len(c.entries) > c.maxSize {
		// Maps aren't ordered, so find the oldest entry by timestamp.
		var oldestKey string
		oldestTs := int64(^uint64(0) >> 1)
		for k, ts := range c.entries {
			if ts < oldestTs {
				oldestTs = ts
				oldestKey = k
			}
		}
		if oldestKey == "" {
			break
		}
		delete(c.entries, oldestKey)
	}
}

// Clear removes all entries.
func (c *Cooldown) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]int64)
}

// Remove lifts the cooldown for a specific key.
func (c *Cooldown) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size returns the current number of tracked keys.
func (c *Cooldown) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
