// Package message holds inbound message plumbing shared by the webhook
// handler and the orchestrator.
package message

import (
	"sync"
	"time"
)

// Dedup prevents duplicate message processing using a TTL cache. Expired ids
// are dropped by Prune, which the housekeeping scheduler calls periodically.
type Dedup struct {
	mu    sync.Mutex
	cache map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		cache: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (d *Dedup) WithClock(now func() time.Time) *Dedup {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
	return d
}

// IsDuplicate returns true if this message ID was seen within the TTL.
// If not a duplicate, records it and returns false.
func (d *Dedup) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if seen, exists := d.cache[key]; exists && now.Sub(seen) <= d.ttl {
		return true
	}
	d.cache[key] = now
	return false
}

// Prune removes expired ids and returns how many were removed.
func (d *Dedup) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := d.now().Add(-d.ttl)
	n := 0
	for k, t := range d.cache {
		if t.Before(cutoff) {
			delete(d.cache, k)
			n++
		}
	}
	return n
}

// Len returns the number of remembered ids.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}
