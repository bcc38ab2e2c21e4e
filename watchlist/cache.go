package watchlist

import (
	"sync"
	"time"
)

// Cache holds the current member set for one watchlist resource. The set is
// replaced atomically as a whole on each successful fetch; a failed fetch
// leaves it untouched. One Cache is shared by every predicate referencing
// the same resource.
type Cache struct {
	resource string
	interval time.Duration

	mu          sync.RWMutex
	members     map[string]struct{}
	attempted   bool
	succeeded   bool
	lastAttempt time.Time
	lastSuccess time.Time
}

// NewCache creates an empty cache for a resource. Interval zero means fetch
// once, then never refresh.
func NewCache(resource string, interval time.Duration) *Cache {
	return &Cache{
		resource: resource,
		interval: interval,
		members:  make(map[string]struct{}),
	}
}

// Resource returns the opaque resource identifier this cache is bound to.
func (c *Cache) Resource() string { return c.resource }

// Interval returns the configured refresh interval.
func (c *Cache) Interval() time.Duration { return c.interval }

// Contains reports whether a callsign is in the current snapshot.
func (c *Cache) Contains(callsign string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[callsign]
	return ok
}

// Members returns a snapshot copy of the current member set.
func (c *Cache) Members() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.members))
	for m := range c.members {
		out = append(out, m)
	}
	return out
}

// MemberCount returns the current snapshot size.
func (c *Cache) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// LastSuccess returns the time of the last successful fetch, and whether one
// has ever happened.
func (c *Cache) LastSuccess() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess, c.succeeded
}

// DueForRefresh reports whether the cache should be fetched at the given
// time. A cache that has never been attempted is always due, so every
// resource gets at least one fetch regardless of interval. After a failure
// the cache becomes due again one interval after the attempt, not
// immediately; a cache with interval zero that has succeeded once is never
// due again.
func (c *Cache) DueForRefresh(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.attempted {
		return true
	}
	if c.interval == 0 {
		// Fetch-once: keep trying at the sweep cadence until the first
		// success, then stop forever.
		return !c.succeeded
	}
	return !now.Before(c.lastAttempt.Add(c.interval))
}

// install atomically replaces the member set after a successful fetch.
func (c *Cache) install(callsigns []string, now time.Time) {
	members := make(map[string]struct{}, len(callsigns))
	for _, call := range callsigns {
		members[call] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = members
	c.attempted = true
	c.succeeded = true
	c.lastAttempt = now
	c.lastSuccess = now
}

// recordFailure advances the attempt bookkeeping without touching members,
// so the cache isn't immediately due again but keeps its previous snapshot.
func (c *Cache) recordFailure(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempted = true
	c.lastAttempt = now
}
