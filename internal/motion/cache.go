// Package motion tracks the last resolved position per tag and derives
// displacement and elapsed time between consecutive fixes.
package motion

import (
	"math"
	"sync"
	"time"
)

// Delta is the movement between a tag's previous fix and its current one.
// Both fields are nil on a tag's first-ever fix.
type Delta struct {
	Distance       *float64
	ElapsedSeconds *int64
}

type entry struct {
	x, y float64
	at   time.Time
}

// Cache is a process-lifetime map of last-known fixes, one entry per tag.
// It is safe for concurrent use; the read-then-overwrite in Update holds the
// lock for the whole step so concurrent fixes for one tag cannot lose an
// update. State is volatile: a restart resets all odometry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewCache creates an empty motion cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Update records a fix for tag and returns the delta against the previous
// fix. Elapsed time is whole seconds, floored; a negative wall-clock delta
// (skew, reordering) clamps to zero. The new fix always replaces the cached
// one, last write wins.
func (c *Cache) Update(tag string, x, y float64, at time.Time) Delta {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.entries[tag]
	c.entries[tag] = entry{x: x, y: y, at: at}
	if !seen {
		return Delta{}
	}

	dist := math.Hypot(x-prev.x, y-prev.y)
	elapsed := int64(math.Floor(at.Sub(prev.at).Seconds()))
	if elapsed < 0 {
		elapsed = 0
	}
	return Delta{Distance: &dist, ElapsedSeconds: &elapsed}
}

// Len reports the number of tags currently tracked.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
