package utils

import (
	"sync"
	"time"
)

// Cooldown allows at most limit hits per key inside a rolling window.
type Cooldown struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

// NewCooldown returns nil when limit or window is not positive; a nil
// Cooldown allows everything.
func NewCooldown(limit int, window time.Duration) *Cooldown {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &Cooldown{limit: limit, window: window, hits: make(map[string][]time.Time)}
}

// Allow records a hit for key if it fits in the window. When it does not, the
// returned duration is how long until the oldest hit expires.
func (c *Cooldown) Allow(key string, now time.Time) (bool, time.Duration) {
	if c == nil {
		return true, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	hits := prune(c.hits[key], now.Add(-c.window))
	if len(hits) >= c.limit {
		c.hits[key] = hits
		return false, hits[0].Add(c.window).Sub(now)
	}
	c.hits[key] = append(hits, now)
	return true, 0
}

// Forget removes the hit recorded for key at the given time, e.g. after the
// guarded action failed.
func (c *Cooldown) Forget(key string, at time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	hits := c.hits[key]
	for i := len(hits) - 1; i >= 0; i-- {
		if hits[i].Equal(at) {
			c.hits[key] = append(hits[:i:i], hits[i+1:]...)
			break
		}
	}
	if len(c.hits[key]) == 0 {
		delete(c.hits, key)
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, hit := range hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	return hits[idx:]
}
