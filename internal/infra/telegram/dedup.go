package telegram

import (
	"sync"
	"time"
)

const (
	// seenWindow is how long a delivered message id is remembered
	seenWindow = 5 * time.Minute
	// sweepInterval bounds how often expired ids are dropped
	sweepInterval = time.Minute
)

type messageKey struct {
	chatID    int64
	messageID int64
}

// seenCache drops updates Telegram redelivers after a reconnect
type seenCache struct {
	mu        sync.Mutex
	seen      map[messageKey]time.Time
	lastSweep time.Time
}

func newSeenCache() *seenCache {
	return &seenCache{seen: make(map[messageKey]time.Time)}
}

// firstSeen marks key and reports whether it was new
func (c *seenCache) firstSeen(key messageKey, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.seen[key]; ok && now.Sub(ts) < seenWindow {
		return false
	}
	c.seen[key] = now

	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweep(now)
	}
	return true
}

func (c *seenCache) sweep(now time.Time) {
	cutoff := now.Add(-seenWindow)
	for k, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, k)
		}
	}
	c.lastSweep = now
}
