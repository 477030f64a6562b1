package telegram

import (
	"sync"
	"time"
)

// throttle enforces a per-user cooldown per action key, so a double-tapped
// /payment does not produce two invoices.
type throttle struct {
	mu   sync.Mutex
	last map[int64]map[string]time.Time
	now  func() time.Time
}

func newThrottle() *throttle {
	return &throttle{
		last: make(map[int64]map[string]time.Time),
		now:  time.Now,
	}
}

// allow reports whether the action may proceed and, if so, stamps it.
func (t *throttle) allow(userID int64, key string, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.last[userID] == nil {
		t.last[userID] = make(map[string]time.Time)
	}
	if prev, ok := t.last[userID][key]; ok && now.Sub(prev) < interval {
		return false
	}
	t.last[userID][key] = now
	return true
}
