package logging

import (
	"sync"
	"time"
)

// Limiter suppresses repeats of the same keyed message inside an interval.
// A camera that is down produces one warning per interval instead of one per frame.
type Limiter struct {
	interval time.Duration
	nowFunc  func() time.Time

	mu         sync.Mutex
	last       map[string]time.Time
	suppressed map[string]int
}

func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval:   interval,
		nowFunc:    time.Now,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]int),
	}
}

// Allow reports whether key may be logged now, and how many repeats were
// swallowed since it was last allowed.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if prev, ok := l.last[key]; ok && now.Sub(prev) < l.interval {
		l.suppressed[key]++
		return false, 0
	}

	n := l.suppressed[key]
	l.last[key] = now
	delete(l.suppressed, key)
	return true, n
}

// Reset forgets key so the next occurrence is logged immediately
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, key)
	delete(l.suppressed, key)
}
