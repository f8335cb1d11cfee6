package handlers

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type rateLimiter interface {
	Allow(key string) bool
}

// windowLimiter counts hits per key in fixed windows. Keys live in a bounded LRU so a flood of
// distinct callers cannot grow memory without limit.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	hits   *lru.Cache
}

type window struct {
	count int
	reset time.Time
}

func newWindowLimiter(limit int, per time.Duration, size int, clock func() time.Time) rateLimiter {
	if limit <= 0 || per <= 0 {
		return nil
	}
	if size <= 0 {
		size = 10000
	}
	if clock == nil {
		clock = time.Now
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil
	}
	return &windowLimiter{limit: limit, window: per, clock: clock, hits: cache}
}

func (l *windowLimiter) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.hits.Get(key)
	if !ok || now.After(current.(window).reset) {
		l.hits.Add(key, window{count: 1, reset: now.Add(l.window)})
		return true
	}
	w := current.(window)
	if w.count >= l.limit {
		return false
	}
	w.count++
	l.hits.Add(key, w)
	return true
}
