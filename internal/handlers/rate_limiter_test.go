package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowLimiter(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := newWindowLimiter(2, time.Minute, 2, func() time.Time { return now })

	assert.True(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("bob"))

	now = now.Add(61 * time.Second)
	assert.True(t, limiter.Allow("alice"))

	assert.Nil(t, newWindowLimiter(0, time.Minute, 0, nil))
}

func TestWindowLimiterEvictsOldestKey(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := newWindowLimiter(1, time.Minute, 2, func() time.Time { return now })

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
	assert.True(t, limiter.Allow("c"))
	assert.True(t, limiter.Allow("a"), "a was evicted so its window restarts")
	assert.False(t, limiter.Allow("c"))
}
