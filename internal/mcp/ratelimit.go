package mcp

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiter holds one token bucket per tool. The bucket refills at
// the configured per-minute rate with a burst of one minute's worth,
// so a cold client can spend its full allowance immediately.
type rateLimiter struct {
	rpm int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// newRateLimiter creates a limiter; rpm <= 0 disables limiting.
func newRateLimiter(rpm int) *rateLimiter {
	return &rateLimiter{
		rpm:     rpm,
		buckets: make(map[string]*rate.Limiter),
	}
}

// allow consumes one token for the given tool, reporting false when
// the bucket is exhausted.
func (l *rateLimiter) allow(tool string) bool {
	if l.rpm <= 0 {
		return true
	}
	l.mu.Lock()
	bucket, ok := l.buckets[tool]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(float64(l.rpm)/60.0), l.rpm)
		l.buckets[tool] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}
