// ratelimit.go implements a per-IP fixed window limiter stored in memory.
// It guards the mutating API so a wrong key cannot be retried quickly
// against the bcrypt check.
package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/turnclock/internal/apperror"
)

// rateLimitEntry tracks request counts for a single IP within a time window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimiter counts requests per client IP in fixed windows.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*rateLimitEntry
	lastSweep time.Time
}

// NewRateLimiter allows maxRequests per IP in each window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     maxRequests,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*rateLimitEntry),
	}
}

// Allow records a request from ip and reports whether it is within the limit.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	// Expired entries are swept at most once per window instead of from a
	// background goroutine.
	if now.Sub(l.lastSweep) > l.window {
		for k, e := range l.entries {
			if now.Sub(e.windowStart) > l.window {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.entries[ip]
	if !ok || now.Sub(entry.windowStart) > l.window {
		l.entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
		return true
	}
	entry.count++
	return entry.count <= l.max
}

// Middleware returns echo middleware that rejects requests over the limit
// with 429.
func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return apperror.NewTooManyRequests("Rate limit exceeded. Please try again later.")
			}
			return next(c)
		}
	}
}
