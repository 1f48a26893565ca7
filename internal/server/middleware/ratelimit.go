package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP limits requests per client IP using httprate's sliding
// window. This is the coarse outer guard in front of every route.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// KeyLimiter counts requests per API key across fixed minute, hour, and day
// windows. The per-window limits come from the key record itself; a limit of
// zero means unlimited for that window. Counters live in memory, which is
// deliberate: limits are advisory throttles, not billing, and a restart
// resetting them is acceptable.
type KeyLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

type bucketKey struct {
	keyID  int64
	window time.Duration
}

type bucket struct {
	windowStart time.Time
	count       int
}

// NewKeyLimiter creates an empty limiter.
func NewKeyLimiter() *KeyLimiter {
	return &KeyLimiter{buckets: make(map[bucketKey]*bucket)}
}

// allow increments the counter for (keyID, window) and reports whether the
// request fits under limit. retryAfter is how long until the window resets.
func (l *KeyLimiter) allow(keyID int64, limit int, window time.Duration, now time.Time) (ok bool, retryAfter time.Duration) {
	if limit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := bucketKey{keyID: keyID, window: window}
	b := l.buckets[k]
	if b == nil || now.Sub(b.windowStart) >= window {
		b = &bucket{windowStart: now.Truncate(window)}
		l.buckets[k] = b
	}

	if b.count >= limit {
		return false, b.windowStart.Add(window).Sub(now)
	}
	b.count++
	return true, 0
}

// Allow checks a key against all three windows at once. The longest
// retry-after among the exceeded windows wins.
func (l *KeyLimiter) Allow(keyID int64, perMinute, perHour, perDay int) (bool, time.Duration) {
	now := time.Now()
	checks := []struct {
		limit  int
		window time.Duration
	}{
		{perMinute, time.Minute},
		{perHour, time.Hour},
		{perDay, 24 * time.Hour},
	}

	allowed := true
	var retryAfter time.Duration
	for _, c := range checks {
		ok, ra := l.allow(keyID, c.limit, c.window, now)
		if !ok {
			allowed = false
			if ra > retryAfter {
				retryAfter = ra
			}
		}
	}
	return allowed, retryAfter
}

// Sweep drops buckets whose window has long passed. Call periodically from a
// background goroutine to bound memory on servers with many short-lived keys.
func (l *KeyLimiter) Sweep() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if now.Sub(b.windowStart) >= 2*k.window {
			delete(l.buckets, k)
		}
	}
}

// RateLimitByKey rejects requests whose API key has exceeded any of its
// configured windows with a 429 and a Retry-After header. Requests without a
// key principal (admin sessions) pass through. Must run after Authenticate.
func RateLimitByKey(limiter *KeyLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			ok, retryAfter := limiter.Allow(principal.KeyID,
				principal.RateLimitPerMinute,
				principal.RateLimitPerHour,
				principal.RateLimitPerDay,
			)
			if !ok {
				seconds := int(retryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeAuthError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
