package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter throttles the endpoints that can trigger generation calls.
// Fixed window per key; keys are pet ids, so one noisy pet cannot drain
// the generation budget for everyone.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	maxRate int
	period  time.Duration
}

type window struct {
	used  int
	start time.Time
}

// NewRateLimiter allows maxRate requests per key per period.
func NewRateLimiter(maxRate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		maxRate: maxRate,
		period:  period,
	}
}

// Allow reports whether a request for the given key fits the current
// window, consuming one slot if it does.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.prune(now)

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.period {
		rl.windows[key] = &window{used: 1, start: now}
		return true
	}
	if w.used < rl.maxRate {
		w.used++
		return true
	}
	return false
}

// RetryAfter returns whole seconds until the key's window resets.
func (rl *RateLimiter) RetryAfter(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		return 0
	}
	remaining := rl.period - time.Since(w.start)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// prune drops windows that expired long enough ago to be irrelevant.
// Called with the mutex held.
func (rl *RateLimiter) prune(now time.Time) {
	if len(rl.windows) < 1024 {
		return
	}
	for key, w := range rl.windows {
		if now.Sub(w.start) > 2*rl.period {
			delete(rl.windows, key)
		}
	}
}

// limit rejects the request with 429 when the key is over its window.
// A nil limiter allows everything.
func (rl *RateLimiter) limit(w http.ResponseWriter, key string) bool {
	if rl == nil {
		return true
	}
	if !rl.Allow(key) {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(key)))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}
