package server

import (
	"net/http"
	"sync"
	"time"
)

// Sweeping stale buckets happens inline once the map grows past this
// size, so no background goroutine is needed.
const throttleSweepSize = 1024

// ipThrottle caps how many requests each client IP may make to the
// password-checked endpoints per window, slowing brute forcing of the
// shared secret. Unauthenticated endpoints (health, api, file reads)
// are not throttled; proxy-side limits cover those.
type ipThrottle struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*ipBucket
}

// ipBucket counts requests from one IP within the current window.
type ipBucket struct {
	start time.Time
	count int
}

func newIPThrottle(max int, window time.Duration) *ipThrottle {
	return &ipThrottle{
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*ipBucket),
	}
}

// allow records a request from ip and reports whether it is within the
// limit. The window is fixed per IP: the first request opens it, and
// it resets once the window has fully elapsed.
func (t *ipThrottle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b := t.buckets[ip]
	if b == nil || now.Sub(b.start) >= t.window {
		if len(t.buckets) >= throttleSweepSize {
			t.sweep(now)
		}
		t.buckets[ip] = &ipBucket{start: now, count: 1}
		return true
	}
	if b.count >= t.max {
		return false
	}
	b.count++
	return true
}

// sweep drops buckets whose window has elapsed. Caller holds the lock.
func (t *ipThrottle) sweep(now time.Time) {
	for ip, b := range t.buckets {
		if now.Sub(b.start) >= t.window {
			delete(t.buckets, ip)
		}
	}
}

// guard wraps one handler with the throttle.
func (t *ipThrottle) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "too many requests",
				"code":  "rate_limited",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
