package httpmiddleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// window tracks request counts across two adjacent fixed windows; the
// effective count weights the previous window by how much of it still
// overlaps the sliding window.
type window struct {
	prevCount int
	currCount int
	currStart time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*window
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &rateLimiter{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*window),
	}
}

// allow reports whether the request identified by key is within the limit.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.entries[key]
	if !ok {
		e = &window{currStart: now}
		rl.entries[key] = e
	}

	rl.advance(e, now)

	elapsed := now.Sub(e.currStart)
	overlap := 1 - float64(elapsed)/float64(rl.cfg.Window)
	estimated := float64(e.prevCount)*overlap + float64(e.currCount)
	if estimated >= float64(rl.cfg.Max) {
		return false
	}

	e.currCount++
	return true
}

// advance rotates the windows so that currStart is at most one window ago.
func (rl *rateLimiter) advance(e *window, now time.Time) {
	elapsed := now.Sub(e.currStart)
	switch {
	case elapsed >= 2*rl.cfg.Window:
		e.prevCount, e.currCount = 0, 0
		e.currStart = now
	case elapsed >= rl.cfg.Window:
		e.prevCount, e.currCount = e.currCount, 0
		e.currStart = e.currStart.Add(rl.cfg.Window)
		// The shifted window may still lag behind now; catch up once more.
		if now.Sub(e.currStart) >= rl.cfg.Window {
			e.prevCount, e.currCount = 0, 0
			e.currStart = now
		}
	}
}

// cleanup drops entries idle for two full windows.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.cfg.Window)
	for key, e := range rl.entries {
		if e.currStart.Before(cutoff) {
			delete(rl.entries, key)
		}
	}
}

// RateLimit returns a middleware enforcing a per-client sliding window rate
// limit. Rejected requests receive 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimitWith(newRateLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background goroutine that evicts
// idle client entries until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()

	return rateLimitWith(rl)
}

func rateLimitWith(rl *rateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(rl.cfg.KeyFunc(r)) {
				retryAfter := int(rl.cfg.Window.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address without the port. RemoteAddr is used
// as-is when it has no port (e.g. in tests).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
