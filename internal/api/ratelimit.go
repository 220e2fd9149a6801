package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rateLimiterCleanupInterval is how often expired windows are swept.
const rateLimiterCleanupInterval = 5 * time.Minute

// rateLimiter is a fixed-window request counter per client IP. Each IP
// gets max requests per window; the counter resets when the window
// rolls over. Stale windows are swept inline during allow() calls.
type rateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	window      time.Duration
	max         int
	lastCleanup time.Time
}

// window tracks one IP's request count in the current window.
type window struct {
	start time.Time
	count int
}

// newRateLimiter creates a limiter allowing max requests per windowLen
// per IP.
func newRateLimiter(windowLen time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		windows:     make(map[string]*window),
		window:      windowLen,
		max:         max,
		lastCleanup: time.Now(),
	}
}

// allow records a request from ip and reports whether it is within the
// limit. retryAfter is how long until the window resets when denied.
func (rl *rateLimiter) allow(ip string) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if now.Sub(rl.lastCleanup) > rateLimiterCleanupInterval {
		for k, w := range rl.windows {
			if now.Sub(w.start) > rl.window {
				delete(rl.windows, k)
			}
		}
		rl.lastCleanup = now
	}

	w, exists := rl.windows[ip]
	if !exists || now.Sub(w.start) > rl.window {
		rl.windows[ip] = &window{start: now, count: 1}
		return true, 0
	}

	w.count++
	if w.count > rl.max {
		return false, rl.window - now.Sub(w.start)
	}
	return true, 0
}

// rateLimitMiddleware rejects clients that exceed the per-IP window.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			allowed, retryAfter := rl.allow(ip)
			if !allowed {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				secs := int(retryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request.
//
// When trustProxy is true, X-Real-IP is checked first, then the first
// entry of X-Forwarded-For. Header values are validated with
// net.ParseIP so arbitrary strings cannot become limiter keys. When
// trustProxy is false only RemoteAddr is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
