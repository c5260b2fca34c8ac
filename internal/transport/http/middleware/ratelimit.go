package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter is a per-IP token-bucket rate limiter with automatic stale-entry cleanup.
type RateLimiter struct {
	limiters *xsync.MapOf[string, *ipLimiter]
	r        rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter creates a per-IP limiter: r requests/second, burst up to burst requests.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: xsync.NewMapOf[*ipLimiter](),
		r:        r,
		burst:    burst,
		now:      time.Now,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	v, ok := rl.limiters.Load(ip)
	if !ok {
		v, _ = rl.limiters.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(rl.r, rl.burst)})
	}
	v.lastSeen.Store(rl.now().UnixNano())
	return v.limiter
}

// cleanup removes stale entries every 5 minutes.
func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		rl.sweep(10 * time.Minute)
	}
}

func (rl *RateLimiter) sweep(maxIdle time.Duration) {
	cutoff := rl.now().Add(-maxIdle).UnixNano()
	rl.limiters.Range(func(ip string, v *ipLimiter) bool {
		if v.lastSeen.Load() < cutoff {
			rl.limiters.Delete(ip)
		}
		return true
	})
}

// Limit is the middleware handler that enforces the rate limit per client IP.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(realIP(r)).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// realIP prefers the first X-Forwarded-For hop, then X-Real-Ip, then the socket peer.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xr := r.Header.Get("X-Real-Ip"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
