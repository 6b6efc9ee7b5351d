package admin

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RateLimiter is a per-IP token bucket, identical in shape to the
// teacher's internal/node.RateLimiter.
type RateLimiter struct {
	buckets map[string]*tokenBucket
	mutex   sync.RWMutex
	rate    int
	burst   int
	cleanup chan struct{}
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(rate, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   burst,
		cleanup: make(chan struct{}),
	}
	go rl.cleanupStaleEntries()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	bucket, exists := rl.buckets[ip]
	if !exists {
		bucket = &tokenBucket{tokens: rl.burst, lastRefill: time.Now()}
		rl.buckets[ip] = bucket
	}
	rl.mutex.Unlock()

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)
	tokensToAdd := int(elapsed.Seconds() * float64(rl.rate))
	if tokensToAdd > 0 {
		bucket.tokens += tokensToAdd
		if bucket.tokens > rl.burst {
			bucket.tokens = rl.burst
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanupStaleEntries() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mutex.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, bucket := range rl.buckets {
				bucket.mutex.Lock()
				stale := bucket.lastRefill.Before(cutoff)
				bucket.mutex.Unlock()
				if stale {
					delete(rl.buckets, ip)
				}
			}
			rl.mutex.Unlock()
		case <-rl.cleanup:
			return
		}
	}
}

func (rl *RateLimiter) Close() { close(rl.cleanup) }

// SecurityMiddleware rate-limits by source IP, caps request size, and
// applies standard hardening headers, mirroring
// internal/node.SecurityMiddleware with the REPRAM-specific header and
// data-plane suspicious-URL checks dropped — this surface is read-only
// GETs, not a PUT/GET key-value API.
type SecurityMiddleware struct {
	rateLimiter    *RateLimiter
	maxRequestSize int64
	rateLimited    prometheus.Counter
	oversized      prometheus.Counter
}

func NewSecurityMiddleware(registry *prometheus.Registry, rateLimit, burst int, maxRequestSize int64) *SecurityMiddleware {
	sm := &SecurityMiddleware{
		rateLimiter:    NewRateLimiter(rateLimit, burst),
		maxRequestSize: maxRequestSize,
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gossipmesh_admin_rate_limited_requests_total",
			Help: "Total number of rate-limited admin requests.",
		}),
		oversized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gossipmesh_admin_oversized_requests_total",
			Help: "Total number of oversized admin requests rejected.",
		}),
	}
	registry.MustRegister(sm.rateLimited, sm.oversized)
	return sm
}

func (sm *SecurityMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.applySecurityHeaders(w)

		clientIP := sm.getClientIP(r)
		if !sm.rateLimiter.Allow(clientIP) {
			sm.rateLimited.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		if r.ContentLength > sm.maxRequestSize {
			sm.oversized.Inc()
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (sm *SecurityMiddleware) applySecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func (sm *SecurityMiddleware) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (sm *SecurityMiddleware) Close() {
	sm.rateLimiter.Close()
}

// TimeoutMiddleware bounds how long a handler may run before the client
// gets a 503, guarding against a slow or stuck admin client holding a
// connection open.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, "request timeout")
	}
}
