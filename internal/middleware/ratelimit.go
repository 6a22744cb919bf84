package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/edulearn/portal/internal/metrics"
)

// idleAfter is how long a client's limiter may sit unused before it is
// dropped from memory.
const idleAfter = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
//
// WHY PER IP?
// A single global bucket lets one script lock every student out of the login
// page. One bucket per address keeps the guessing rate of an attacker low
// without affecting anyone else. The key is r.RemoteAddr. Behind a reverse
// proxy chi's RealIP middleware rewrites it first; without one, forwarding
// headers are never consulted, so a client cannot pick its own bucket.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter allows rps requests per second per IP with the given burst.
func NewRateLimiter(rps float64, burst int, m *metrics.Metrics, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	// Sweep on the way past instead of running a goroutine per limiter.
	for key, other := range rl.visitors {
		if now.Sub(other.lastSeen) > idleAfter {
			delete(rl.visitors, key)
		}
	}

	return v.limiter.AllowN(now, 1)
}

// Middleware rejects over-limit requests with 429 and the usual error body.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			if rl.metrics != nil {
				rl.metrics.RateLimited.Inc()
			}
			rl.logger.Warn("rate limited",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]string{
				"error":   "rate_limited",
				"message": "Te veel verzoeken, probeer het zo opnieuw",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. RealIP leaves a bare address, a
// direct connection leaves "host:port".
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
