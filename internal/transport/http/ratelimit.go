package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/guestbook-server/internal/core"
)

const (
	limiterWindow = time.Minute
	// limiterTTL is how long an idle client bucket is kept.
	limiterTTL = 10 * time.Minute
)

// IPRateLimiter limits submissions per client IP with a token bucket each.
// A limit of zero or less disables it.
type IPRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	lastSeen  map[string]time.Time
	lastSweep time.Time

	rate  rate.Limit
	burst int
	now   func() time.Time
	log   *zerolog.Logger
}

// NewIPRateLimiter allows perMinute requests per client IP per minute.
func NewIPRateLimiter(perMinute int, logger *zerolog.Logger) *IPRateLimiter {
	rl := &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		log:      logger,
	}
	if perMinute > 0 {
		rl.rate = rate.Every(limiterWindow / time.Duration(perMinute))
		rl.burst = perMinute
	}
	rl.lastSweep = rl.now()
	return rl
}

// Enabled reports whether requests are limited at all.
func (rl *IPRateLimiter) Enabled() bool {
	return rl != nil && rl.burst > 0
}

// Allow consumes a token for ip.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if !rl.Enabled() {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	bucket, ok := rl.limiters[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = bucket
	}
	rl.lastSeen[ip] = now
	return bucket.AllowN(now, 1)
}

// sweepLocked drops idle buckets at most once per TTL (must be called with mutex held).
func (rl *IPRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < limiterTTL {
		return
	}
	for ip, seen := range rl.lastSeen {
		if now.Sub(seen) > limiterTTL {
			delete(rl.limiters, ip)
			delete(rl.lastSeen, ip)
		}
	}
	rl.lastSweep = now
}

// Middleware rejects requests over the limit with 429.
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			rl.log.Warn().
				Str("ip", ip).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("rate limit exceeded")
			c.String(http.StatusTooManyRequests, core.ErrTooManyPosts.Message)
			c.Abort()
			return
		}
		c.Next()
	}
}
