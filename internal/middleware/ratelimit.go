package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenacity/ops-backend/internal/response"
)

// RateLimiter is a token bucket per caller. Operators are keyed by their JWT
// subject, anything unauthenticated by client IP.
type RateLimiter struct {
	mu          sync.Mutex
	callers     map[string]*bucket
	rate        int           // Tokens per interval
	interval    time.Duration // Refill interval
	lastCleanup time.Time
	now         func() time.Time
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter, e.g. 6 job triggers per minute.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		callers:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		now:      time.Now,
	}
}

func callerKey(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return "ip:" + c.ClientIP()
}

// allow takes one token from key's bucket.
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) > time.Minute {
		for k, b := range rl.callers {
			if now.Sub(b.lastSeen) > 3*rl.interval {
				delete(rl.callers, k)
			}
		}
		rl.lastCleanup = now
	}

	b, ok := rl.callers[key]
	if !ok {
		b = &bucket{tokens: rl.rate, lastSeen: now}
		rl.callers[key] = b
	}

	// Refill tokens based on elapsed time.
	if refill := int(now.Sub(b.lastSeen)/rl.interval) * rl.rate; refill > 0 {
		b.tokens = min(b.tokens+refill, rl.rate)
		b.lastSeen = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Middleware returns a Gin middleware that rate-limits requests per caller.
// Mount it after the JWT middleware so operators are keyed by subject.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(callerKey(c)) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
