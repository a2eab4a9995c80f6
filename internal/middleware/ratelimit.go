package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/recshare/internal/apperr"
	"github.com/lalith-99/recshare/internal/observ"
)

// Limiter is satisfied by *ratelimit.KeyedRateLimiter.
type Limiter interface {
	Allow(key string) bool
}

// RateLimitByIP rejects requests with 429 once the caller's IP exhausts
// its bucket.
func RateLimitByIP(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			observ.RateLimitHits.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", "1")
			abort(c, apperr.RateLimited("too many requests"))
			return
		}
		c.Next()
	}
}
