package middleware

import (
	"math"
	"strconv"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClientKey identifies the caller by the verified principal, or by IP when
// the request has not been authenticated. Raw headers are never used.
func ClientKey(c *gin.Context) string {
	if p, ok := auth.FromContext(c.Request.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	return "ip:" + c.ClientIP()
}

// RateLimit fails open when the limiter backend errors.
func RateLimit(l ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), ClientKey(c))
		if err != nil {
			zap.L().Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			_ = c.Error(errutil.TooManyRequest("too many requests", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
