package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/logger"
	"github.com/richxcame/driver-verification/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit throttles callers per route. Authenticated callers are keyed by
// user id, everyone else by client IP. A limiter failure lets the request
// through.
func RateLimit(limiter *ratelimit.Limiter, enabled bool) gin.HandlerFunc {
	if limiter == nil || !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		endpointKey := fmt.Sprintf("%s:%s", c.Request.Method, route)

		identityType := ratelimit.IdentityAnonymous
		identity := c.ClientIP()
		if uid, err := GetUserID(c); err == nil {
			identityType = ratelimit.IdentityAuthenticated
			identity = uid.String()
		}

		rule := limiter.RuleFor(endpointKey, identityType)
		if rule.Limit <= 0 {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), endpointKey, identity, rule)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limit evaluation failed",
				zap.String("endpoint", endpointKey),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))

		if result.Allowed {
			c.Next()
			return
		}

		retry := int(result.RetryAfter.Round(time.Second) / time.Second)
		if retry <= 0 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))

		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			zap.String("endpoint", endpointKey),
			zap.String("identity", identity),
			zap.Int("retry_after_seconds", retry),
		)

		common.AppErrorResponse(c, common.NewAppError(http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded", nil))
		c.Abort()
	}
}
