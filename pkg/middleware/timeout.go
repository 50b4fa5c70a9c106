package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/driver-verification/pkg/common"
)

// RequestTimeout cancels the request context after d and answers 504. The
// deadline flows into every store and storage call made by the handler.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithResponse(func(c *gin.Context) {
			c.Header("X-Timeout", "true")
			common.AppErrorResponse(c, common.NewAppError(http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "request timeout", nil))
		}),
	)
}

// Seconds converts a configured timeout in seconds to a duration, falling
// back to def for non-positive values.
func Seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// RouteTimeouts applies def to every route except those listed in overrides,
// keyed by "METHOD /route/pattern".
func RouteTimeouts(def time.Duration, overrides map[string]time.Duration) gin.HandlerFunc {
	defaultHandler := RequestTimeout(def)
	handlers := make(map[string]gin.HandlerFunc, len(overrides))
	for route, d := range overrides {
		handlers[route] = RequestTimeout(d)
	}

	return func(c *gin.Context) {
		if h, ok := handlers[c.Request.Method+" "+c.FullPath()]; ok {
			h(c)
			return
		}
		defaultHandler(c)
	}
}
