package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/errors"
	"github.com/richxcame/driver-verification/pkg/logger"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a per-request Sentry hub. Panics are re-raised
// so RecoveryWithSentry can answer the client.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected failures after the handler chain has run.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		hub := sentrygin.GetHubFromContext(c)

		errors.AddBreadcrumbForRequest(hub, c.Request.Method, c.Request.URL.Path, status, duration)

		reported := false
		for _, ginErr := range c.Errors {
			if errors.ShouldReportError(ginErr.Err, status) {
				capture(c, hub, status, func(h *sentry.Hub) { h.CaptureException(ginErr.Err) })
				reported = true
			}
		}
		if !reported && status >= http.StatusInternalServerError {
			msg := fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.FullPath())
			capture(c, hub, status, func(h *sentry.Hub) { h.CaptureMessage(msg) })
		}
	}
}

// RecoveryWithSentry turns a panic into a 500 envelope after reporting it.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)

				hub := sentrygin.GetHubFromContext(c)
				if hub == nil {
					hub = sentry.CurrentHub().Clone()
				}
				hub.Scope().SetRequest(c.Request)
				hub.RecoverWithContext(c.Request.Context(), r)

				common.AppErrorResponse(c, common.NewInternalError("an unexpected error occurred", nil))
				c.Abort()
			}
		}()

		c.Next()
	}
}

func capture(c *gin.Context, hub *sentry.Hub, status int, send func(*sentry.Hub)) {
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(errors.LevelForStatus(status))
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", status))
		scope.SetTag("endpoint", c.FullPath())
		if id := GetCorrelationID(c); id != "" {
			scope.SetTag("correlation_id", id)
		}
		if uid, err := GetUserID(c); err == nil {
			scope.SetUser(sentry.User{ID: uid.String(), IPAddress: c.ClientIP()})
		}
		if role, err := GetUserRole(c); err == nil {
			scope.SetTag("user.role", string(role))
		}
		send(hub)
	})
}
