package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/driver-verification/pkg/common"
)

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	ServerName       string
}

// InitSentry initializes the Sentry SDK. It is a no-op without a DSN.
func InitSentry(cfg SentryConfig) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		ServerName:       cfg.ServerName,
		AttachStacktrace: true,
		BeforeSend:       filterEvent,
		BeforeBreadcrumb: func(b *sentry.Breadcrumb, _ *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			if b.Category == "http" && b.Data != nil {
				delete(b.Data, "Authorization")
				delete(b.Data, "Cookie")
			}
			return b
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

func filterEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
		return nil
	}
	if event.Request != nil {
		for _, h := range []string{"Authorization", "Cookie", "Idempotency-Key"} {
			if _, ok := event.Request.Headers[h]; ok {
				event.Request.Headers[h] = "[REDACTED]"
			}
		}
	}
	return event
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// AddBreadcrumbForRequest records a completed HTTP request.
func AddBreadcrumbForRequest(hub *sentry.Hub, method, path string, statusCode int, duration time.Duration) {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   fmt.Sprintf("%s %s", method, path),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"method":      method,
			"url":         path,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
	}, nil)
}

// ShouldReportError reports only unexpected failures. Client errors carried
// as AppError are part of normal operation and never reach Sentry, except for
// rate limiting which signals abuse.
func ShouldReportError(err error, statusCode int) bool {
	if err == nil {
		return false
	}
	var appErr *common.AppError
	if stderrors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
		return false
	}
	if statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests {
		return false
	}
	return true
}

// LevelForStatus maps HTTP status codes to Sentry severity levels
func LevelForStatus(statusCode int) sentry.Level {
	switch {
	case statusCode >= 500:
		return sentry.LevelError
	case statusCode == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
