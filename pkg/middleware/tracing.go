package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/driver-verification/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware starts a server span per request, continuing any W3C
// trace context sent by the caller.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				tracing.HTTPMethodKey.String(c.Request.Method),
				tracing.HTTPURLKey.String(c.Request.URL.String()),
				tracing.HTTPRouteKey.String(route),
				tracing.HTTPUserAgentKey.String(c.Request.UserAgent()),
				tracing.HTTPClientIPKey.String(c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		if span.SpanContext().HasTraceID() {
			c.Header("X-Trace-ID", span.SpanContext().TraceID().String())
		}
		if id := c.GetString(CorrelationIDKey); id != "" {
			span.SetAttributes(tracing.HTTPRequestIDKey.String(id))
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(tracing.HTTPStatusKey.Int(status))
		if uid, err := GetUserID(c); err == nil {
			span.SetAttributes(tracing.UserIDKey.String(uid.String()))
		}

		switch {
		case len(c.Errors) > 0:
			for _, e := range c.Errors {
				span.RecordError(e.Err)
			}
			span.SetStatus(codes.Error, c.Errors.String())
		case status >= 500:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
