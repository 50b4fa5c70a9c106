package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/richxcame/driver-verification/pkg/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TaskContext holds the request-scoped values that must survive into a
// background task after the request context is cancelled.
type TaskContext struct {
	CorrelationID string
	SpanContext   trace.SpanContext
	StartTime     time.Time
	TaskName      string
}

// CaptureContext snapshots the correlation ID and span of ctx.
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		SpanContext:   trace.SpanContextFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext builds a fresh background context carrying the captured values.
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.SpanContext.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, tc.SpanContext)
	}
	return ctx
}

// Go runs fn in a goroutine detached from the caller's cancellation. Panics
// are recovered and logged.
//
//	async.Go(ctx, "notify-review", func(ctx context.Context) {
//	    notifier.DocumentReviewed(ctx, driver, doc)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		taskCtx := tc.NewContext()
		fn(taskCtx)

		logger.DebugContext(taskCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// GoWithTimeout is Go with a deadline on the task context.
func GoWithTimeout(ctx context.Context, taskName string, timeout time.Duration, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc)

		taskCtx, cancel := context.WithTimeout(tc.NewContext(), timeout)
		defer cancel()

		fn(taskCtx)

		if taskCtx.Err() == context.DeadlineExceeded {
			logger.WarnContext(taskCtx, "async task timed out",
				zap.String("task", tc.TaskName),
				zap.Duration("timeout", timeout),
			)
			return
		}
		logger.DebugContext(taskCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

func recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(tc.NewContext(), "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
