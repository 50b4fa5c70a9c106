package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Database span attributes
const (
	DBSystemKey    = attribute.Key("db.system")
	DBOperationKey = attribute.Key("db.operation")
	DBTableKey     = attribute.Key("db.sql.table")
)

// HTTP span attributes
const (
	HTTPMethodKey    = attribute.Key("http.method")
	HTTPURLKey       = attribute.Key("http.url")
	HTTPStatusKey    = attribute.Key("http.status_code")
	HTTPRouteKey     = attribute.Key("http.route")
	HTTPClientIPKey  = attribute.Key("http.client_ip")
	HTTPUserAgentKey = attribute.Key("http.user_agent")
	HTTPRequestIDKey = attribute.Key("http.request_id")
)

// Document verification attributes
const (
	UserIDKey     = attribute.Key("user.id")
	DriverIDKey   = attribute.Key("driver.id")
	DocumentIDKey = attribute.Key("document.id")
	DocTypeKey    = attribute.Key("document.type")
	DocSideKey    = attribute.Key("document.side")
	DocStatusKey  = attribute.Key("document.status")
)

// TraceDBQuery wraps a database call in a client span.
func TraceDBQuery(ctx context.Context, tracerName, operation, table string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("db.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		DBSystemKey.String("postgresql"),
		DBOperationKey.String(operation),
		DBTableKey.String(table),
	)

	err := fn(ctx)
	finish(span, err)
	return err
}

// TraceExternalAPI wraps a call to an outside service (object storage, push,
// SMS) in a client span.
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", serviceName, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("external.service", serviceName),
		attribute.String("external.operation", operation),
	)

	err := fn(ctx)
	finish(span, err)
	return err
}

// DocumentAttributes builds the attribute set shared by document spans.
func DocumentAttributes(driverID, documentID, docType, side string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if driverID != "" {
		attrs = append(attrs, DriverIDKey.String(driverID))
	}
	if documentID != "" {
		attrs = append(attrs, DocumentIDKey.String(documentID))
	}
	if docType != "" {
		attrs = append(attrs, DocTypeKey.String(docType))
	}
	if side != "" {
		attrs = append(attrs, DocSideKey.String(side))
	}
	return attrs
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
