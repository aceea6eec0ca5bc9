// Package otel provides span helpers shared by the sync packages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on sync spans
const (
	AttrTenantID   = attribute.Key("tenant.id")
	AttrRunID      = attribute.Key("sync.run_id")
	AttrScope      = attribute.Key("sync.scope")
	AttrEntityType = attribute.Key("sync.entity_type")
	AttrSyncMode   = attribute.Key("sync.mode")
)

// StartSpan starts a span when tracer is non-nil. Otherwise the span already
// in ctx (usually a no-op) is returned.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status
// description stays generic so connection strings and SQL never reach it;
// the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
