package otel

import (
	"context"

	"github.com/pkgindex/pkgindex/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AttrOpID tags spans with the command's operation ID.
const AttrOpID = "pkgindex.op_id"

// StartSpan starts a span when tracing is enabled in ctx. The returned end
// func records err on the span and ends it; it is safe to call when
// tracing is off.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	h := From(ctx)
	if h == nil || h.Tracer == nil {
		return ctx, func(error) {}
	}

	attrs = append(attrs, attribute.String(AttrOpID, observability.OpID(ctx)))
	ctx, span := h.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
