package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of spans started by this service
const TracerName = "github.com/retailops/backend"

// Span attribute keys used by the barcode services
const (
	SpanAttrBarcodeType = "barcode.type"
	SpanAttrOwnerType   = "barcode.owner_type"
	SpanAttrOwnerID     = "barcode.owner_id"
	SpanAttrCode        = "barcode.code"
	SpanAttrAttempt     = "barcode.attempt"
	SpanAttrBatchSize   = "barcode.batch_size"
)

// StartSpan starts an internal span named "<service>.<method>" on the global tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, "barcode", "generate", attribute.String(...))
//	defer span.End()
func StartSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError records err on span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
