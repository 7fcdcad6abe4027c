// Package telemetry installs the OpenTelemetry tracer and meter providers,
// names the spans of the sync pipeline and defines its metrics. Both go to
// the global providers, which stay no-ops until an SDK is installed.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the pipeline spans
const TracerName = "github.com/erp/stocksync"

// Span names
const (
	SpanRunStep  = "stock_sync.run_step"
	SpanSyncSite = "stock_sync.sync_site"
)

// Span attribute keys
const (
	AttrBatchID     = attribute.Key("stocksync.batch_id")
	AttrBatchStatus = attribute.Key("stocksync.batch_status")
	AttrStep        = attribute.Key("stocksync.step")
	AttrStepKind    = attribute.Key("stocksync.step_kind")
	AttrSiteID      = attribute.Key("stocksync.site_id")
	AttrItemCount   = attribute.Key("stocksync.item_count")
)

// StartSpan starts an internal span carrying attrs. The caller must End it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// StartStepSpan starts the span of one orchestrator invocation. The batch is
// not known yet; AnnotateStep adds it once found or created.
func StartStepSpan(ctx context.Context) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRunStep)
}

// AnnotateStep records which step of which batch the span executes.
func AnnotateStep(span trace.Span, batchID string, step int, kind string) {
	span.SetAttributes(
		AttrBatchID.String(batchID),
		AttrStep.Int(step),
		AttrStepKind.String(kind),
	)
}

// StartSiteSpan starts the span of one site step.
func StartSiteSpan(ctx context.Context, siteID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSyncSite, AttrSiteID.String(siteID))
}

// RecordError records err on span and marks it failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceID returns the trace ID of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
