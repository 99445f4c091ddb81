package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

// TracingCollector implements docstore.TracingCollector on an OpenTelemetry tracer.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector on the given tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span carrying attrs and returns the context holding it.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, docstore.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &SpanContext{span: span}
}

// FinishSpan adds attrs, maps status onto a span status code and ends the span.
// Spans started elsewhere are ignored.
func (t *TracingCollector) FinishSpan(spanCtx docstore.SpanContext, status string, attrs map[string]string) {
	otelSpan, ok := spanCtx.(*SpanContext)
	if !ok {
		return
	}

	otelSpan.span.SetAttributes(toAttributes(attrs)...)
	otelSpan.SetStatus(status)
	otelSpan.span.End()
}

// SpanContext wraps an OpenTelemetry span.
type SpanContext struct {
	span trace.Span
}

// SetStatus maps docstore and lending status labels onto span status codes.
// not_found and the business failures are expected outcomes and stay unset.
func (s *SpanContext) SetStatus(status string) {
	switch status {
	case docstore.StatusSuccess, "ok":
		s.span.SetStatus(codes.Ok, "")
	case docstore.StatusError:
		s.span.SetStatus(codes.Error, "operation failed")
	case docstore.StatusCanceled, "cancelled":
		s.span.SetStatus(codes.Error, "operation canceled")
	case docstore.StatusTimeout:
		s.span.SetStatus(codes.Error, "operation timed out")
	case docstore.StatusConflict:
		s.span.SetStatus(codes.Error, "concurrency conflict")
	default:
		s.span.SetAttributes(attribute.String(docstore.AttrStatus, status))
	}
}

// AddAttribute adds a string attribute to the span.
func (s *SpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ docstore.TracingCollector = (*TracingCollector)(nil)
	_ docstore.SpanContext      = (*SpanContext)(nil)
)
