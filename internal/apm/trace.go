package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/synth-indexer/internal/apperror"
)

// Tracer starts spans on a named otel tracer.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span is the subset of trace.Span the services use.
type Span interface {
	SetAttributes(kv ...attribute.KeyValue)
	NoticeError(err error)
	SetOK()
	End(options ...trace.SpanEndOption)
}

type otelTracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by the global tracer provider.
func NewTracer(name string) Tracer {
	return &otelTracer{tracer: otel.Tracer(name)}
}

func (t *otelTracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttributes(kv ...attribute.KeyValue) { s.span.SetAttributes(kv...) }
func (s *otelSpan) SetOK()                                 { s.span.SetStatus(codes.Ok, "") }
func (s *otelSpan) End(options ...trace.SpanEndOption)     { s.span.End(options...) }

// NoticeError records err, tags the span with its error code and marks it failed.
func (s *otelSpan) NoticeError(err error) {
	s.span.RecordError(err)
	s.span.SetAttributes(attribute.String("error.code", string(apperror.GetCode(err))))
	s.span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of the span in ctx, or "" when there is none.
// It matches logger.TraceIDFn.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
