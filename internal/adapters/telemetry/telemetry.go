// Package telemetry sets up OpenTelemetry tracing for the solver pipeline.
//
// A solve is one span; every pipeline stage (reveal, product, explore,
// solve) is a child span. Stages report their duration after the fact, so
// stage spans are recorded with explicit start and end timestamps.
//
// Exporters:
//   - "none": a no-op provider, spans cost nothing
//   - "stdout": spans are written as JSON to the given writer as they end
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted by New.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

const tracerName = "github.com/corey/aswin"

// Tracer records pipeline spans.
type Tracer struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// New creates a Tracer for the named exporter. Stdout spans go to w.
func New(exporter, service string, w io.Writer) (*Tracer, error) {
	switch exporter {
	case "", ExporterNone:
		return &Tracer{
			tracer:   noop.NewTracerProvider().Tracer(tracerName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return WithExporter(exp, service), nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (want none or stdout)", exporter)
	}
}

// WithExporter creates a Tracer that exports spans synchronously to exp.
// A CLI run is short-lived, so batching would only delay output.
func WithExporter(exp sdktrace.SpanExporter, service string) *Tracer {
	res := resource.NewWithAttributes("",
		attribute.String("service.name", service),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return &Tracer{tracer: tp.Tracer(tracerName), shutdown: tp.Shutdown}
}

// Start opens a span. The returned end function records err, if any, and
// closes the span.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		RecordError(span, err)
		span.End()
	}
}

// RecordStage records a completed stage as a child span of the span in ctx,
// ending now and lasting d.
func (t *Tracer) RecordStage(ctx context.Context, stage string, d time.Duration) {
	end := time.Now()
	_, span := t.tracer.Start(ctx, stage,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attribute.String("aswin.stage", stage)),
	)
	span.End(trace.WithTimestamp(end))
}

// Shutdown flushes and releases the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// RecordError marks span as failed. Nil spans and nil errors are ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
