package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability owns the OpenTelemetry meter and tracer providers.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	tracing       *tracing
	tracer        trace.Tracer
	answerCounter otelmetric.Int64Counter
	stageDuration otelmetric.Float64Histogram
	subQueryCount otelmetric.Int64Histogram
}

// New wires the Prometheus metric exporter. Tracing stays a no-op until
// EnableTracing is called.
func New(serviceName string) (*Observability, error) {
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		return o, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.answerCounter, _ = o.meter.Int64Counter(
		"answers.processed",
		otelmetric.WithDescription("Number of questions processed"),
	)
	o.stageDuration, _ = o.meter.Float64Histogram(
		"stage.duration",
		otelmetric.WithDescription("Pipeline stage duration"),
		otelmetric.WithUnit("ms"),
	)
	o.subQueryCount, _ = o.meter.Int64Histogram(
		"answers.sub_queries",
		otelmetric.WithDescription("Sub-queries per question"),
	)

	return o, nil
}

// Noop returns an Observability that records nothing.
func Noop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

// StartSpan opens a span named after the pipeline stage.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("noop").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordAnswer(ctx context.Context, queryType, state string, subQueries int) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("query_type", queryType),
		attribute.String("state", state),
	)
	if o.answerCounter != nil {
		o.answerCounter.Add(ctx, 1, attrs)
	}
	if o.subQueryCount != nil {
		o.subQueryCount.Record(ctx, int64(subQueries), attrs)
	}
}

func (o *Observability) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	if o == nil || o.stageDuration == nil {
		return
	}
	o.stageDuration.Record(ctx, float64(duration.Microseconds())/1000, otelmetric.WithAttributes(
		attribute.String("stage", stage),
	))
}

func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.shutdown(ctx)
	}
}
