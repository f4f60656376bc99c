package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type TracingConfig struct {
	ServiceName    string
	Version        string
	JaegerEndpoint string
	SampleRatio    float64
}

type tracing struct {
	provider *sdktrace.TracerProvider
}

func (t *tracing) shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// EnableTracing installs a tracer provider. Spans go to Jaeger when an
// endpoint is configured and are only sampled in-process otherwise.
func (o *Observability) EnableTracing(cfg TracingConfig) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	if cfg.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return fmt.Errorf("create jaeger exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	o.tracing = &tracing{provider: provider}
	o.tracer = provider.Tracer(cfg.ServiceName)
	return nil
}

// WithSpanProcessor installs a tracer provider around an explicit processor.
// Tests use it with an in-memory exporter.
func (o *Observability) WithSpanProcessor(serviceName string, sp sdktrace.SpanProcessor) {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sp))
	o.tracing = &tracing{provider: provider}
	o.tracer = provider.Tracer(serviceName)
}
