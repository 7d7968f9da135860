package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/utils"
)

type Config struct {
	ServiceName string
	Environment string
}

// InitTracing installs a global tracer provider and propagator. Tracing is
// opt-in: without OTEL_ENABLED the global provider stays a no-op and the
// returned shutdown is nil. Exports go to the OTLP HTTP endpoint when
// OTEL_EXPORTER_OTLP_ENDPOINT is set, to stdout otherwise.
func InitTracing(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	if !utils.GetEnvAsBool("OTEL_ENABLED", false, log) {
		return nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "courseforge"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		log.Warn("Otel resource init failed, continuing", "error", err)
	}

	exporter, err := newTraceExporter(ctx, log)
	if err != nil {
		log.Warn("Trace exporter init failed; tracing disabled", "error", err)
		return nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(log)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("Tracing initialized", "service", serviceName)
	return tp.Shutdown
}

func newTraceExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	endpoint := utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", log)
	if endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if utils.GetEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false, log) {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	log.Warn("No OTLP endpoint configured; traces go to stdout")
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func sampleRatio(log *logger.Logger) float64 {
	raw := utils.GetEnv("OTEL_SAMPLER_RATIO", "", log)
	if raw == "" {
		return 0.1
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn("Invalid OTEL_SAMPLER_RATIO, using default", "value", raw)
		return 0.1
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
