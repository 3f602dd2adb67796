// Package telemetry configures OpenTelemetry tracing from the standard OTEL_*
// environment variables and ties the tracer provider to the service lifecycle.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/JaimeStill/tally/pkg/lifecycle"
)

const shutdownTimeout = 5 * time.Second

// System owns the process tracer provider.
type System interface {
	// Enabled reports whether spans are exported.
	Enabled() bool
	// Start registers a shutdown hook that flushes pending spans.
	Start(lc *lifecycle.Coordinator) error
}

type tracing struct {
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
}

// New installs the global propagator and, unless OTEL_SDK_DISABLED is "true",
// an OTLP tracer provider. Exporter setup failures degrade to the no-op
// provider with an error log rather than failing startup.
func New(ctx context.Context, serviceName, version string, logger *slog.Logger) (System, error) {
	t := &tracing{logger: logger.With("system", "telemetry")}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		t.logger.Info("tracing disabled")
		return t, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getEnv("OTEL_SERVICE_NAME", serviceName)),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := newExporter(ctx, getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
	if err != nil {
		t.logger.Error("tracing exporter init failed", "error", err)
		return t, nil
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler()),
	)
	otel.SetTracerProvider(t.provider)

	t.logger.Info(
		"tracing configured",
		"protocol", getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		"endpoint", endpoint(),
		"sampler", getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"),
	)

	return t, nil
}

func (t *tracing) Enabled() bool {
	return t.provider != nil
}

func (t *tracing) Start(lc *lifecycle.Coordinator) error {
	if t.provider == nil {
		return nil
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := t.provider.Shutdown(ctx); err != nil {
			t.logger.Error("tracer shutdown failed", "error", err)
			return
		}
		t.logger.Info("tracer provider flushed")
	})

	return nil
}

func newExporter(ctx context.Context, protocol string) (*otlptrace.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

func sampler() sdktrace.Sampler {
	ratio := 1.0
	if v, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64); err == nil {
		ratio = v
	}

	switch os.Getenv("OTEL_TRACES_SAMPLER") {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(ratio)
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

func endpoint() string {
	if v := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); v != "" {
		return v
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
