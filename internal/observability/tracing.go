package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/utils"
)

// InitTracing configures the global tracer provider. Exporter selection via
// OTEL_EXPORTER: "stdout", "otlp", anything else disables exporting (spans
// become no-ops). Returns a shutdown func, possibly nil.
func InitTracing(ctx context.Context, log *logger.Logger, serviceName string) func(context.Context) error {
	mode := strings.ToLower(utils.GetEnv("OTEL_EXPORTER", "off", log))

	var exporter sdktrace.SpanExporter
	var err error
	switch mode {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		exporter, err = otlptracehttp.New(ctx)
	default:
		return nil
	}
	if err != nil {
		log.Warn("otel exporter init failed, tracing disabled", "exporter", mode, "error", err)
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", serviceName, "exporter", mode)
	return tp.Shutdown
}
