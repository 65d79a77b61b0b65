package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Global tracer for the application
	Tracer trace.Tracer

	// Global meter for custom metrics
	Meter metric.Meter

	// Custom metrics
	ChatsRouted     metric.Int64Counter
	TasksExecuted   metric.Int64Counter
	SessionsCreated metric.Int64Counter
	RoutingLatency  metric.Float64Histogram
)

// InitTelemetry initializes OpenTelemetry tracing and metrics. The returned
// function flushes and shuts down the trace provider.
func InitTelemetry(ctx context.Context, serviceName, otelEndpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
			attribute.String("component", "orchestration"),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	Tracer = otel.Tracer(serviceName)
	Meter = otel.Meter(serviceName)

	if err := initMetrics(); err != nil {
		return nil, err
	}

	log.Printf("[Telemetry] Initialized with endpoint %s", otelEndpoint)

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return traceProvider.Shutdown(shutdownCtx)
	}, nil
}

func initMetrics() error {
	var err error

	ChatsRouted, err = Meter.Int64Counter(
		"podplay.chats.routed",
		metric.WithDescription("Chat messages routed to agent variants"),
	)
	if err != nil {
		return err
	}

	TasksExecuted, err = Meter.Int64Counter(
		"podplay.tasks.executed",
		metric.WithDescription("Computer-use tasks executed"),
	)
	if err != nil {
		return err
	}

	SessionsCreated, err = Meter.Int64Counter(
		"podplay.sessions.created",
		metric.WithDescription("Sandbox sessions created"),
	)
	if err != nil {
		return err
	}

	RoutingLatency, err = Meter.Float64Histogram(
		"podplay.routing.latency",
		metric.WithDescription("Time spent in keyword routing"),
	)
	return err
}
