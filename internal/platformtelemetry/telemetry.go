// Package platformtelemetry owns the OpenTelemetry pipeline for the claims
// engine: one Provider wires the tracer provider, exporter, and propagator
// at startup and tears them down on shutdown. Packages that emit spans
// (provider/throttle, sync) only ever touch the global otel API; this
// package is the single place the SDK is configured.
package platformtelemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/clarioclaims/engine/internal/platformlog"
)

// Config selects the export path. Exactly one of Endpoint / StdoutWriter is
// normally set; when both are empty the Provider is disabled and the global
// tracer stays a no-op, which is the right default for short CLI
// invocations.
type Config struct {
	ServiceName string

	// Endpoint is an OTLP/gRPC collector address (host:port). Takes
	// precedence over StdoutWriter when both are set.
	Endpoint string

	// StdoutWriter receives pretty-printed spans for local development.
	StdoutWriter io.Writer
}

// FromEnv builds a Config from the environment: OTEL_EXPORTER_OTLP_ENDPOINT
// selects the collector, CLAIMS_TRACE_STDOUT=true falls back to stdout
// spans when no collector is configured.
func FromEnv(serviceName string) Config {
	cfg := Config{
		ServiceName: serviceName,
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.Endpoint == "" && os.Getenv("CLAIMS_TRACE_STDOUT") == "true" {
		cfg.StdoutWriter = os.Stdout
	}
	return cfg
}

// Provider manages the trace pipeline's lifecycle. Shutdown is idempotent
// and flushes pending spans.
type Provider struct {
	traceProvider *sdktrace.TracerProvider
	logger        platformlog.Logger
	shutdownOnce  sync.Once
}

// New configures the global OpenTelemetry SDK from cfg. A disabled config
// (no endpoint, no writer) returns a usable Provider whose Shutdown is a
// no-op; callers never need to branch on whether telemetry is on.
func New(ctx context.Context, cfg Config, logger platformlog.Logger) (*Provider, error) {
	if logger == nil {
		logger = platformlog.Noop()
	}
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("telemetry service name cannot be empty")
	}

	var exporter sdktrace.SpanExporter
	switch {
	case cfg.Endpoint != "":
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP trace exporter for %s: %w", cfg.Endpoint, err)
		}
		exporter = exp
	case cfg.StdoutWriter != nil:
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(cfg.StdoutWriter),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		exporter = exp
	default:
		logger.Debug("telemetry disabled, no exporter configured", nil)
		return &Provider{logger: logger}, nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("telemetry provider configured", map[string]interface{}{
		"service":  cfg.ServiceName,
		"endpoint": cfg.Endpoint,
		"exporter": exporterName(cfg),
	})

	return &Provider{traceProvider: tp, logger: logger}, nil
}

func exporterName(cfg Config) string {
	if cfg.Endpoint != "" {
		return "otlp/grpc"
	}
	return "stdout"
}

// Enabled reports whether spans are actually being exported.
func (p *Provider) Enabled() bool { return p.traceProvider != nil }

// Shutdown flushes and stops the trace pipeline. Safe to call more than
// once; only the first call does work.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		if p.traceProvider == nil {
			return
		}
		if shutdownErr := p.traceProvider.Shutdown(ctx); shutdownErr != nil {
			p.logger.Error("telemetry shutdown failed", map[string]interface{}{"error": shutdownErr.Error()})
			err = fmt.Errorf("shutdown trace provider: %w", shutdownErr)
			return
		}
		p.logger.Debug("telemetry provider shut down", nil)
	})
	return err
}

// ForceFlush exports all spans buffered so far without shutting the
// pipeline down, used by short-lived commands right before exit.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.traceProvider == nil {
		return nil
	}
	return p.traceProvider.ForceFlush(ctx)
}
