package platformtelemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clarioclaims/engine/internal/platformlog"
)

func TestNewRequiresServiceName(t *testing.T) {
	_, err := New(context.Background(), Config{}, platformlog.Noop())
	require.Error(t, err)
}

func TestDisabledProviderIsUsable(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "claims-engine"}, platformlog.Noop())
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()), "shutdown must be idempotent")
}

func TestStdoutExporterEmitsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	p, err := New(ctx, Config{ServiceName: "claims-engine", StdoutWriter: &buf}, platformlog.Noop())
	require.NoError(t, err)
	require.True(t, p.Enabled())

	tracer := otel.Tracer("platformtelemetry_test")
	_, span := tracer.Start(ctx, "test.operation")
	span.SetAttributes(attribute.String("seller", "seller-1"))
	span.End()

	require.NoError(t, p.ForceFlush(ctx))
	assert.Contains(t, buf.String(), "test.operation")
	assert.Contains(t, buf.String(), "seller-1")

	require.NoError(t, p.Shutdown(ctx))
}

func TestFromEnvReadsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	cfg := FromEnv("claims-engine")
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Nil(t, cfg.StdoutWriter)
}

func TestFromEnvStdoutFallback(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("CLAIMS_TRACE_STDOUT", "true")
	cfg := FromEnv("claims-engine")
	assert.NotNil(t, cfg.StdoutWriter)
}

func TestInstrumentsRecordWithoutMeterProvider(t *testing.T) {
	// No meter provider installed: the otel no-op implementation must make
	// every recording safe.
	inst := NewInstruments("claims-engine-test")
	ctx := context.Background()

	require.NoError(t, inst.AddCounter(ctx, "sync_tasks_total", 1,
		metric.WithAttributes(attribute.String("status", "completed"))))
	require.NoError(t, inst.AddCounter(ctx, "sync_tasks_total", 2))
	require.NoError(t, inst.RecordHistogram(ctx, "throttle_attempt_duration_ms", 12.5))

	// Instruments are cached after first use.
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	assert.Len(t, inst.counters, 1)
	assert.Len(t, inst.histograms, 1)
}
