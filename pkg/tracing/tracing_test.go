package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig("product-store"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestInit_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	cfg := DefaultConfig("product-store")
	cfg.Enabled = true
	cfg.OTLPEndpoint = "127.0.0.1:0"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
	_ = shutdown(context.Background())
}

func TestInstall_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	exp := tracetest.NewInMemoryExporter()
	shutdown, err := install(context.Background(), DefaultConfig("product-store"), exp)
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "product.create")
	span.End()

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "product.create", spans[0].Name)
	require.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, Sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased")
}
