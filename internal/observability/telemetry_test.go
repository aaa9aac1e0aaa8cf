package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTelemetryDisabled(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := InitTelemetry(context.Background(), Options{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

// keepExporter не очищает спаны при остановке провайдера
type keepExporter struct {
	*tracetest.InMemoryExporter
}

func (keepExporter) Shutdown(context.Context) error { return nil }

func TestInitTelemetryExportsSpans(t *testing.T) {
	exp := keepExporter{tracetest.NewInMemoryExporter()}
	shutdown, err := InitTelemetry(context.Background(), Options{
		Enabled:     true,
		ServiceName: "voxeld-test",
		Exporter:    exp,
	})
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "engine.tick")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.tick", spans[0].Name)
}
