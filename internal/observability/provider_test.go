package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/promptrank/internal/config"
)

func TestNewTracerProvider(t *testing.T) {
	var buf bytes.Buffer

	prev := stdoutTraceWriter
	stdoutTraceWriter = &buf
	t.Cleanup(func() { stdoutTraceWriter = prev })

	t.Run("disabled", func(t *testing.T) {
		tp, err := NewTracerProvider(&config.Config{})
		require.NoError(t, err)
		assert.Nil(t, tp)
	})

	t.Run("unknown exporter", func(t *testing.T) {
		tp, err := NewTracerProvider(&config.Config{OtelTracesExporter: "zipkin"})
		require.NoError(t, err)
		assert.Nil(t, tp)
	})

	t.Run("stdout exporter", func(t *testing.T) {
		tp, err := NewTracerProvider(&config.Config{OtelTracesExporter: TracesExporterStdout, OtelTracesSampler: "always_on"})
		require.NoError(t, err)
		require.NotNil(t, tp)

		_, span := tp.Tracer("test").Start(context.Background(), "RankingService.Rank")
		span.End()

		require.NoError(t, ShutdownTracerProvider(context.Background(), tp))
		assert.Contains(t, buf.String(), "RankingService.Rank")
	})
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	for _, exporter := range []string{"", "prometheus"} {
		mp, err := NewMeterProvider(&config.Config{OtelMetricsExporter: exporter})
		require.NoError(t, err)
		assert.Nil(t, mp, "exporter %q", exporter)
	}

	require.NoError(t, ShutdownMeterProvider(context.Background(), nil))
	require.NoError(t, ShutdownTracerProvider(context.Background(), nil))
}

func TestNewResource(t *testing.T) {
	res, err := newResource()
	require.NoError(t, err, "service attributes must merge with the SDK default resource")

	name, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, serviceName, name.AsString())
	assert.NotEmpty(t, res.SchemaURL())
}
