package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace exporters accepted in OTEL_TRACES_EXPORTER.
const (
	TracesExporterOTLP   = "otlp"
	TracesExporterStdout = "stdout"
)

// stdoutTraceWriter is where the stdout exporter writes. Spans go to stderr so they do not
// interleave with ranking tables on stdout.
var stdoutTraceWriter io.Writer = os.Stderr

// newSpanExporter returns the exporter named by OTEL_TRACES_EXPORTER, or nil for unknown names.
// The OTLP exporter reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from the environment.
func newSpanExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case TracesExporterOTLP:
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP HTTP trace exporter: %w", err)
		}

		return exp, nil
	case TracesExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stdoutTraceWriter), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}

		return exp, nil
	default:
		//nolint:nilnil // unknown exporter: tracing disabled
		return nil, nil
	}
}
