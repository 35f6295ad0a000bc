// Package telemetry configures OpenTelemetry tracing for the pipeline spans.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/conneroisu/assetc/internal/logging"
	"github.com/conneroisu/assetc/internal/version"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// TracerConfig controls InitTracer.
type TracerConfig struct {
	ServiceName string
	// Output receives the exported spans. Nil means stderr.
	Output      io.Writer
	PrettyPrint bool
	// Sync exports every span as it ends instead of batching.
	Sync bool
}

// InitTracer installs a global tracer provider that writes spans to
// cfg.Output.
func InitTracer(cfg TracerConfig, logger logging.Logger) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "assetc"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(cfg.Output)}
	if cfg.PrettyPrint {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version.GetVersion()),
		),
	)
	if err != nil {
		return nil, err
	}

	spanExport := sdktrace.WithBatcher(exporter)
	if cfg.Sync {
		spanExport = sdktrace.WithSyncer(exporter)
	}
	tp := sdktrace.NewTracerProvider(spanExport, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	logger.Info(context.Background(), "OpenTelemetry initialized", "service", cfg.ServiceName)
	return tp.Shutdown, nil
}
