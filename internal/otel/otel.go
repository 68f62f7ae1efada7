// Package otel installs the global OpenTelemetry trace and meter providers.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

type OpenTelemetryTypeConfig struct {
	Exporter string
	Protocol string
	Endpoint string
}

// OpenTelemetryConfig enables each signal whose config is non-nil.
type OpenTelemetryConfig struct {
	ServiceName string
	Traces      *OpenTelemetryTypeConfig
	Metrics     *OpenTelemetryTypeConfig
}

// SetupOTelSDK installs the configured providers globally. Call shutdown
// once to flush and stop them. A nil config installs nothing.
func SetupOTelSDK(ctx context.Context, cfg *OpenTelemetryConfig) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}
	if cfg == nil {
		return shutdown, nil
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	if cfg.Traces != nil {
		tracerProvider, err := newTraceProvider(ctx, cfg.Traces, res)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otel.SetTracerProvider(tracerProvider)
	}

	if cfg.Metrics != nil {
		meterProvider, err := newMeterProvider(ctx, cfg.Metrics, res)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)
	}

	return shutdown, nil
}
