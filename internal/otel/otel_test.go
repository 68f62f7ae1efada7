package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestEnsureHTTPEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"collector:4318", "http://collector:4318/v1/traces"},
		{"https://collector:4318", "https://collector:4318/v1/traces"},
		{"http://collector:4318/", "http://collector:4318/v1/traces"},
		{"http://collector:4318/v1/traces", "http://collector:4318/v1/traces"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ensureHTTPEndpoint("traces", tt.endpoint))
	}
}

func TestSetupOTelSDKNil(t *testing.T) {
	shutdown, err := SetupOTelSDK(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupOTelSDK(t *testing.T) {
	ctx := context.Background()
	shutdown, err := SetupOTelSDK(ctx, &OpenTelemetryConfig{
		ServiceName: "relaycursor-test",
		Traces:      &OpenTelemetryTypeConfig{Exporter: ExporterStdout},
		Metrics:     &OpenTelemetryTypeConfig{Exporter: ExporterStdout},
	})
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	assert.NoError(t, shutdown(ctx))
}

func TestOTLPExporters(t *testing.T) {
	ctx := context.Background()
	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			c := &OpenTelemetryTypeConfig{Exporter: ExporterOTLP, Protocol: protocol, Endpoint: "localhost:4317"}

			tp, err := newTraceProvider(ctx, c, resource.Default())
			require.NoError(t, err)
			mp, err := newMeterProvider(ctx, c, resource.Default())
			require.NoError(t, err)

			// Nothing listens on the endpoint; only stop the providers.
			stopped, cancel := context.WithCancel(ctx)
			cancel()
			_ = tp.Shutdown(stopped)
			_ = mp.Shutdown(stopped)
		})
	}
}

func TestSetupOTelSDKUnsupportedExporter(t *testing.T) {
	_, err := SetupOTelSDK(context.Background(), &OpenTelemetryConfig{
		Traces: &OpenTelemetryTypeConfig{Exporter: "zipkin"},
	})
	assert.ErrorContains(t, err, "unsupported trace exporter")
}
