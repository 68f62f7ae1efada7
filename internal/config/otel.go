package config

import (
	"github.com/hookdeck/relaycursor/internal/otel"
)

type OpenTelemetryTypeConfig struct {
	Exporter string `yaml:"exporter" env:"EXPORTER" validate:"omitempty,oneof=none otlp stdout"`
	Protocol string `yaml:"protocol" env:"PROTOCOL" validate:"omitempty,oneof=grpc http"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// OpenTelemetryConfig is off unless ServiceName is set.
type OpenTelemetryConfig struct {
	ServiceName string                  `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Traces      OpenTelemetryTypeConfig `yaml:"traces" envPrefix:"OTEL_TRACES_"`
	Metrics     OpenTelemetryTypeConfig `yaml:"metrics" envPrefix:"OTEL_METRICS_"`
}

func (c OpenTelemetryTypeConfig) toOTELConfig() *otel.OpenTelemetryTypeConfig {
	if c.Exporter == "" || c.Exporter == "none" {
		return nil
	}
	protocol := c.Protocol
	if protocol == "" {
		protocol = otel.ProtocolGRPC
	}
	return &otel.OpenTelemetryTypeConfig{
		Exporter: c.Exporter,
		Protocol: protocol,
		Endpoint: c.Endpoint,
	}
}

func (c *OpenTelemetryConfig) ToConfig() *otel.OpenTelemetryConfig {
	if c == nil || c.ServiceName == "" {
		return nil
	}
	return &otel.OpenTelemetryConfig{
		ServiceName: c.ServiceName,
		Traces:      c.Traces.toOTELConfig(),
		Metrics:     c.Metrics.toOTELConfig(),
	}
}
