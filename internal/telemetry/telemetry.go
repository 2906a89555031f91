// Package telemetry provides OpenTelemetry-based metrics for the mcpml server.
package telemetry

import (
	"context"
	"fmt"
	"time"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ToolCallOutcome describes how a tool call ended.
type ToolCallOutcome string

const (
	ToolCallOutcomeSuccess ToolCallOutcome = "success"
	ToolCallOutcomeError   ToolCallOutcome = "error"
)

// Providers holds the OpenTelemetry providers used by the server.
// A disabled Providers carries no state and all accessors are safe to call.
type Providers struct {
	serviceName   string
	enabled       bool
	MeterProvider *sdkmetric.MeterProvider
	Meter         metric.Meter
}

// NewProviders initializes the OTel metric pipeline with the Prometheus
// exporter. When enabled is false, a disabled Providers is returned and no
// pipeline is set up.
func NewProviders(serviceName string, enabled bool) (*Providers, error) {
	p := &Providers{serviceName: serviceName, enabled: enabled}
	if !enabled {
		return p, nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	p.Meter = p.MeterProvider.Meter(serviceName)
	return p, nil
}

// IsEnabled returns true if telemetry is enabled.
func (p *Providers) IsEnabled() bool { return p != nil && p.enabled }

// ServiceName returns the service name used for instrumentation.
func (p *Providers) ServiceName() string { return p.serviceName }

// Shutdown flushes and stops the metric pipeline.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.MeterProvider == nil {
		return nil
	}
	return p.MeterProvider.Shutdown(ctx)
}

// CustomMetrics records mcpml-specific measurements.
// The rest of the code uses this interface without checking whether
// metrics are enabled: when they are not, the no-op implementation
// simply does nothing.
type CustomMetrics interface {
	// RecordToolCall records a single tool invocation with its outcome and duration.
	RecordToolCall(ctx context.Context, tool, kind string, outcome ToolCallOutcome, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordToolCall(context.Context, string, string, ToolCallOutcome, time.Duration) {}

// NewNoopCustomMetrics returns a CustomMetrics implementation that discards
// all measurements.
func NewNoopCustomMetrics() CustomMetrics { return noopMetrics{} }
