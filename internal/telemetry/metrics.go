package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type otelMetrics struct {
	toolCalls        metric.Int64Counter
	toolCallDuration metric.Float64Histogram
}

// NewOtelCustomMetrics creates the OTel-backed CustomMetrics implementation.
func NewOtelCustomMetrics(meter metric.Meter) (CustomMetrics, error) {
	toolCalls, err := meter.Int64Counter(
		"mcpml.tool.calls",
		metric.WithDescription("Total number of tool invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}

	toolCallDuration, err := meter.Float64Histogram(
		"mcpml.tool.call.duration",
		metric.WithDescription("Duration of tool invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call duration histogram: %w", err)
	}

	return &otelMetrics{toolCalls: toolCalls, toolCallDuration: toolCallDuration}, nil
}

func (m *otelMetrics) RecordToolCall(
	ctx context.Context, tool, kind string, outcome ToolCallOutcome, d time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("kind", kind),
		attribute.String("outcome", string(outcome)),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolCallDuration.Record(ctx, d.Seconds(), attrs)
}
