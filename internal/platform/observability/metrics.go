package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

const meterName = "github.com/techbantu/GharSe-sub003/internal/platform/observability"

// AssistantMetrics records resolution outcomes per conversational turn.
type AssistantMetrics struct {
	turns   metric.Int64Counter
	actions metric.Int64Histogram
}

// NewAssistantMetrics registers the assistant instruments on provider, or on the global provider when nil.
func NewAssistantMetrics(provider metric.MeterProvider) (*AssistantMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	turns, err := meter.Int64Counter("assistant.turns",
		metric.WithDescription("Resolved assistant turns by evidence layer"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: register assistant.turns: %w", err)
	}
	actions, err := meter.Int64Histogram("assistant.actions",
		metric.WithDescription("Actions synthesized per assistant turn"),
		metric.WithUnit("{action}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 8),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: register assistant.actions: %w", err)
	}
	return &AssistantMetrics{turns: turns, actions: actions}, nil
}

// RecordTurn adds one turn observation.
func (m *AssistantMetrics) RecordTurn(ctx context.Context, layer domain.EvidenceLayer, degraded bool, actions int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("layer", string(layer)),
		attribute.Bool("degraded", degraded),
	)
	m.turns.Add(ctx, 1, attrs)
	m.actions.Record(ctx, int64(actions), attrs)
}
