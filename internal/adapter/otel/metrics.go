package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "nexuspm"

// Metrics holds all pipeline metric instruments.
type Metrics struct {
	RunsTriggered    metric.Int64Counter
	RunsCompleted    metric.Int64Counter
	RunsFailed       metric.Int64Counter
	ProposalsDrafted metric.Int64Counter
	OracleFallbacks  metric.Int64Counter
	ExecutorChanges  metric.Int64Counter
	StageDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates all metric instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RunsTriggered, err = meter.Int64Counter("nexuspm.runs.triggered",
		metric.WithDescription("Number of runs triggered"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("nexuspm.runs.completed",
		metric.WithDescription("Number of runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("nexuspm.runs.failed",
		metric.WithDescription("Number of runs failed"))
	if err != nil {
		return nil, err
	}

	m.ProposalsDrafted, err = meter.Int64Counter("nexuspm.proposals.drafted",
		metric.WithDescription("Number of proposals drafted, by source"))
	if err != nil {
		return nil, err
	}

	m.OracleFallbacks, err = meter.Int64Counter("nexuspm.oracle.fallbacks",
		metric.WithDescription("Number of fusions that fell back to the heuristic"))
	if err != nil {
		return nil, err
	}

	m.ExecutorChanges, err = meter.Int64Counter("nexuspm.executor.changes",
		metric.WithDescription("Number of tracker changes applied, by outcome"))
	if err != nil {
		return nil, err
	}

	m.StageDuration, err = meter.Float64Histogram("nexuspm.stage.duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RunTriggered(ctx context.Context) {
	m.RunsTriggered.Add(ctx, 1)
}

// RunFinished counts a run reaching completed or failed.
func (m *Metrics) RunFinished(ctx context.Context, failed bool) {
	if failed {
		m.RunsFailed.Add(ctx, 1)
		return
	}
	m.RunsCompleted.Add(ctx, 1)
}

func (m *Metrics) ProposalsFrom(ctx context.Context, source string, n int) {
	m.ProposalsDrafted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) OracleFallback(ctx context.Context, reason string) {
	m.OracleFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// ExecutorChange counts one applied diff; outcome is created, updated,
// closed or failed.
func (m *Metrics) ExecutorChange(ctx context.Context, outcome string) {
	m.ExecutorChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) StageDone(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}
