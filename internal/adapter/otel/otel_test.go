package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Strob0t/NexusPM/internal/config"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", agg)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsWithMeter(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsWithMeter: %v", err)
	}

	ctx := context.Background()
	m.RunTriggered(ctx)
	m.RunTriggered(ctx)
	m.RunFinished(ctx, false)
	m.RunFinished(ctx, true)
	m.ProposalsFrom(ctx, "heuristic", 3)
	m.OracleFallback(ctx, "unavailable")
	m.ExecutorChange(ctx, "created")
	m.ExecutorChange(ctx, "failed")
	m.StageDone(ctx, "ingest", 250*time.Millisecond)

	got := collect(t, reader)
	checks := map[string]int64{
		"nexuspm.runs.triggered":    2,
		"nexuspm.runs.completed":    1,
		"nexuspm.runs.failed":       1,
		"nexuspm.proposals.drafted": 3,
		"nexuspm.oracle.fallbacks":  1,
		"nexuspm.executor.changes":  2,
	}
	for name, want := range checks {
		agg, ok := got[name]
		if !ok {
			t.Errorf("metric %s not collected", name)
			continue
		}
		if v := sumOf(t, agg); v != want {
			t.Errorf("%s = %d, want %d", name, v, want)
		}
	}

	hist, ok := got["nexuspm.stage.duration_seconds"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("expected one stage duration sample, got %+v", got["nexuspm.stage.duration_seconds"])
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTEL{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracedFilter(t *testing.T) {
	tests := map[string]bool{
		"/health":                 false,
		"/ws/proj-1":              false,
		"/api/v1/projects":        true,
		"/api/v1/projects/p/runs": true,
	}
	for path, want := range tests {
		r := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		if got := traced(r); got != want {
			t.Errorf("traced(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestHTTPMiddlewarePassesThrough(t *testing.T) {
	h := HTTPMiddleware("nexuspm")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", http.NoBody))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
