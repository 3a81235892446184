package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "nexuspm"

// StartRunSpan starts a span covering one pipeline execution.
func StartRunSpan(ctx context.Context, projectID, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("run.id", runID),
		),
	)
}

// StartStageSpan starts a span for a single pipeline stage within a run.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "stage."+stage,
		trace.WithAttributes(attribute.String("stage", stage)),
	)
}

// StartExecuteSpan starts a span for applying approved diffs to the tracker.
func StartExecuteSpan(ctx context.Context, runID, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("execute.mode", mode),
		),
	)
}
