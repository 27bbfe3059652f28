// Tracing instrumentation for the orchestrator.
package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openclaw/taskweave/internal/executor"
)

const tracerName = "github.com/openclaw/taskweave/internal/orchestrator"

// startRunSpan starts the span covering one workflow run. Node and gate
// spans from the executor nest under it through the returned context.
func (o *Orchestrator) startRunSpan(ctx context.Context, rc *RunContext) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "workflow.run")
	span.SetAttributes(
		attribute.String("run.id", rc.RunID),
		attribute.String("run.goal", rc.Goal),
	)
	return ctx, span
}

// endRunSpan ends the run span with the terminal state.
func (o *Orchestrator) endRunSpan(span trace.Span, state RunState, root executor.PhaseResult) {
	span.SetAttributes(attribute.String("run.state", string(state)))
	if state == StateFailed && len(root.Diagnostics) > 0 {
		span.SetAttributes(attribute.String("run.diagnostic", root.Diagnostics[len(root.Diagnostics)-1]))
	}
	span.End()
}
