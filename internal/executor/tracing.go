// Tracing instrumentation for the executor.
package executor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openclaw/taskweave/internal/tasktree"
)

const tracerName = "github.com/openclaw/taskweave/internal/executor"

// startNodeSpan starts a span for one node execution.
func (e *Executor) startNodeSpan(ctx context.Context, n *tasktree.Node) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "node."+string(n.Kind))
	span.SetAttributes(
		attribute.String("node.id", n.ID),
		attribute.String("node.kind", string(n.Kind)),
	)
	return ctx, span
}

// endNodeSpan ends the node span with result info.
func (e *Executor) endNodeSpan(span trace.Span, res PhaseResult) {
	span.SetAttributes(attribute.String("node.status", string(res.Status)))
	if res.Status == StatusFailed && len(res.Diagnostics) > 0 {
		span.SetAttributes(attribute.String("node.diagnostic", res.Diagnostics[len(res.Diagnostics)-1]))
	}
	span.End()
}

// startGateSpan starts a span for a quality-gate check.
func (e *Executor) startGateSpan(ctx context.Context, gateName, nodeID string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "gate."+gateName)
	span.SetAttributes(
		attribute.String("gate.name", gateName),
		attribute.String("gate.node", nodeID),
	)
	return ctx, span
}

// endGateSpan ends the gate span with the verdict.
func (e *Executor) endGateSpan(span trace.Span, passed bool) {
	span.SetAttributes(attribute.Bool("gate.passed", passed))
	span.End()
}
