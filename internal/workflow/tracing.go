// Tracing instrumentation for the workflow driver.
package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vinayprograms/codeagent/internal/workflow"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startRunSpan starts the span covering one workflow run.
func (d *Driver) startRunSpan(ctx context.Context, runID string, ev Event) (context.Context, trace.Span) {
	ctx, span := d.tracer.Start(ctx, "workflow."+FunctionName)
	span.SetAttributes(
		attribute.String("workflow.run_id", runID),
		attribute.String("workflow.project_id", ev.ProjectID),
	)
	return ctx, span
}

// endRunSpan ends the run span with the outcome.
func (d *Driver) endRunSpan(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String("workflow.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// traced runs fn inside a span for a pipeline step.
func (d *Driver) traced(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	ctx, span := d.tracer.Start(ctx, "step."+step)
	span.SetAttributes(attribute.String("step.name", step))
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}
