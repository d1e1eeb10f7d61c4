package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

const (
	spanInvoke      = "llm.invoke"
	metricLatency   = "agentgraph.llm.duration"
	metricFailures  = "agentgraph.llm.errors"
	attrMessages    = "llm.messages"
	attrTools       = "llm.tools"
	attrToolCalls   = "llm.tool_calls"
	attrUnreachable = "llm.unreachable"
)

type instrumented struct {
	next     Backend
	tracer   trace.Tracer
	latency  metric.Float64Histogram
	failures metric.Int64Counter
}

// Instrument wraps b with an llm.invoke span and latency/error instruments.
// Instrument creation failures leave that instrument unset.
func Instrument(b Backend, tracer trace.Tracer, meter metric.Meter) Backend {
	in := &instrumented{next: b, tracer: tracer}
	if meter != nil {
		in.latency, _ = meter.Float64Histogram(metricLatency,
			metric.WithDescription("Model backend call latency"),
			metric.WithUnit("s"))
		in.failures, _ = meter.Int64Counter(metricFailures,
			metric.WithDescription("Failed model backend calls"))
	}
	return in
}

func (in *instrumented) Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error) {
	if in.tracer != nil {
		var span trace.Span
		ctx, span = in.tracer.Start(ctx, spanInvoke, trace.WithAttributes(
			attribute.Int(attrMessages, len(messages)),
			attribute.Int(attrTools, len(toolset)),
		))
		defer span.End()
	}

	start := time.Now()
	msg, err := in.next.Invoke(ctx, messages, toolset)
	elapsed := time.Since(start).Seconds()

	span := trace.SpanFromContext(ctx)
	unreachable := errors.Is(err, ErrBackendUnavailable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool(attrUnreachable, unreachable))
		if in.failures != nil {
			in.failures.Add(ctx, 1, metric.WithAttributes(attribute.Bool(attrUnreachable, unreachable)))
		}
	} else {
		span.SetAttributes(attribute.Int(attrToolCalls, len(msg.ToolCalls)))
	}
	if in.latency != nil {
		in.latency.Record(ctx, elapsed, metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	return msg, err
}
