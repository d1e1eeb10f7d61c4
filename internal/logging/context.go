package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := ThreadIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("thread.id", id))
	}
	if p := ProjectFromContext(ctx); p != "" {
		fields = append(fields, zap.String("project", p))
	}
	if n := NodeFromContext(ctx); n != "" {
		fields = append(fields, zap.String("node", n))
	}
	return fields
}

type threadCtxKey struct{}
type projectCtxKey struct{}
type nodeCtxKey struct{}
type loggerCtxKey struct{}

// WithThreadID adds the run thread key to context.
func WithThreadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, threadCtxKey{}, id)
}

// ThreadIDFromContext returns the thread key, or "".
func ThreadIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(threadCtxKey{}).(string)
	return s
}

// WithProject adds the current project name to context.
func WithProject(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, projectCtxKey{}, name)
}

// ProjectFromContext returns the project name, or "".
func ProjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(projectCtxKey{}).(string)
	return s
}

// WithNode adds the executing graph node to context.
func WithNode(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, nodeCtxKey{}, node)
}

// NodeFromContext returns the graph node, or "".
func NodeFromContext(ctx context.Context) string {
	s, _ := ctx.Value(nodeCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
