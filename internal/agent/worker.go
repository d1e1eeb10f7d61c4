// Package agent implements the graph nodes that talk to the model backend:
// one parameterized Worker for the four roles and the routing Supervisor.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/logging"
	"github.com/fyrsmithlabs/agentgraph/internal/prompt"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// NoContextMessage is the reply of a worker run without a selected project.
const NoContextMessage = "Error: No project context available. Please select a project first."

// Option configures a Worker or a Supervisor.
type Option func(*options)

type options struct {
	logger *logging.Logger
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Worker runs one role against the backend.
type Worker struct {
	role    prompt.Role
	backend llm.Backend
	toolset []tools.Descriptor
	logger  *logging.Logger
}

// NewWorker creates a worker for role. The role's tools are resolved against
// registry once; a nil registry offers no tools.
func NewWorker(role prompt.Role, backend llm.Backend, registry *tools.Registry, opts ...Option) *Worker {
	o := buildOptions(opts)
	var toolset []tools.Descriptor
	if registry != nil {
		toolset = registry.Descriptors(role.Tools...)
	}
	return &Worker{
		role:    role,
		backend: backend,
		toolset: toolset,
		logger:  o.logger.Named(role.Name()),
	}
}

// NewWorkers creates one worker per role in roster order.
func NewWorkers(backend llm.Backend, registry *tools.Registry, opts ...Option) []*Worker {
	out := make([]*Worker, 0, len(prompt.Roles))
	for _, role := range prompt.Roles {
		out = append(out, NewWorker(role, backend, registry, opts...))
	}
	return out
}

// Name returns the node name of the worker.
func (w *Worker) Name() string {
	return w.role.Name()
}

// Agent returns the routing label served by the worker.
func (w *Worker) Agent() state.Agent {
	return w.role.Agent
}

// Tools returns the descriptors offered to the backend.
func (w *Worker) Tools() []tools.Descriptor {
	return w.toolset
}

// Run invokes the backend once and returns the reply with NextAgent cleared.
// Without a project context it replies with NoContextMessage and makes no
// backend call.
func (w *Worker) Run(ctx context.Context, s *state.RunState) (state.Update, error) {
	pc := s.Context()
	if pc == nil || pc.Info == nil {
		w.logger.Warn(ctx, "no project context, skipping model call")
		return state.Reply(state.Assistant(NoContextMessage)), nil
	}

	messages := prompt.Build(w.role, pc, s.Task, s.Messages)
	w.logger.Debug(ctx, "invoking model",
		zap.Int("messages", len(messages)),
		zap.Int("tools", len(w.toolset)))

	start := time.Now()
	reply, err := w.backend.Invoke(ctx, messages, w.toolset)
	if err != nil {
		return state.Update{}, fmt.Errorf("%s: invoking model: %w", w.Name(), err)
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.Role == "" {
		reply.Role = state.RoleAssistant
	}

	w.logger.Debug(ctx, "model replied",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("tool_calls", len(reply.ToolCalls)))
	return state.Reply(reply), nil
}
