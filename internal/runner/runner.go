// Package runner executes one task against a project: it selects the
// project, seeds the run state and drives the task graph on the project's
// session thread. The CLI and the HTTP API share it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/graph"
	"github.com/fyrsmithlabs/agentgraph/internal/logging"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

var (
	// ErrNoProjects is returned when the registry is empty.
	ErrNoProjects = errors.New("no projects registered")

	// ErrEmptyTask is returned for a blank task.
	ErrEmptyTask = errors.New("task is required")
)

// Request describes one task.
type Request struct {
	Task string `json:"task"`
	// Project selects the project; unknown or empty selects the first one.
	Project string `json:"project,omitempty"`
	// ThreadID overrides the default "<project>_session" thread.
	ThreadID string `json:"thread_id,omitempty"`
}

// Result is the outcome of a finished run.
type Result struct {
	ThreadID string
	Project  string
	// Fallback is true when the requested project was unknown.
	Fallback bool
	// Routes lists the supervisor decisions in order.
	Routes []state.Agent
	State  *state.RunState
}

// RoutedTo returns the last worker the supervisor dispatched to, or Unset
// when the run ended without reaching a worker.
func (r *Result) RoutedTo() state.Agent {
	if r == nil {
		return state.Unset
	}
	for i := len(r.Routes) - 1; i >= 0; i-- {
		if a, ok := graph.Route(r.Routes[i]); ok {
			return a
		}
	}
	return state.Unset
}

// Reply returns the last message of the run, if any.
func (r *Result) Reply() (state.Message, bool) {
	if r == nil || r.State == nil || len(r.State.Messages) == 0 {
		return state.Message{}, false
	}
	return r.State.Messages[len(r.State.Messages)-1], true
}

// Runner runs tasks through a graph.
type Runner struct {
	registry *project.Registry
	graph    *graph.Graph
	logger   *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runner.
func New(registry *project.Registry, g *graph.Graph, opts ...Option) *Runner {
	r := &Runner{registry: registry, graph: g, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ThreadID returns the default thread of a project.
func ThreadID(projectName string) string {
	return projectName + "_session"
}

// SelectProject returns name when registered, otherwise the first project.
// ok is false when name was given but not honored.
func (r *Runner) SelectProject(name string) (selected string, ok bool, err error) {
	names := r.registry.Names()
	if len(names) == 0 {
		return "", false, ErrNoProjects
	}
	for _, n := range names {
		if n == name {
			return n, true, nil
		}
	}
	return names[0], name == "", nil
}

// Run executes req and returns the final state.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	task := strings.TrimSpace(req.Task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	name, honored, err := r.SelectProject(req.Project)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithProject(ctx, name)
	if !honored {
		r.logger.Warn(ctx, "unknown project requested, using default",
			zap.String("requested", req.Project))
	}

	pc, err := r.registry.LoadContext(name)
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", name, err)
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = ThreadID(name)
	}

	in := state.Input{
		Task:           task,
		CurrentProject: name,
		Projects:       r.registry.Snapshot(),
		ProjectContext: pc,
		Messages:       []state.Message{state.Human(task)},
	}
	r.logger.Info(ctx, "processing task", zap.String("thread_id", threadID))

	var routes []state.Agent
	ctx = graph.WithObserver(ctx, func(ev graph.Event) {
		if ev.Node == graph.SupervisorNode {
			routes = append(routes, ev.Next)
		}
	})
	final, err := r.graph.Run(ctx, threadID, in)
	if err != nil {
		return nil, err
	}
	return &Result{ThreadID: threadID, Project: name, Fallback: !honored, Routes: routes, State: final}, nil
}
