// Package graph drives one run through the supervisor and worker nodes.
//
// The supervisor is the entry point. Its NextAgent label selects at most one
// worker; an unset, end or unknown label terminates. After a worker the run
// ends (SingleHop) or returns to the supervisor (LoopBack) until it routes to
// end or the step limit is reached.
//
// Every node step is a load, run, apply, save cycle against the checkpoint
// store under a per-thread lock, so a failed node leaves the last saved state
// untouched and an interrupted run can be resumed.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/checkpoint"
	"github.com/fyrsmithlabs/agentgraph/internal/logging"
	"github.com/fyrsmithlabs/agentgraph/internal/metrics"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

const instrumentationName = "github.com/fyrsmithlabs/agentgraph/internal/graph"

// SupervisorNode is the name of the entry node.
const SupervisorNode = "supervisor"

// DefaultMaxSteps bounds a LoopBack run.
const DefaultMaxSteps = 8

var (
	// ErrStepLimit is returned when a LoopBack run exceeds its step budget.
	ErrStepLimit = errors.New("step limit reached")

	// ErrNoCheckpoint is returned by Resume for an unknown thread.
	ErrNoCheckpoint = errors.New("no checkpoint for thread")

	// ErrUnknownNode is returned when a checkpoint names a node the graph
	// does not have.
	ErrUnknownNode = errors.New("unknown node")
)

// Node is one step of a run.
type Node interface {
	Name() string
	Run(ctx context.Context, s *state.RunState) (state.Update, error)
}

// Worker is a node reachable by a routing label.
type Worker interface {
	Node
	Agent() state.Agent
}

// Event reports one executed node.
type Event struct {
	Node     string
	Step     int
	Messages []state.Message
	Next     state.Agent
	State    *state.RunState
}

type observerKey struct{}

// WithObserver returns a context whose runs also report every executed node
// to fn. fn is called on the goroutine driving the run.
func WithObserver(ctx context.Context, fn func(Event)) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

// Graph is the compiled task graph.
type Graph struct {
	supervisor Node
	workers    map[state.Agent]Worker
	nodes      map[string]Node

	store    checkpoint.Store
	locks    *checkpoint.KeyedLocker
	topology Topology
	maxSteps int

	tracer  trace.Tracer
	metrics *metrics.Metrics
	logger  *logging.Logger
	onEvent func(Event)
}

// Option configures a Graph.
type Option func(*Graph)

// WithTopology selects the wiring after a worker.
func WithTopology(t Topology) Option {
	return func(g *Graph) { g.topology = t }
}

// WithMaxSteps sets the LoopBack step budget. Values below 2 are ignored.
func WithMaxSteps(n int) Option {
	return func(g *Graph) {
		if n >= 2 {
			g.maxSteps = n
		}
	}
}

// WithLocker shares a locker between graphs using the same store.
func WithLocker(l *checkpoint.KeyedLocker) Option {
	return func(g *Graph) {
		if l != nil {
			g.locks = l
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(g *Graph) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// OnEvent registers a callback invoked after every node.
func OnEvent(fn func(Event)) Option {
	return func(g *Graph) { g.onEvent = fn }
}

// New compiles a graph. Worker labels must be distinct worker labels.
func New(supervisor Node, workers []Worker, store checkpoint.Store, opts ...Option) (*Graph, error) {
	if supervisor == nil {
		return nil, errors.New("supervisor node is required")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}

	g := &Graph{
		supervisor: supervisor,
		workers:    make(map[state.Agent]Worker, len(workers)),
		nodes:      map[string]Node{SupervisorNode: supervisor},
		store:      store,
		locks:      checkpoint.NewKeyedLocker(),
		topology:   SingleHop,
		maxSteps:   DefaultMaxSteps,
		tracer:     otel.Tracer(instrumentationName),
		logger:     logging.NewNop(),
	}
	for _, w := range workers {
		a := w.Agent()
		if !a.IsWorker() {
			return nil, fmt.Errorf("node %s: %q is not a worker label", w.Name(), a)
		}
		if _, dup := g.workers[a]; dup {
			return nil, fmt.Errorf("duplicate worker for %s", a)
		}
		if _, dup := g.nodes[w.Name()]; dup {
			return nil, fmt.Errorf("duplicate node name %s", w.Name())
		}
		g.workers[a] = w
		g.nodes[w.Name()] = w
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Topology returns the configured wiring.
func (g *Graph) Topology() Topology {
	return g.topology
}

// Nodes returns the node names, supervisor first, then workers in roster order.
func (g *Graph) Nodes() []string {
	out := []string{SupervisorNode}
	for _, a := range state.Workers {
		if w, ok := g.workers[a]; ok {
			out = append(out, w.Name())
		}
	}
	return out
}

// Route maps a routing label to the worker it dispatches to. Unset, End and
// anything unrecognized terminate the run.
func Route(next state.Agent) (state.Agent, bool) {
	switch next {
	case state.Architect, state.Developer, state.Reviewer, state.Tester:
		return next, true
	case state.Unset, state.End:
		return state.Unset, false
	default:
		return state.Unset, false
	}
}

// Run starts a run on threadID. The seed is merged over the thread's stored
// state, so messages accumulate across runs of the same thread.
func (g *Graph) Run(ctx context.Context, threadID string, in state.Input) (*state.RunState, error) {
	if threadID == "" {
		return nil, checkpoint.ErrInvalidThread
	}
	unlock, err := g.locks.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = logging.WithThreadID(ctx, threadID)
	if in.CurrentProject != "" {
		ctx = logging.WithProject(ctx, in.CurrentProject)
	}
	ctx, span := g.tracer.Start(ctx, "graph.run", trace.WithAttributes(
		attribute.String("thread.id", threadID),
		attribute.String("project", in.CurrentProject),
		attribute.String("topology", g.topology.String()),
	))
	defer span.End()

	base := &state.RunState{}
	cp, err := g.store.Load(ctx, threadID)
	switch {
	case err == nil:
		base = cp.State
	case errors.Is(err, checkpoint.ErrNotFound):
	default:
		return g.fail(ctx, span, fmt.Errorf("loading thread %s: %w", threadID, err))
	}

	seeded := base.Apply(in.Seed())
	if err := g.store.Save(ctx, &checkpoint.Checkpoint{ThreadID: threadID, State: seeded, Next: SupervisorNode}); err != nil {
		return g.fail(ctx, span, fmt.Errorf("saving seed of thread %s: %w", threadID, err))
	}
	g.logger.Debug(ctx, "run started", zap.Int("history", len(base.Messages)))

	return g.drive(ctx, span, threadID)
}

// Resume continues an interrupted run from its checkpoint. A finished run
// returns its final state unchanged.
func (g *Graph) Resume(ctx context.Context, threadID string) (*state.RunState, error) {
	unlock, err := g.locks.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = logging.WithThreadID(ctx, threadID)
	ctx, span := g.tracer.Start(ctx, "graph.resume", trace.WithAttributes(
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	cp, err := g.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, threadID)
	}
	if err != nil {
		return g.fail(ctx, span, fmt.Errorf("loading thread %s: %w", threadID, err))
	}
	if cp.Done() {
		return cp.State, nil
	}
	g.logger.Info(ctx, "resuming run", zap.String("next", cp.Next), zap.Int("step", cp.Step))
	return g.drive(ctx, span, threadID)
}

// State returns the stored state of threadID.
func (g *Graph) State(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	return g.store.Load(ctx, threadID)
}

// drive executes nodes from the stored checkpoint until the run terminates.
// The caller holds the thread lock.
func (g *Graph) drive(ctx context.Context, span trace.Span, threadID string) (*state.RunState, error) {
	for {
		cp, err := g.store.Load(ctx, threadID)
		if err != nil {
			return g.fail(ctx, span, fmt.Errorf("loading thread %s: %w", threadID, err))
		}
		if cp.Done() {
			span.SetAttributes(attribute.Int("steps", cp.Step))
			g.metrics.RecordRun(nil)
			g.logger.Info(ctx, "run completed",
				zap.Int("steps", cp.Step),
				zap.Int("messages", len(cp.State.Messages)))
			return cp.State, nil
		}

		node, ok := g.nodes[cp.Next]
		if !ok {
			return g.fail(ctx, span, fmt.Errorf("%w: %s", ErrUnknownNode, cp.Next))
		}
		if g.topology == LoopBack && cp.Step >= g.maxSteps {
			g.logger.Warn(ctx, "step limit reached",
				zap.Int("max_steps", g.maxSteps),
				zap.String("next", cp.Next))
			return g.fail(ctx, span, fmt.Errorf("%w: %d steps on thread %s", ErrStepLimit, g.maxSteps, threadID))
		}
		if err := ctx.Err(); err != nil {
			return g.fail(ctx, span, err)
		}

		next, err := g.step(ctx, node, cp)
		if err != nil {
			return g.fail(ctx, span, err)
		}
		if err := g.store.Save(ctx, next); err != nil {
			return g.fail(ctx, span, fmt.Errorf("saving thread %s: %w", threadID, err))
		}
	}
}

// step runs one node and returns the checkpoint to save. No state is
// changed when the node fails.
func (g *Graph) step(ctx context.Context, node Node, cp *checkpoint.Checkpoint) (*checkpoint.Checkpoint, error) {
	name := node.Name()
	ctx = logging.WithNode(ctx, name)
	ctx, span := g.tracer.Start(ctx, "graph.node", trace.WithAttributes(
		attribute.String("node", name),
		attribute.Int("step", cp.Step+1),
	))
	defer span.End()

	g.logger.Debug(ctx, "node started")
	start := time.Now()
	u, err := node.Run(ctx, cp.State)
	elapsed := time.Since(start)
	g.metrics.RecordNode(name, elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("node %s: %w", name, err)
	}

	s := cp.State.Apply(u)
	following := g.after(ctx, name, s.NextAgent)
	span.SetAttributes(
		attribute.String("next_agent", s.NextAgent.String()),
		attribute.String("next_node", following),
		attribute.Int("messages.added", len(u.Messages)),
	)
	g.logger.Debug(ctx, "node finished",
		zap.Duration("elapsed", elapsed),
		zap.String("next", following))

	ev := Event{Node: name, Step: cp.Step + 1, Messages: u.Messages, Next: s.NextAgent, State: s}
	if g.onEvent != nil {
		g.onEvent(ev)
	}
	if fn, ok := ctx.Value(observerKey{}).(func(Event)); ok && fn != nil {
		fn(ev)
	}
	return &checkpoint.Checkpoint{ThreadID: cp.ThreadID, State: s, Next: following, Step: cp.Step + 1}, nil
}

// after returns the node that follows name, or "" to terminate.
func (g *Graph) after(ctx context.Context, name string, next state.Agent) string {
	if name != SupervisorNode {
		if g.topology == LoopBack {
			return SupervisorNode
		}
		return ""
	}
	a, ok := Route(next)
	if !ok {
		return ""
	}
	w, ok := g.workers[a]
	if !ok {
		g.logger.Warn(ctx, "no worker registered for label", zap.String("agent", a.String()))
		return ""
	}
	return w.Name()
}

func (g *Graph) fail(ctx context.Context, span trace.Span, err error) (*state.RunState, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.metrics.RecordRun(err)
	if !errors.Is(err, context.Canceled) {
		g.logger.Error(ctx, "run failed", zap.Error(err))
	}
	return nil, err
}
