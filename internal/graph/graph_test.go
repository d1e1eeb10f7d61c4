package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/agentgraph/internal/agent"
	"github.com/fyrsmithlabs/agentgraph/internal/checkpoint"
	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/logging"
	"github.com/fyrsmithlabs/agentgraph/internal/metrics"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/prompt"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func goContext() *project.Context {
	return &project.Context{Info: &project.Info{
		Name:        "demo",
		Type:        "go",
		Description: "Demo service",
		TechStack:   project.NewTechStack(map[string]string{"language": "go"}),
	}}
}

func seed(task string) state.Input {
	pc := goContext()
	return state.Input{
		Task:           task,
		CurrentProject: "demo",
		Projects:       map[string]*project.Info{"demo": pc.Info},
		ProjectContext: pc,
		Messages:       []state.Message{state.Human(task)},
	}
}

// fixture wires a graph whose supervisor and workers share separate fakes.
type fixture struct {
	router  *llm.Fake
	workers *llm.Fake
	store   *checkpoint.MemoryStore
	graph   *Graph
}

func newFixture(t *testing.T, policy agent.Policy, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{router: llm.NewFake(), workers: llm.NewFake(), store: checkpoint.NewMemoryStore()}
	var nodes []Worker
	for _, w := range agent.NewWorkers(f.workers, nil) {
		nodes = append(nodes, w)
	}
	g, err := New(agent.NewSupervisor(f.router, policy, nil), nodes, f.store, opts...)
	require.NoError(t, err)
	f.graph = g
	return f
}

func TestRoute(t *testing.T) {
	for _, a := range state.Workers {
		got, ok := Route(a)
		assert.True(t, ok, a.String())
		assert.Equal(t, a, got)
	}
	bogus, _ := state.ParseAgent("bogus")
	for _, a := range []state.Agent{state.Unset, state.End, bogus, state.Agent(42)} {
		_, ok := Route(a)
		assert.False(t, ok, a.String())
	}
}

func TestRun_CheckGoVersion(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Reply("architect")
	f.workers.Reply("go.mod declares go 1.23.")

	var events []Event
	OnEvent(func(e Event) { events = append(events, e) })(f.graph)

	in := seed("Check Go version")
	out, err := f.graph.Run(context.Background(), "demo_session", in)
	require.NoError(t, err)

	assert.Equal(t, state.Unset, out.NextAgent)
	require.Len(t, out.Messages, 2, "seed message plus exactly one reply")
	assert.Equal(t, "go.mod declares go 1.23.", out.Messages[1].Content)
	assert.Equal(t, 1, f.router.CallCount())
	assert.Equal(t, 1, f.workers.CallCount())

	require.Len(t, events, 2)
	assert.Equal(t, SupervisorNode, events[0].Node)
	assert.Equal(t, state.Architect, events[0].Next)
	assert.Empty(t, events[0].Messages)
	assert.Equal(t, "architect", events[1].Node)
	assert.Len(t, events[1].Messages, 1)
	assert.Equal(t, 2, events[1].Step)

	cp, err := f.graph.State(context.Background(), "demo_session")
	require.NoError(t, err)
	assert.True(t, cp.Done())
	assert.Equal(t, 2, cp.Step)
	assert.Len(t, cp.State.Messages, 2)
}

func TestRun_Observer(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Reply("reviewer")
	f.workers.Reply("LGTM")

	var global, scoped []string
	OnEvent(func(e Event) { global = append(global, e.Node) })(f.graph)

	ctx := WithObserver(context.Background(), func(e Event) { scoped = append(scoped, e.Node) })
	_, err := f.graph.Run(ctx, "observed", seed("Review the handler"))
	require.NoError(t, err)
	assert.Equal(t, []string{SupervisorNode, "reviewer"}, scoped)
	assert.Equal(t, global, scoped)

	f.router.Reply("tester")
	f.workers.Reply("ok")
	_, err = f.graph.Run(context.Background(), "plain", seed("Write tests"))
	require.NoError(t, err)
	assert.Len(t, scoped, 2, "observer is scoped to its context")
	assert.Len(t, global, 4)
}

func TestRun_TerminatingLabels(t *testing.T) {
	f := newFixture(t, agent.Reroute)
	f.router.Reply("end")

	out, err := f.graph.Run(context.Background(), "t", seed("nothing to do"))
	require.NoError(t, err)
	assert.Equal(t, state.End, out.NextAgent)
	assert.Len(t, out.Messages, 1)
	assert.Zero(t, f.workers.CallCount())
}

func TestRun_UnregisteredWorkerTerminates(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	router := llm.NewFake("tester")
	dev := agent.NewWorker(prompt.Developer, llm.NewFake(), nil)
	g, err := New(agent.NewSupervisor(router, agent.FirstTurn, nil), []Worker{dev}, store)
	require.NoError(t, err)
	assert.Equal(t, []string{SupervisorNode, "developer"}, g.Nodes())

	out, err := g.Run(context.Background(), "t", seed("Write unit tests"))
	require.NoError(t, err)
	assert.Equal(t, state.Tester, out.NextAgent)
	assert.Len(t, out.Messages, 1)
}

func TestRun_MessagesAccumulateAcrossRuns(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Reply("architect").Reply("developer")
	f.workers.Reply("answer one").Reply("answer two")

	_, err := f.graph.Run(context.Background(), "demo_session", seed("Check Go version"))
	require.NoError(t, err)
	out, err := f.graph.Run(context.Background(), "demo_session", seed("Add error handling"))
	require.NoError(t, err)

	require.Len(t, out.Messages, 4)
	assert.Equal(t, "Add error handling", out.Task)
	assert.Equal(t, "answer two", out.Messages[3].Content)

	// The developer sees the earlier exchange in its history window.
	calls := f.workers.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "answer one", calls[1].Messages[2].Content)
}

func TestRun_LoopBack(t *testing.T) {
	f := newFixture(t, agent.Reroute, WithTopology(LoopBack))
	f.router.Reply("developer").Reply("tester").Reply("end")
	f.workers.Reply("implemented").Reply("tests pass")

	var nodes []string
	OnEvent(func(e Event) { nodes = append(nodes, e.Node) })(f.graph)

	out, err := f.graph.Run(context.Background(), "t", seed("Add a feature with tests"))
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor", "developer", "supervisor", "tester", "supervisor"}, nodes)
	assert.Equal(t, state.End, out.NextAgent)
	assert.Len(t, out.Messages, 3)
}

func TestRun_StepLimit(t *testing.T) {
	f := newFixture(t, agent.Reroute, WithTopology(LoopBack), WithMaxSteps(3))
	f.router.Default = ptr(state.Assistant("developer"))
	f.workers.Default = ptr(state.Assistant("still working"))

	_, err := f.graph.Run(context.Background(), "t", seed("never ends"))
	require.ErrorIs(t, err, ErrStepLimit)

	cp, err := f.store.Load(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, 3, cp.Step)
	assert.False(t, cp.Done())
}

func TestRun_NodeFailureLeavesState(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Reply("developer")
	f.workers.Fail(&llm.ConnectionError{Endpoint: "http://localhost:4000", Err: errors.New("connection refused")})

	_, err := f.graph.Run(context.Background(), "t", seed("Add error handling"))
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "node developer")

	cp, err := f.store.Load(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "developer", cp.Next)
	assert.Equal(t, 1, cp.Step)
	assert.Len(t, cp.State.Messages, 1, "failed node applied nothing")
	assert.Equal(t, state.Developer, cp.State.NextAgent)
}

func TestResume(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Reply("developer")
	f.workers.Fail(errors.New("transient"))

	_, err := f.graph.Run(context.Background(), "t", seed("Add error handling"))
	require.Error(t, err)

	f.workers.Reply("fixed")
	out, err := f.graph.Resume(context.Background(), "t")
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "fixed", out.Messages[1].Content)
	assert.Equal(t, 1, f.router.CallCount(), "supervisor is not re-run")

	again, err := f.graph.Resume(context.Background(), "t")
	require.NoError(t, err)
	assert.Len(t, again.Messages, 2)

	_, err = f.graph.Resume(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestRun_UnknownNodeInCheckpoint(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	require.NoError(t, f.store.Save(context.Background(), &checkpoint.Checkpoint{
		ThreadID: "t", State: &state.RunState{}, Next: "planner",
	}))
	_, err := f.graph.Resume(context.Background(), "t")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.graph.Run(ctx, "t", seed("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.router.CallCount())
}

func TestRun_NoProjectContext(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Reply("reviewer")

	out, err := f.graph.Run(context.Background(), "t", state.Input{Task: "Review the HTTP client"})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, agent.NoContextMessage, out.Messages[0].Content)
	assert.Zero(t, f.workers.CallCount())
}

func TestRun_ConcurrentThreads(t *testing.T) {
	f := newFixture(t, agent.FirstTurn)
	f.router.Default = ptr(state.Assistant("architect"))
	f.workers.Default = ptr(state.Assistant("ok"))

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.graph.Run(context.Background(), id, seed("Check Go version"))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c"} {
		cp, err := f.store.Load(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, cp.State.Messages, 4, id)
	}
}

func TestRun_Observability(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	logger := logging.NewTestLogger()
	m := metrics.New(prometheus.NewRegistry())

	f := newFixture(t, agent.FirstTurn,
		WithTracer(tt.Tracer("test")),
		WithLogger(logger.Logger),
		WithMetrics(m))
	f.router.Reply("architect")
	f.workers.Reply("done")

	_, err := f.graph.Run(context.Background(), "demo_session", seed("Check Go version"))
	require.NoError(t, err)

	tt.AssertSpanExists(t, "graph.run")
	tt.AssertSpanAttribute(t, "graph.run", "thread.id", "demo_session")
	tt.AssertSpanAttribute(t, "graph.run", "steps", int64(2))
	assert.Len(t, tt.SpansByName("graph.node"), 2)

	logger.AssertLogged(t, zapcore.InfoLevel, "run completed")
	logger.AssertField(t, "run completed", "thread.id", "demo_session")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NodeExecutions.WithLabelValues("supervisor", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NodeExecutions.WithLabelValues("architect", "ok")))
}

func TestNew_Validation(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	sup := agent.NewSupervisor(llm.NewFake(), agent.FirstTurn, nil)
	dev := agent.NewWorker(prompt.Developer, llm.NewFake(), nil)

	_, err := New(nil, nil, store)
	assert.Error(t, err)
	_, err = New(sup, nil, nil)
	assert.Error(t, err)
	_, err = New(sup, []Worker{dev, dev}, store)
	assert.ErrorContains(t, err, "duplicate worker")
}

func TestParseTopology(t *testing.T) {
	top, err := ParseTopology("loop")
	require.NoError(t, err)
	assert.Equal(t, LoopBack, top)
	assert.Equal(t, "loop", top.String())

	top, err = ParseTopology("")
	require.NoError(t, err)
	assert.Equal(t, SingleHop, top)

	_, err = ParseTopology("mesh")
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
