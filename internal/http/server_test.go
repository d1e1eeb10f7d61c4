package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/agent"
	"github.com/fyrsmithlabs/agentgraph/internal/checkpoint"
	"github.com/fyrsmithlabs/agentgraph/internal/graph"
	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/metrics"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/runner"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

type testServer struct {
	server   *Server
	router   *llm.Fake
	workers  *llm.Fake
	metrics  *metrics.Metrics
	projects *project.Registry
	root     string
}

func setupTestServer(t *testing.T, projectNames ...string) *testServer {
	t.Helper()

	reg := project.NewRegistry(t.TempDir())
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/demo\n\ngo 1.23\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# demo\n"), 0o644))
	for _, name := range projectNames {
		_, err := reg.Register(name, root)
		require.NoError(t, err)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	toolReg := tools.Default(tools.GitOptions{})
	router := llm.NewFake()
	workers := llm.NewFake()
	store := checkpoint.NewMemoryStore()

	var nodes []graph.Worker
	for _, w := range agent.NewWorkers(workers, toolReg) {
		nodes = append(nodes, w)
	}
	g, err := graph.New(agent.NewSupervisor(router, agent.FirstTurn, m), nodes, store, graph.WithMetrics(m))
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Runner:   runner.New(reg, g),
		Threads:  g,
		Projects: reg,
		Tools:    toolReg,
		Metrics:  m,
		Gatherer: promReg,
	}, zap.NewNop(), &Config{Host: "localhost", Port: 0, Version: "test"})
	require.NoError(t, err)

	return &testServer{server: srv, router: router, workers: workers, metrics: m, projects: reg, root: root}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	ts := setupTestServer(t)
	deps := ts.server.deps

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(deps, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(deps, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when runner is nil", func(t *testing.T) {
		d := deps
		d.Runner = nil
		_, err := NewServer(d, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runner cannot be nil")
	})

	t.Run("returns error when registries are missing", func(t *testing.T) {
		d := deps
		d.Tools = nil
		_, err := NewServer(d, zap.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t, "demo")

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 1, resp.Projects)
}

func TestHandleProjects(t *testing.T) {
	ts := setupTestServer(t, "alpha", "beta")

	t.Run("lists in discovery order", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/projects", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ProjectsResponse](t, rec)
		require.Len(t, resp.Projects, 2)
		assert.Equal(t, "alpha", resp.Projects[0].Name)
		assert.Equal(t, "go", resp.Projects[0].Type)
		assert.Equal(t, "beta", resp.Projects[1].Name)
	})

	t.Run("returns one project", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/projects/beta", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ProjectResponse](t, rec)
		require.NotNil(t, resp.Project)
		assert.Equal(t, "beta", resp.Project.Name)
	})

	t.Run("unknown project is 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/projects/gamma", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleTask(t *testing.T) {
	t.Run("runs the graph and returns the reply", func(t *testing.T) {
		ts := setupTestServer(t, "demo")
		ts.router.Reply("architect")
		ts.workers.Reply("Use a layered design.")

		rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "Design a cache", Project: "demo"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[TaskResponse](t, rec)
		assert.Equal(t, "demo_session", resp.ThreadID)
		assert.Equal(t, "demo", resp.Project)
		assert.False(t, resp.Fallback)
		assert.Equal(t, "architect", resp.RoutedTo)
		assert.Equal(t, []string{"architect"}, resp.Route)
		assert.NotContains(t, rec.Body.String(), "next_agent")
		assert.Equal(t, 2, resp.Messages)
		require.NotNil(t, resp.Reply)
		assert.Equal(t, "Use a layered design.", resp.Reply.Content)
	})

	t.Run("unknown project falls back", func(t *testing.T) {
		ts := setupTestServer(t, "demo")
		ts.router.Reply("tester")
		ts.workers.Reply("ok")

		rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "Write tests", Project: "nope"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[TaskResponse](t, rec)
		assert.Equal(t, "demo", resp.Project)
		assert.True(t, resp.Fallback)
	})

	t.Run("empty task is 400", func(t *testing.T) {
		ts := setupTestServer(t, "demo")
		rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, ts.router.CallCount())
	})

	t.Run("no projects is 503 with hints", func(t *testing.T) {
		ts := setupTestServer(t)
		rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "anything"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.NotEmpty(t, resp.Hints)
	})

	t.Run("unreachable backend is 502 with hints", func(t *testing.T) {
		ts := setupTestServer(t, "demo")
		ts.router.Fail(&llm.ConnectionError{
			Endpoint: "http://localhost:4000",
			Err:      errors.New("connection refused"),
			Hints:    llm.DefaultHints,
		})

		rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "Check Go version"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Contains(t, resp.Message, "localhost:4000")
		assert.Equal(t, llm.DefaultHints, resp.Hints)
	})

	t.Run("other failures are 500", func(t *testing.T) {
		ts := setupTestServer(t, "demo")
		ts.router.Reply("developer")
		ts.workers.Fail(errors.New("boom"))

		rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "Implement it"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Contains(t, resp.Message, "boom")
	})
}

func TestHandleThread(t *testing.T) {
	ts := setupTestServer(t, "demo")
	ts.router.Reply("reviewer")
	ts.workers.Reply("Looks good.")

	rec := ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "Review the diff"})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("returns the checkpoint", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/threads/demo_session", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ThreadResponse](t, rec)
		assert.Equal(t, "demo_session", resp.ThreadID)
		assert.True(t, resp.Done)
		assert.Empty(t, resp.Next)
		assert.Equal(t, 2, resp.Step)
		require.NotNil(t, resp.State)
		assert.Len(t, resp.State.Messages, 2)
		assert.False(t, resp.UpdatedAt.IsZero())
	})

	t.Run("unknown thread is 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/threads/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleTools(t *testing.T) {
	ts := setupTestServer(t, "demo")

	t.Run("lists descriptors", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/tools", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ToolsResponse](t, rec)
		names := make([]string, 0, len(resp.Tools))
		for _, d := range resp.Tools {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{tools.ReadFile, tools.WriteFile, tools.SearchCode, tools.GitStatus, tools.GitCommit}, names)
	})

	t.Run("executes a tool", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/tools/read_file", map[string]string{
			"file_path":    "README.md",
			"project_path": ts.root,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[ToolResponse](t, rec)
		assert.Equal(t, tools.ReadFile, resp.Tool)
		assert.Equal(t, "# demo\n", resp.Result["content"])
		assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.ToolExecutions.WithLabelValues(tools.ReadFile, "ok")))
	})

	t.Run("tool failures are payloads", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/tools/read_file", map[string]string{
			"file_path":    "missing.txt",
			"project_path": ts.root,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ToolResponse](t, rec)
		assert.Contains(t, resp.Result.Err(), "File not found")
		assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.ToolExecutions.WithLabelValues(tools.ReadFile, "error")))
	})

	t.Run("unknown tool is 404", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/tools/rm_rf", map[string]string{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid json is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/read_file", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		ts.server.Echo().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, "demo")
	ts.router.Reply("architect")
	ts.workers.Reply("done")
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/tasks", TaskRequest{Task: "Plan it"}).Code)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "agentgraph_routing_decisions_total")
	assert.Contains(t, body, "agentgraph_runs_total")
}

func TestShutdown(t *testing.T) {
	ts := setupTestServer(t)
	assert.NoError(t, ts.server.Shutdown(context.Background()))
}
