// Package http provides the agentgraph HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/checkpoint"
	"github.com/fyrsmithlabs/agentgraph/internal/graph"
	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/metrics"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/runner"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// maxToolArgs caps the body of a tool invocation.
const maxToolArgs = 1 << 20

// ThreadReader reads the checkpoint of a thread.
type ThreadReader interface {
	State(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error)
}

// Deps are the collaborators served by the API.
type Deps struct {
	Runner   *runner.Runner
	Threads  ThreadReader
	Projects *project.Registry
	Tools    *tools.Registry
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// Server provides HTTP endpoints for agentgraph.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if deps.Threads == nil || deps.Projects == nil || deps.Tools == nil {
		return nil, errors.New("threads, projects and tools are required")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{echo: e, deps: deps, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleProjects)
	v1.GET("/projects/:name", s.handleProject)
	v1.POST("/tasks", s.handleTask)
	v1.GET("/threads/:id", s.handleThread)
	v1.GET("/tools", s.handleTools)
	v1.POST("/tools/:name", s.handleTool)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.config.Version,
		Projects: s.deps.Projects.Len(),
	})
}

func (s *Server) handleProjects(c echo.Context) error {
	infos := s.deps.Projects.List()
	resp := ProjectsResponse{Projects: make([]ProjectSummary, 0, len(infos))}
	for _, info := range infos {
		resp.Projects = append(resp.Projects, ProjectSummary{
			Name:        info.Name,
			Type:        info.Type,
			Description: info.Description,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProject(c echo.Context) error {
	info, err := s.deps.Projects.Get(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, ProjectResponse{Project: info})
}

func (s *Server) handleTask(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid task request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.deps.Runner.Run(c.Request().Context(), runner.Request{
		Task:     req.Task,
		Project:  req.Project,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		return s.taskError(c, err)
	}

	resp := TaskResponse{
		ThreadID: res.ThreadID,
		Project:  res.Project,
		Fallback: res.Fallback,
		Messages: len(res.State.Messages),
	}
	if a := res.RoutedTo(); a != state.Unset {
		resp.RoutedTo = a.String()
	}
	for _, a := range res.Routes {
		resp.Route = append(resp.Route, a.String())
	}
	if reply, ok := res.Reply(); ok {
		resp.Reply = &reply
	}
	return c.JSON(http.StatusOK, resp)
}

// taskError maps run failures to status codes.
func (s *Server) taskError(c echo.Context, err error) error {
	var connErr *llm.ConnectionError
	switch {
	case errors.Is(err, runner.ErrEmptyTask):
		return echo.NewHTTPError(http.StatusBadRequest, "task field is required")
	case errors.Is(err, runner.ErrNoProjects):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: err.Error(),
			Hints:   []string{"Register a project with 'agentgraph register <name> <path>'"},
		})
	case errors.As(err, &connErr):
		s.logger.Error("model backend unreachable", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Message: err.Error(), Hints: connErr.Hints})
	case errors.Is(err, graph.ErrStepLimit):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, ErrorResponse{Message: err.Error()})
	default:
		s.logger.Error("task failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
	}
}

func (s *Server) handleThread(c echo.Context) error {
	id := c.Param("id")
	cp, err := s.deps.Threads.State(c.Request().Context(), id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("thread %s not found", id))
	}
	if err != nil {
		s.logger.Error("loading thread", zap.String("thread_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load thread")
	}
	return c.JSON(http.StatusOK, ThreadResponse{
		ThreadID:  cp.ThreadID,
		Next:      cp.Next,
		Done:      cp.Done(),
		Step:      cp.Step,
		UpdatedAt: cp.UpdatedAt,
		State:     cp.State,
	})
}

func (s *Server) handleTools(c echo.Context) error {
	return c.JSON(http.StatusOK, ToolsResponse{Tools: s.deps.Tools.Descriptors()})
}

func (s *Server) handleTool(c echo.Context) error {
	name := c.Param("name")
	if _, ok := s.deps.Tools.Get(name); !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown tool %s", name))
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxToolArgs+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if len(body) > maxToolArgs {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "tool arguments too large")
	}
	if len(body) > 0 && !json.Valid(body) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res := s.deps.Tools.Execute(c.Request().Context(), name, body)
	s.deps.Metrics.RecordTool(name, res.Err() != "")
	return c.JSON(http.StatusOK, ToolResponse{Tool: name, Result: res})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
