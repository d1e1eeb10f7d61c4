package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/agent"
	"github.com/fyrsmithlabs/agentgraph/internal/checkpoint"
	"github.com/fyrsmithlabs/agentgraph/internal/config"
	"github.com/fyrsmithlabs/agentgraph/internal/graph"
	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/logging"
	"github.com/fyrsmithlabs/agentgraph/internal/metrics"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/runner"
	"github.com/fyrsmithlabs/agentgraph/internal/telemetry"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

const instrumentationName = "github.com/fyrsmithlabs/agentgraph"

// newBackend builds the model backend. Tests replace it with a fake.
var newBackend = llm.New

type appOptions struct {
	configPath string
	onEvent    func(graph.Event)
}

// app holds the wired components of one process.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	metrics   *metrics.Metrics
	backend   llm.Backend
	projects  *project.Registry
	tools     *tools.Registry
	store     checkpoint.Store
	graph     *graph.Graph
	runner    *runner.Runner
}

// newApp loads configuration and builds every component from it.
//
// Build order:
//  1. Configuration and logger
//  2. Telemetry (degrades instead of failing)
//  3. Model backend, instrumented
//  4. Project and tool registries
//  5. Checkpoint store
//  6. Agents, supervisor policy and graph
//  7. Runner
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := logger.Underlying()

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(h.Err))
	}

	a := &app{cfg: cfg, logger: logger, telemetry: tel, metrics: metrics.Default()}

	backend, err := newBackend(llmConfig(cfg.LLM), zl)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create llm backend: %w", err)
	}
	a.backend = llm.Instrument(backend, tel.Tracer(instrumentationName), tel.Meter(instrumentationName))

	a.projects, err = project.Discover(cfg.Projects.Dir, project.WithLogger(zl))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	a.tools = tools.Default(
		tools.GitOptions{AuthorName: cfg.Tools.AuthorName, AuthorEmail: cfg.Tools.AuthorEmail},
		tools.WithTimeout(cfg.Tools.Timeout.Duration()),
		tools.WithLogger(zl),
	)

	a.store, err = checkpoint.Open(cfg.Checkpoint, zl)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.graph, err = buildGraph(cfg.Routing, a.backend, a.tools, a.store, a.metrics, logger,
		graph.WithTracer(tel.Tracer(instrumentationName)),
		graph.OnEvent(opts.onEvent),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = runner.New(a.projects, a.graph, runner.WithLogger(logger))

	logger.Info(ctx, "agentgraph ready",
		zap.Int("projects", a.projects.Len()),
		zap.Strings("tools", a.tools.Names()),
		zap.String("routing", cfg.Routing.Mode),
		zap.String("checkpoint", cfg.Checkpoint.Backend))
	return a, nil
}

// buildGraph compiles the task graph for the configured topology. Single-hop
// routing uses the first-turn policy; loop-back routing uses the re-router.
func buildGraph(
	rc config.RoutingConfig,
	backend llm.Backend,
	reg *tools.Registry,
	store checkpoint.Store,
	m *metrics.Metrics,
	logger *logging.Logger,
	extra ...graph.Option,
) (*graph.Graph, error) {
	topology, err := graph.ParseTopology(rc.Mode)
	if err != nil {
		return nil, err
	}
	policy := agent.FirstTurn
	if topology == graph.LoopBack {
		policy = agent.Reroute
	}

	var workers []graph.Worker
	for _, w := range agent.NewWorkers(backend, reg, agent.WithLogger(logger)) {
		workers = append(workers, w)
	}
	supervisor := agent.NewSupervisor(backend, policy, m, agent.WithLogger(logger))

	opts := append([]graph.Option{
		graph.WithTopology(topology),
		graph.WithMaxSteps(rc.MaxSteps),
		graph.WithMetrics(m),
		graph.WithLogger(logger),
	}, extra...)
	return graph.New(supervisor, workers, store, opts...)
}

// Close releases the checkpoint store, flushes telemetry and syncs the logger.
func (a *app) Close() {
	ctx := context.Background()
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync() // Best-effort sync on shutdown
}

// newLogger maps the file/env logging section onto the logger config.
func newLogger(lc config.LoggingConfig) (*logging.Logger, error) {
	cfg := logging.NewDefaultConfig()
	if lc.Level != "" {
		level, err := logging.LevelFromString(lc.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}
	if lc.Format != "" {
		cfg.Format = lc.Format
	}
	if lc.Output != "" {
		cfg.Output = lc.Output
	}
	for k, v := range lc.Fields {
		cfg.Fields[k] = v
	}
	return logging.NewLogger(cfg)
}

func llmConfig(c config.LLMConfig) llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		APIKey:      c.APIKey.Value(),
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout.Duration(),
		MaxRetries:  c.MaxRetries,
		RateLimit:   c.RateLimit,
		Burst:       c.Burst,
	}
}
