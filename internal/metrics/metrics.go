// Package metrics holds the Prometheus collectors for routing, node
// execution and tool calls.
//
// All recording methods are safe on a nil *Metrics, so components can run
// without instrumentation.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Metrics holds Prometheus metrics for agentgraph.
type Metrics struct {
	RoutingDecisions *prometheus.CounterVec
	NodeExecutions   *prometheus.CounterVec
	NodeDuration     *prometheus.HistogramVec
	Runs             *prometheus.CounterVec
	ToolExecutions   *prometheus.CounterVec
}

// Default returns metrics registered on the default Prometheus registerer.
// Registration happens once per process.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers metrics on reg.
//
// Metrics:
//   - agentgraph_routing_decisions_total{agent,fallback} - supervisor decisions
//   - agentgraph_node_executions_total{node,status} - graph node runs
//   - agentgraph_node_duration_seconds{node} - graph node latency
//   - agentgraph_runs_total{status} - completed graph runs
//   - agentgraph_tool_executions_total{tool,status} - tool executor calls
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoutingDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_routing_decisions_total",
				Help: "Total number of supervisor routing decisions",
			},
			[]string{"agent", "fallback"},
		),
		NodeExecutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_node_executions_total",
				Help: "Total number of graph node executions",
			},
			[]string{"node", "status"},
		),
		NodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgraph_node_duration_seconds",
				Help:    "Duration of graph node execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"node"},
		),
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_runs_total",
				Help: "Total number of graph runs by outcome",
			},
			[]string{"status"},
		),
		ToolExecutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool", "status"},
		),
	}
}

// RecordRouting records one supervisor decision.
func (m *Metrics) RecordRouting(agent string, fallback bool) {
	if m == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(agent, strconv.FormatBool(fallback)).Inc()
}

// RecordNode records one node execution.
func (m *Metrics) RecordNode(node string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.NodeExecutions.WithLabelValues(node, status(err)).Inc()
	m.NodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(err error) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status(err)).Inc()
}

// RecordTool records one tool execution. failed reports an error payload.
func (m *Metrics) RecordTool(tool string, failed bool) {
	if m == nil {
		return
	}
	s := "ok"
	if failed {
		s = "error"
	}
	m.ToolExecutions.WithLabelValues(tool, s).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
