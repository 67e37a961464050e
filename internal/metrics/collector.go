// Package metrics provides internal metrics collection for the engine and
// tool layers. This package is internal and should not be imported by
// external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates prometheus metrics for workflow runs, node
// executions, and tool calls.
type Collector struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	nodesExecuted  *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates and registers the collector against the given
// registerer. Pass prometheus.NewRegistry() in tests to avoid cross-test
// leakage through the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs by terminal status",
		},
		[]string{"status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	c.nodesExecuted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node executions by type and status",
		},
		[]string{"node_type", "status"},
	)

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by tool and status",
		},
		[]string{"tool", "status"},
	)

	return c
}

// RunCompleted records a finished workflow run.
func (c *Collector) RunCompleted(status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// NodeExecuted records a node execution.
func (c *Collector) NodeExecuted(nodeType, status string) {
	c.nodesExecuted.WithLabelValues(nodeType, status).Inc()
}

// ToolCalled records a tool invocation.
func (c *Collector) ToolCalled(tool string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.toolCallsTotal.WithLabelValues(tool, status).Inc()
}
