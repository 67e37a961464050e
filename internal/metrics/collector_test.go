package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCollector_RunCompleted(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("nodeflow", reg, zap.NewNop())

	c.RunCompleted("success", 120*time.Millisecond)
	c.RunCompleted("success", 80*time.Millisecond)
	c.RunCompleted("error", time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.runsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsTotal.WithLabelValues("error")))
}

func TestCollector_NodeExecuted(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("nodeflow", reg, zap.NewNop())

	c.NodeExecuted("function", "completed")
	c.NodeExecuted("function", "completed")
	c.NodeExecuted("decision", "error")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.nodesExecuted.WithLabelValues("function", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.nodesExecuted.WithLabelValues("decision", "error")))
}

func TestCollector_ToolCalled(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := NewCollector("nodeflow", reg, zap.NewNop())

	c.ToolCalled("create_workflow", true)
	c.ToolCalled("create_workflow", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("create_workflow", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("create_workflow", "error")))
}
