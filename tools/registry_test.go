package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/types"
)

func okTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "a test tool",
		Category:    "test",
		Execute: func(context.Context, map[string]any, ExecuteOptions) ToolResult {
			return Success("ok", nil)
		},
	}
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestRegistry_Register(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	assert.True(t, r.Register(okTool("alpha")))
	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name)
}

func TestRegistry_RefusesInvalidTools(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	noop := func(context.Context, map[string]any, ExecuteOptions) ToolResult {
		return Success("", nil)
	}

	tests := []struct {
		name string
		tool *Tool
	}{
		{"nil tool", nil},
		{"missing name", &Tool{Description: "d", Category: "c", Execute: noop}},
		{"missing description", &Tool{Name: "n", Category: "c", Execute: noop}},
		{"missing category", &Tool{Name: "n", Description: "d", Execute: noop}},
		{"missing execute", &Tool{Name: "n", Description: "d", Category: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, r.Register(tt.tool))
		})
	}
	assert.Empty(t, r.All())
}

func TestRegistry_ValidationDisabled(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop(), WithValidation(false))

	assert.True(t, r.Register(&Tool{Name: "bare"}))
}

func TestRegistry_OverwriteKeepsSingleEntry(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	first := okTool("dup")
	second := okTool("dup")
	second.Description = "replacement"

	require.True(t, r.Register(first))
	require.True(t, r.Register(second))

	all := r.All()
	require.Len(t, all, 1)
	assert.Equal(t, "replacement", all[0].Description)
}

func TestRegistry_AllSortedByName(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())
	r.Register(okTool("zeta"))
	r.Register(okTool("alpha"))
	r.Register(okTool("mid"))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "mid", all[1].Name)
	assert.Equal(t, "zeta", all[2].Name)
}

func TestRegistry_ForContext(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	global := okTool("global")
	canvasOnly := okTool("canvas_only")
	canvasOnly.Contexts = []string{"canvas"}
	agentOnly := okTool("agent_only")
	agentOnly.Contexts = []string{"agent"}

	r.Register(global)
	r.Register(canvasOnly)
	r.Register(agentOnly)

	names := func(tools []*Tool) []string {
		out := make([]string, 0, len(tools))
		for _, tool := range tools {
			out = append(out, tool.Name)
		}
		return out
	}

	assert.Equal(t, []string{"canvas_only", "global"}, names(r.ForContext("canvas")))
	assert.Equal(t, []string{"agent_only", "global"}, names(r.ForContext("agent")))
	assert.Equal(t, []string{"global"}, names(r.ForContext("elsewhere")))
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	result := r.Execute(context.Background(), "missing", nil, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestRegistry_ExecuteValidatesParameters(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	tool := okTool("strict")
	tool.Parameters = types.ObjectSchema(map[string]*types.JSONSchema{
		"workflowId": types.IntegerSchema("workflow id"),
	}, "workflowId")
	r.Register(tool)

	result := r.Execute(context.Background(), "strict", map[string]any{}, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid parameters")

	result = r.Execute(context.Background(), "strict", map[string]any{"workflowId": float64(1)}, ExecuteOptions{})
	assert.True(t, result.Success)
}

func TestRegistry_ExecutePassesParamsAndOptions(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	var gotParams map[string]any
	var gotOpts ExecuteOptions
	r.Register(&Tool{
		Name:        "probe",
		Description: "records its arguments",
		Category:    "test",
		Execute: func(_ context.Context, params map[string]any, opts ExecuteOptions) ToolResult {
			gotParams = params
			gotOpts = opts
			return Success("done", params["x"])
		},
	})

	result := r.Execute(context.Background(), "probe",
		map[string]any{"x": "y"}, ExecuteOptions{Context: "canvas"})
	require.True(t, result.Success)
	assert.Equal(t, "y", gotParams["x"])
	assert.Equal(t, "canvas", gotOpts.Context)
	assert.Equal(t, "y", result.Data)
}

func TestRegistry_ExecuteRecoversPanic(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	r.Register(&Tool{
		Name:        "bomb",
		Description: "always panics",
		Category:    "test",
		Execute: func(context.Context, map[string]any, ExecuteOptions) ToolResult {
			panic("kaboom")
		},
	})

	result := r.Execute(context.Background(), "bomb", nil, ExecuteOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "kaboom")
}

type captureMetrics struct {
	calls map[string][]bool
}

func (m *captureMetrics) ToolCalled(tool string, success bool) {
	if m.calls == nil {
		m.calls = make(map[string][]bool)
	}
	m.calls[tool] = append(m.calls[tool], success)
}

func TestRegistry_ExecuteReportsMetrics(t *testing.T) {
	t.Parallel()
	sink := &captureMetrics{}
	r := NewRegistry(zap.NewNop(), WithMetrics(sink))
	r.Register(okTool("alpha"))

	r.Execute(context.Background(), "alpha", nil, ExecuteOptions{})
	r.Execute(context.Background(), "missing", nil, ExecuteOptions{})

	assert.Equal(t, []bool{true}, sink.calls["alpha"])
	assert.Equal(t, []bool{false}, sink.calls["missing"])
}

func TestRegistry_ExecuteRateLimited(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	tool := okTool("throttled")
	tool.RateLimit = &RateLimit{PerSecond: 0.001, Burst: 1}
	r.Register(tool)

	first := r.Execute(context.Background(), "throttled", nil, ExecuteOptions{})
	assert.True(t, first.Success)

	second := r.Execute(context.Background(), "throttled", nil, ExecuteOptions{})
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "rate limit")
}
