package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/graph"
)

func passthroughExecutor() Executor {
	return ExecutorFunc(func(_ context.Context, _ map[string]any, inputs map[string]any) (Result, error) {
		return Result{graph.PortDefault: inputs[graph.PortInput]}, nil
	})
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestRegistry_Register(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.Register("custom", passthroughExecutor(), Metadata{Label: "Custom"}))
	assert.True(t, r.Has("custom"))

	exec, found := r.Get("custom")
	require.True(t, found)
	assert.NotNil(t, exec)

	meta, found := r.Metadata("custom")
	require.True(t, found)
	assert.Equal(t, "Custom", meta.Label)
}

func TestRegistry_Register_Invalid(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	assert.Error(t, r.Register("", passthroughExecutor(), Metadata{}))
	assert.Error(t, r.Register("custom", nil, Metadata{}))
	assert.False(t, r.Has("custom"))
}

func TestRegistry_Register_Overwrite(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	first := ExecutorFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (Result, error) {
		return Result{graph.PortDefault: "first"}, nil
	})
	second := ExecutorFunc(func(_ context.Context, _ map[string]any, _ map[string]any) (Result, error) {
		return Result{graph.PortDefault: "second"}, nil
	})

	require.NoError(t, r.Register("custom", first, Metadata{}))
	require.NoError(t, r.Register("custom", second, Metadata{}))

	exec, _ := r.Get("custom")
	result, err := exec.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", result[graph.PortDefault])

	// Still exactly one entry for the type.
	assert.Equal(t, []string{"custom"}, r.Types())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())
	_, found := r.Get("ghost")
	assert.False(t, found)
}

func TestRegistry_Types_Sorted(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, passthroughExecutor(), Metadata{}))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Types())
}

func TestRegistry_ValidateData(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Register("checked", passthroughExecutor(), Metadata{
		Validate: requireStringData("condition"),
	}))

	assert.Error(t, r.ValidateData("checked", map[string]any{}))
	assert.Error(t, r.ValidateData("checked", map[string]any{"condition": "  "}))
	assert.NoError(t, r.ValidateData("checked", map[string]any{"condition": "value > 1"}))
	assert.Error(t, r.ValidateData("ghost", nil))
}

// ---------------------------------------------------------------------------
// Result port selection
// ---------------------------------------------------------------------------

func TestResult_First_Priority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"default beats named", Result{graph.PortDefault: 1, graph.PortTrue: 2}, graph.PortDefault},
		{"true beats false", Result{graph.PortFalse: 1, graph.PortTrue: 2}, graph.PortTrue},
		{"known beats custom", Result{"custom": 1, graph.PortFalse: 2}, graph.PortFalse},
		{"custom ports lexicographic", Result{"zeta": 1, "alpha": 2}, "alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			port, _, populated := tt.result.First()
			require.True(t, populated)
			assert.Equal(t, tt.want, port)
		})
	}
}

func TestResult_First_SkipsErrorPort(t *testing.T) {
	t.Parallel()

	port, value, populated := Result{graph.PortError: "boom", graph.PortFalse: 7}.First()
	require.True(t, populated)
	assert.Equal(t, graph.PortFalse, port)
	assert.Equal(t, 7, value)

	_, _, populated = Result{graph.PortError: "boom"}.First()
	assert.False(t, populated)

	_, _, populated = Result{}.First()
	assert.False(t, populated)
}

func TestResult_ErrorPort(t *testing.T) {
	t.Parallel()

	msg, failed := Result{graph.PortError: "boom"}.ErrorPort()
	assert.True(t, failed)
	assert.Equal(t, "boom", msg)

	msg, failed = Result{graph.PortError: 42}.ErrorPort()
	assert.True(t, failed)
	assert.NotEmpty(t, msg)

	_, failed = Result{graph.PortDefault: "ok"}.ErrorPort()
	assert.False(t, failed)
}
