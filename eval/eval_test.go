package eval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/types"
)

func TestEval_Basic(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())
	ctx := context.Background()

	out, err := e.Eval(ctx, `1 + 2`, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	out, err = e.Eval(ctx, `upper(input)`, map[string]any{"input": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
}

func TestEval_StringOperators(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		source string
		env    map[string]any
		want   bool
	}{
		{`value contains "Hello"`, map[string]any{"value": "Hello, World!"}, true},
		{`value contains "Hello"`, map[string]any{"value": "Goodbye"}, false},
		{`value startsWith "He"`, map[string]any{"value": "Hello"}, true},
		{`value endsWith "!"`, map[string]any{"value": "Hello!"}, true},
		{`value matches "^[0-9]+$"`, map[string]any{"value": "12345"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()
			got, err := e.EvalBool(ctx, tt.source, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalBool_NonBooleanResult(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())

	_, err := e.EvalBool(context.Background(), `1 + 2`, nil)
	require.Error(t, err)
}

func TestEval_CompileError(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())

	_, err := e.Eval(context.Background(), `1 +`, nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrExecutor))
}

func TestEval_RuntimeError(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())

	// Calling a method on an undefined binding fails at runtime.
	_, err := e.Eval(context.Background(), `value.bogus()`, map[string]any{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrExecutor))
}

func TestEval_UndefinedVariableIsNil(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())

	got, err := e.EvalBool(context.Background(), `missing == nil`, map[string]any{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEval_NoAmbientBindings(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())

	// The environment is exactly what the caller supplies; engine internals
	// never leak into the evaluated scope.
	got, err := e.Eval(context.Background(), `input`, map[string]any{"input": 42})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = e.Eval(context.Background(), `engine`, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEval_CancelledContext(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop(), WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Eval(ctx, `1 + 2`, nil)
	if err != nil {
		assert.True(t, types.IsCode(err, types.ErrTimeout))
	}
}

func TestEval_CacheReuse(t *testing.T) {
	t.Parallel()
	e := New(zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := e.Eval(ctx, `input * 2`, map[string]any{"input": i})
		require.NoError(t, err)
		assert.Equal(t, i*2, out)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 1)
}
