// Package eval provides a capability-restricted expression evaluator used by
// decision and function node executors. User expressions run against an
// explicit allow-listed environment with no ambient I/O or process access,
// bounded by a wall-clock deadline.
package eval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/types"
)

// DefaultTimeout bounds a single expression evaluation.
const DefaultTimeout = 5 * time.Second

// Evaluator compiles and runs user-authored expressions. Compiled programs
// are cached by source text; the cache is safe for concurrent use.
type Evaluator struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[cacheKey]*vm.Program
}

type cacheKey struct {
	source string
	asBool bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout overrides the evaluation deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// New creates an Evaluator.
func New(logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		timeout: DefaultTimeout,
		logger:  logger.With(zap.String("component", "evaluator")),
		cache:   make(map[cacheKey]*vm.Program),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval runs an expression against the given bindings and returns its value.
func (e *Evaluator) Eval(ctx context.Context, source string, env map[string]any) (any, error) {
	program, err := e.compile(source, false)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, program, env)
}

// EvalBool runs a boolean-valued expression against the given bindings.
// A non-boolean result is an error, never a coercion.
func (e *Evaluator) EvalBool(ctx context.Context, source string, env map[string]any) (bool, error) {
	program, err := e.compile(source, true)
	if err != nil {
		return false, err
	}
	out, err := e.run(ctx, program, env)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, types.NewErrorf(types.ErrExecutor, "condition returned %T, expected boolean", out)
	}
	return result, nil
}

func (e *Evaluator) compile(source string, asBool bool) (*vm.Program, error) {
	key := cacheKey{source: source, asBool: asBool}

	e.mu.RLock()
	program, hit := e.cache[key]
	e.mu.RUnlock()
	if hit {
		return program, nil
	}

	options := []expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	}
	if asBool {
		options = append(options, expr.AsBool())
	}

	program, err := expr.Compile(source, options...)
	if err != nil {
		return nil, types.NewErrorf(types.ErrExecutor, "expression compile failed: %v", err)
	}

	e.mu.Lock()
	e.cache[key] = program
	e.mu.Unlock()

	return program, nil
}

// run executes a compiled program under the evaluator's deadline. The expr
// language is non-Turing-complete so programs terminate on their own; the
// deadline additionally bounds pathological inputs and propagates caller
// cancellation.
func (e *Evaluator) run(ctx context.Context, program *vm.Program, env map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("expression panicked: %v", r)}
			}
		}()
		value, err := expr.Run(program, env)
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, types.NewError(types.ErrTimeout, "expression evaluation timed out").WithCause(ctx.Err())
	case result := <-done:
		if result.err != nil {
			return nil, types.NewError(types.ErrExecutor, "expression evaluation failed").WithCause(result.err)
		}
		return result.value, nil
	}
}
