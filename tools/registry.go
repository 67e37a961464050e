// Package tools implements the agent tool registry: a name-keyed catalog of
// schema-described operations over workflow and agent entities. Tools wrap
// storage and engine calls behind a uniform execute contract that returns
// results instead of raising, so callers (human UI actions or an agent loop)
// only ever inspect the result shape.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/nodeflow/types"
)

// ToolResult is the uniform outcome of a tool call.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success builds a successful result.
func Success(message string, data any) ToolResult {
	return ToolResult{Success: true, Message: message, Data: data}
}

// Failure builds a failed result.
func Failure(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ExecuteOptions carries per-call context for a tool invocation.
type ExecuteOptions struct {
	// Context identifies the calling surface (e.g. "canvas", "agent").
	Context string
	// Metadata carries caller-specific values tools may consult.
	Metadata map[string]any
}

// ExecuteFunc is the tool execution contract. Implementations must convert
// internal failures into a failed ToolResult rather than panicking; the
// registry additionally recovers panics as a backstop.
type ExecuteFunc func(ctx context.Context, params map[string]any, opts ExecuteOptions) ToolResult

// Metrics receives tool invocation outcomes. A nil Metrics is valid.
type Metrics interface {
	ToolCalled(tool string, success bool)
}

// RateLimit configures per-tool call throttling.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// Tool is a named, schema-described operation.
type Tool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Parameters  *types.JSONSchema `json:"parameters,omitempty"`
	// Contexts restricts where the tool is offered; empty means globally
	// available.
	Contexts  []string    `json:"contexts,omitempty"`
	RateLimit *RateLimit  `json:"-"`
	Execute   ExecuteFunc `json:"-"`
}

// Registry is a validated, name-keyed tool catalog. Registries are built at
// startup and injected; entries are never mutated after registration.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*Tool
	limiters map[string]*rate.Limiter
	validate bool
	metrics  Metrics
	logger   *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithValidation toggles registration validation; enabled by default.
func WithValidation(enabled bool) RegistryOption {
	return func(r *Registry) { r.validate = enabled }
}

// WithMetrics attaches a tool call metrics sink.
func WithMetrics(metrics Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = metrics }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		tools:    make(map[string]*Tool),
		limiters: make(map[string]*rate.Limiter),
		validate: true,
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the catalog. When validation is enabled, tools
// missing a name, description, category, or execute function are refused
// and false is returned; the refusal is logged, never raised. Registering
// under an existing name overwrites the previous entry with a warning.
func (r *Registry) Register(tool *Tool) bool {
	if tool == nil {
		r.logger.Error("refusing nil tool registration")
		return false
	}
	if r.validate {
		if tool.Name == "" || tool.Description == "" || tool.Category == "" || tool.Execute == nil {
			r.logger.Error("refusing invalid tool registration",
				zap.String("name", tool.Name),
				zap.String("category", tool.Category),
			)
			return false
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		r.logger.Warn("overwriting registered tool", zap.String("name", tool.Name))
	}
	r.tools[tool.Name] = tool

	if tool.RateLimit != nil && tool.RateLimit.PerSecond > 0 {
		burst := tool.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiters[tool.Name] = rate.NewLimiter(rate.Limit(tool.RateLimit.PerSecond), burst)
	} else {
		delete(r.limiters, tool.Name)
	}

	r.logger.Debug("tool registered",
		zap.String("name", tool.Name),
		zap.String("category", tool.Category),
	)
	return true
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns every registered tool, sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForContext returns the tools available to the given calling surface. A
// tool without a contexts list is globally available; a tool with one is
// only offered to matching contexts.
func (r *Registry) ForContext(context string) []*Tool {
	all := r.All()
	out := make([]*Tool, 0, len(all))
	for _, t := range all {
		if len(t.Contexts) == 0 {
			out = append(out, t)
			continue
		}
		for _, c := range t.Contexts {
			if c == context {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Execute looks up a tool by name, validates the parameters against its
// schema, and invokes it. Every failure mode, including a panicking tool,
// comes back as a failed ToolResult; Execute never raises.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, opts ExecuteOptions) (result ToolResult) {
	if r.metrics != nil {
		defer func() { r.metrics.ToolCalled(name, result.Success) }()
	}

	tool, found := r.Get(name)
	if !found {
		return Failure("unknown tool %q", name)
	}

	r.mu.RLock()
	limiter := r.limiters[name]
	r.mu.RUnlock()
	if limiter != nil && !limiter.Allow() {
		return Failure("tool %q rate limit exceeded", name)
	}

	if params == nil {
		params = map[string]any{}
	}
	if tool.Parameters != nil {
		if err := tool.Parameters.Validate(params); err != nil {
			return Failure("invalid parameters for %q: %v", name, err)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				zap.String("name", name),
				zap.Any("panic", rec),
			)
			result = Failure("tool %q failed: %v", name, rec)
		}
	}()

	return tool.Execute(ctx, params, opts)
}
