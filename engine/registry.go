package engine

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/types"
)

// Result maps output-port names to the payload produced on each port. An
// executor populates at most one port per logical branch outcome; an empty
// result means no further traversal.
type Result map[string]any

// ErrorPort returns the error-port payload as a message, if populated.
func (r Result) ErrorPort() (string, bool) {
	v, ok := r[graph.PortError]
	if !ok {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return "executor reported an error", true
}

// portPriority fixes the selection order when a result carries more than one
// populated port, so traversal stays deterministic.
var portPriority = map[string]int{
	graph.PortDefault: 0,
	graph.PortTrue:    1,
	graph.PortFalse:   2,
}

// First returns the first populated non-error output port and its payload,
// using a stable priority order (default, true, false, then lexicographic).
func (r Result) First() (string, any, bool) {
	best := ""
	for port := range r {
		if port == graph.PortError {
			continue
		}
		if best == "" {
			best = port
			continue
		}
		if lessPort(port, best) {
			best = port
		}
	}
	if best == "" {
		return "", nil, false
	}
	return best, r[best], true
}

func lessPort(a, b string) bool {
	pa, oka := portPriority[a]
	pb, okb := portPriority[b]
	switch {
	case oka && okb:
		return pa < pb
	case oka:
		return true
	case okb:
		return false
	default:
		return a < b
	}
}

// Executor implements a node type's behavior. Executors must be
// deterministic with respect to data and inputs alone so a run can be
// replayed from its log.
type Executor interface {
	Execute(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, data map[string]any, inputs map[string]any) (Result, error) {
	return f(ctx, data, inputs)
}

// Metadata describes a registered node type for builders and validation.
type Metadata struct {
	// Label is the human-readable node type name.
	Label string
	// Description explains what the node does.
	Description string
	// DefaultData seeds a freshly created node's configuration.
	DefaultData map[string]any
	// Validate checks node configuration; nil means no validation.
	Validate func(data map[string]any) error
}

// Registry maps node-type identifiers to executors. Registries are
// constructed explicitly and injected; there is no process-wide instance.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	metadata  map[string]Metadata
	logger    *zap.Logger
}

// NewRegistry creates an empty executor registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		executors: make(map[string]Executor),
		metadata:  make(map[string]Metadata),
		logger:    logger.With(zap.String("component", "executor_registry")),
	}
}

// Register stores an executor under a node-type identifier. Registering the
// same type twice overwrites the previous entry and logs a warning; drift
// between competing implementations must be observable, not silent.
func (r *Registry) Register(nodeType string, exec Executor, meta Metadata) error {
	if nodeType == "" {
		return types.NewError(types.ErrRegistration, "node type cannot be empty")
	}
	if exec == nil {
		return types.NewErrorf(types.ErrRegistration, "executor for type %s cannot be nil", nodeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[nodeType]; exists {
		r.logger.Warn("overwriting registered node executor",
			zap.String("node_type", nodeType),
		)
	}
	r.executors[nodeType] = exec
	r.metadata[nodeType] = meta

	r.logger.Debug("node executor registered", zap.String("node_type", nodeType))
	return nil
}

// Get returns the executor for a node type.
func (r *Registry) Get(nodeType string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[nodeType]
	return exec, ok
}

// Metadata returns the metadata for a node type.
func (r *Registry) Metadata(nodeType string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metadata[nodeType]
	return meta, ok
}

// Has reports whether a node type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[nodeType]
	return ok
}

// Types returns all registered node types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ValidateData runs the registered validator for a node type against the
// given configuration.
func (r *Registry) ValidateData(nodeType string, data map[string]any) error {
	meta, ok := r.Metadata(nodeType)
	if !ok {
		return types.NewErrorf(types.ErrUnknownType, "unknown node type %s", nodeType)
	}
	if meta.Validate == nil {
		return nil
	}
	return meta.Validate(data)
}
