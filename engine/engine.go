package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/types"
)

// DefaultMaxSteps bounds traversal length per run. The visited-set already
// rejects revisits; the ceiling additionally caps malformed graphs.
const DefaultMaxSteps = 1000

// GraphLoader loads a workflow's graph from the storage collaborator.
type GraphLoader interface {
	WorkflowGraph(ctx context.Context, workflowID uint) (*graph.Graph, error)
}

// RunRecord is the persisted shape of one run's log entry. Records are keyed
// by run id, never by workflow id alone, so concurrent runs of the same
// workflow stay isolated.
type RunRecord struct {
	RunID       string
	WorkflowID  uint
	Status      RunStatus
	Input       string
	Output      string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// RunRecorder persists run logs. The engine creates a record at run start
// and finalizes it at run end regardless of outcome.
type RunRecorder interface {
	RecordRunStart(ctx context.Context, rec RunRecord) error
	RecordRunEnd(ctx context.Context, rec RunRecord) error
}

// Metrics receives engine-level observability events. A nil Metrics is
// valid.
type Metrics interface {
	RunCompleted(status string, duration time.Duration)
	NodeExecuted(nodeType, status string)
}

// Options configure a single run.
type Options struct {
	// TriggerType selects the entry node by type; defaults to "trigger".
	TriggerType string
	// Listeners observe node state changes and run completion.
	Listeners []StateListener
	// MaxSteps overrides the traversal ceiling for this run.
	MaxSteps int
}

// RunResult is the terminal outcome of one run. Callers always receive a
// terminal status; the engine never leaves a run ambiguous.
type RunResult struct {
	RunID      string               `json:"run_id"`
	WorkflowID uint                 `json:"workflow_id"`
	Status     RunStatus            `json:"status"`
	Output     any                  `json:"output,omitempty"`
	Error      string               `json:"error,omitempty"`
	Visited    []string             `json:"visited"`
	NodeStates map[string]NodeState `json:"node_states"`
	StartedAt  time.Time            `json:"started_at"`
	Duration   time.Duration        `json:"duration"`
}

// Engine drives workflow graph traversal: it resolves the trigger node,
// invokes each visited node's executor, follows the edge matching the
// populated output port, and records state transitions along the way.
//
// The engine holds no per-run state; every Execute call owns its own
// tracker and visited set, so concurrent runs are safe.
type Engine struct {
	loader   GraphLoader
	registry *Registry
	recorder RunRecorder
	metrics  Metrics
	logger   *zap.Logger
	maxSteps int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecorder attaches a run log recorder.
func WithRecorder(recorder RunRecorder) EngineOption {
	return func(e *Engine) { e.recorder = recorder }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(metrics Metrics) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

// WithMaxSteps overrides the default traversal ceiling.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) { e.maxSteps = n }
}

// New creates an execution engine. The loader and registry are required
// collaborators; recorder and metrics are optional.
func New(loader GraphLoader, registry *Registry, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		loader:   loader,
		registry: registry,
		logger:   logger.With(zap.String("component", "engine")),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a workflow against the given input and returns the terminal
// result. Graph-integrity failures (missing trigger, dangling edges,
// unknown node types) return an error; executor failures are captured into
// the result with status error.
func (e *Engine) Execute(ctx context.Context, workflowID uint, input any, opts Options) (*RunResult, error) {
	g, err := e.loader.WorkflowGraph(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	triggerType := opts.TriggerType
	if triggerType == "" {
		triggerType = TypeTrigger
	}
	trigger, found := g.FirstByType(triggerType)
	if !found {
		return nil, types.NewErrorf(types.ErrNoTrigger, "workflow %d has no %s node", workflowID, triggerType)
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = e.maxSteps
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	tracker := NewTracker(opts.Listeners...)

	logger := e.logger.With(
		zap.String("run_id", runID),
		zap.Uint("workflow_id", workflowID),
	)
	logger.Info("run started",
		zap.String("entry_node", trigger.ID),
		zap.Int("nodes", len(g.Nodes)),
	)

	if e.recorder != nil {
		rec := RunRecord{
			RunID:      runID,
			WorkflowID: workflowID,
			Status:     RunStatusRunning,
			Input:      encodeJSON(input),
			StartedAt:  startedAt,
		}
		if err := e.recorder.RecordRunStart(ctx, rec); err != nil {
			return nil, types.NewError(types.ErrInternalError, "recording run start failed").WithCause(err)
		}
	}

	run := &runState{
		engine:  e,
		graph:   g,
		tracker: tracker,
		logger:  logger,
		visited: make(map[string]bool),
	}
	status, output, runErr := run.traverse(ctx, trigger, input, maxSteps)

	completedAt := time.Now()
	result := &RunResult{
		RunID:      runID,
		WorkflowID: workflowID,
		Status:     status,
		Output:     output,
		Visited:    tracker.Visited(),
		NodeStates: tracker.States(),
		StartedAt:  startedAt,
		Duration:   completedAt.Sub(startedAt),
	}
	if runErr != "" {
		result.Error = runErr
	}

	tracker.Complete(FinalState{
		RunID:       runID,
		WorkflowID:  workflowID,
		Status:      status,
		Output:      output,
		Error:       runErr,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		NodeStates:  result.NodeStates,
		Visited:     result.Visited,
	})

	if e.recorder != nil {
		rec := RunRecord{
			RunID:       runID,
			WorkflowID:  workflowID,
			Status:      status,
			Input:       encodeJSON(input),
			Output:      encodeJSON(output),
			Error:       runErr,
			StartedAt:   startedAt,
			CompletedAt: &completedAt,
		}
		if err := e.recorder.RecordRunEnd(ctx, rec); err != nil {
			logger.Error("finalizing run log failed", zap.Error(err))
		}
	}

	if e.metrics != nil {
		e.metrics.RunCompleted(string(status), result.Duration)
	}

	logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("nodes_visited", len(result.Visited)),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// runState holds the traversal state of a single run.
type runState struct {
	engine  *Engine
	graph   *graph.Graph
	tracker *Tracker
	logger  *zap.Logger
	visited map[string]bool
}

// traverse walks the graph iteratively from the entry node, one node at a
// time. It returns the terminal status, the last produced value, and an
// error message when the run failed.
func (r *runState) traverse(ctx context.Context, entry *graph.Node, input any, maxSteps int) (RunStatus, any, string) {
	current := entry
	value := input
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			r.tracker.NodeError(current.ID, err.Error())
			return RunStatusError, nil, fmt.Sprintf("run cancelled: %v", err)
		}
		if r.visited[current.ID] {
			return RunStatusError, nil, fmt.Sprintf("cycle detected at node %s", current.ID)
		}
		steps++
		if steps > maxSteps {
			return RunStatusError, nil, fmt.Sprintf("traversal exceeded %d steps", maxSteps)
		}
		r.visited[current.ID] = true

		executor, registered := r.engine.registry.Get(current.Type)
		if !registered {
			r.tracker.NodeError(current.ID, fmt.Sprintf("unknown node type %s", current.Type))
			return RunStatusError, nil, fmt.Sprintf("node %s has unregistered type %s", current.ID, current.Type)
		}

		r.tracker.NodeWaiting(current.ID, value)
		r.tracker.NodeRunning(current.ID)
		r.logger.Debug("executing node",
			zap.String("node_id", current.ID),
			zap.String("node_type", current.Type),
		)

		result, err := executor.Execute(ctx, current.Data, map[string]any{graph.PortInput: value})
		if err != nil {
			r.tracker.NodeError(current.ID, err.Error())
			r.recordNode(current.Type, NodeStatusError)
			return RunStatusError, nil, fmt.Sprintf("node %s failed: %v", current.ID, err)
		}

		if message, failed := result.ErrorPort(); failed {
			r.tracker.NodeError(current.ID, message)
			r.recordNode(current.Type, NodeStatusError)

			// Error is terminal unless the node opts into continue-on-error
			// and an error-handle edge exists to route the branch.
			if continueOnError(current.Data) {
				errorEdges := r.graph.EdgesFromPort(current.ID, graph.PortError)
				if len(errorEdges) > 0 {
					next, _ := r.graph.Node(errorEdges[0].Target)
					r.logger.Debug("routing error branch",
						zap.String("node_id", current.ID),
						zap.String("next_node", next.ID),
					)
					current = next
					value = result[graph.PortError]
					continue
				}
			}
			return RunStatusError, nil, message
		}

		port, output, populated := result.First()
		if !populated {
			// Empty result: no further traversal; the run completes with
			// the last produced value.
			r.tracker.NodeCompleted(current.ID, nil)
			r.recordNode(current.Type, NodeStatusCompleted)
			return RunStatusSuccess, value, ""
		}

		r.tracker.NodeCompleted(current.ID, output)
		r.recordNode(current.Type, NodeStatusCompleted)
		value = output

		edges := r.graph.EdgesFromPort(current.ID, port)
		if len(edges) == 0 {
			return RunStatusSuccess, value, ""
		}

		next, _ := r.graph.Node(edges[0].Target)
		current = next
	}
}

func (r *runState) recordNode(nodeType string, status NodeStatus) {
	if r.engine.metrics != nil {
		r.engine.metrics.NodeExecuted(nodeType, string(status))
	}
}

func continueOnError(data map[string]any) bool {
	v, ok := data[DataContinueOnError].(bool)
	return ok && v
}

func encodeJSON(v any) string {
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
