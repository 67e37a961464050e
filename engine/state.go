package engine

import (
	"sync"
	"time"
)

// NodeStatus is the per-node execution status within one run.
type NodeStatus string

const (
	NodeStatusWaiting   NodeStatus = "waiting"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
)

// RunStatus is the workflow-level outcome of one run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// NodeState records one visited node's lifecycle within a run. A visited
// node transitions through exactly waiting, running, then completed or
// error; nodes never visited do not appear at all.
type NodeState struct {
	Status    NodeStatus `json:"status"`
	Input     any        `json:"input,omitempty"`
	Output    any        `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartTime time.Time  `json:"start_time,omitempty"`
	EndTime   time.Time  `json:"end_time,omitempty"`
}

// FinalState is the workflow-level result delivered to completion listeners.
type FinalState struct {
	RunID       string               `json:"run_id"`
	WorkflowID  uint                 `json:"workflow_id"`
	Status      RunStatus            `json:"status"`
	Output      any                  `json:"output,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	NodeStates  map[string]NodeState `json:"node_states"`
	Visited     []string             `json:"visited"`
}

// StateListener observes node state transitions and run completion.
// Implementations must not block; they are called synchronously between
// traversal steps.
type StateListener interface {
	OnNodeStateChange(nodeID string, state NodeState)
	OnComplete(final FinalState)
}

// ListenerFuncs adapts plain functions to StateListener. Either field may
// be nil.
type ListenerFuncs struct {
	NodeStateChange func(nodeID string, state NodeState)
	Complete        func(final FinalState)
}

// OnNodeStateChange implements StateListener.
func (l ListenerFuncs) OnNodeStateChange(nodeID string, state NodeState) {
	if l.NodeStateChange != nil {
		l.NodeStateChange(nodeID, state)
	}
}

// OnComplete implements StateListener.
func (l ListenerFuncs) OnComplete(final FinalState) {
	if l.Complete != nil {
		l.Complete(final)
	}
}

// Tracker owns the execution state of a single run. Each run constructs its
// own tracker; state is never shared across concurrent runs.
type Tracker struct {
	mu        sync.RWMutex
	states    map[string]*NodeState
	visited   []string
	listeners []StateListener
}

// NewTracker creates a tracker for one run.
func NewTracker(listeners ...StateListener) *Tracker {
	return &Tracker{
		states:    make(map[string]*NodeState),
		listeners: listeners,
	}
}

// NodeWaiting records a node entering the waiting state with its input.
func (t *Tracker) NodeWaiting(nodeID string, input any) {
	t.transition(nodeID, func(s *NodeState) {
		s.Status = NodeStatusWaiting
		s.Input = input
	})
}

// NodeRunning records a node starting execution.
func (t *Tracker) NodeRunning(nodeID string) {
	t.transition(nodeID, func(s *NodeState) {
		s.Status = NodeStatusRunning
		s.StartTime = time.Now()
	})
}

// NodeCompleted records a node finishing successfully with its output.
func (t *Tracker) NodeCompleted(nodeID string, output any) {
	t.transition(nodeID, func(s *NodeState) {
		s.Status = NodeStatusCompleted
		s.Output = output
		s.EndTime = time.Now()
	})
}

// NodeError records a node finishing with an error.
func (t *Tracker) NodeError(nodeID string, message string) {
	t.transition(nodeID, func(s *NodeState) {
		s.Status = NodeStatusError
		s.Error = message
		s.EndTime = time.Now()
	})
}

func (t *Tracker) transition(nodeID string, apply func(*NodeState)) {
	t.mu.Lock()
	state, exists := t.states[nodeID]
	if !exists {
		state = &NodeState{}
		t.states[nodeID] = state
		t.visited = append(t.visited, nodeID)
	}
	apply(state)
	snapshot := *state
	listeners := t.listeners
	t.mu.Unlock()

	for _, l := range listeners {
		l.OnNodeStateChange(nodeID, snapshot)
	}
}

// Complete notifies listeners of the final run result.
func (t *Tracker) Complete(final FinalState) {
	t.mu.RLock()
	listeners := t.listeners
	t.mu.RUnlock()

	for _, l := range listeners {
		l.OnComplete(final)
	}
}

// States returns a snapshot of all recorded node states.
func (t *Tracker) States() map[string]NodeState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]NodeState, len(t.states))
	for id, s := range t.states {
		out[id] = *s
	}
	return out
}

// Visited returns the node ids in visit order.
func (t *Tracker) Visited() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.visited))
	copy(out, t.visited)
	return out
}
