// Package storage implements the storage collaborator: CRUD for workflow,
// node, edge, agent, and execution-log entities over gorm, plus assembly of
// persisted rows into the in-memory graph model the engine consumes.
package storage

import (
	"context"
	"errors"

	"github.com/BaSui01/nodeflow/engine"
	"github.com/BaSui01/nodeflow/graph"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// WorkflowUpdate carries optional workflow field updates; nil fields are
// left unchanged.
type WorkflowUpdate struct {
	Name        *string
	Description *string
	Status      *string
	AgentID     *uint
}

// NodeUpdate carries optional node field updates; nil fields are left
// unchanged.
type NodeUpdate struct {
	Type     *string
	Position *graph.Position
	Data     map[string]any
}

// Store is the storage collaborator consumed by the engine and tool
// layers.
type Store interface {
	// Workflows
	CreateWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id uint) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	UpdateWorkflow(ctx context.Context, id uint, update WorkflowUpdate) (*Workflow, error)
	DeleteWorkflow(ctx context.Context, id uint) error

	// Nodes and edges
	AddNode(ctx context.Context, workflowID uint, node graph.Node) error
	UpdateNode(ctx context.Context, workflowID uint, nodeID string, update NodeUpdate) error
	DeleteNode(ctx context.Context, workflowID uint, nodeID string) error
	AddEdge(ctx context.Context, workflowID uint, edge graph.Edge) error
	DeleteEdge(ctx context.Context, workflowID uint, edgeID string) error

	// Graph assembly (engine.GraphLoader)
	WorkflowGraph(ctx context.Context, workflowID uint) (*graph.Graph, error)
	ReplaceGraph(ctx context.Context, workflowID uint, g *graph.Graph) error

	// Agents
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id uint) (*Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
	DeleteAgent(ctx context.Context, id uint) error

	// Run logs (engine.RunRecorder)
	RecordRunStart(ctx context.Context, rec engine.RunRecord) error
	RecordRunEnd(ctx context.Context, rec engine.RunRecord) error
	GetLog(ctx context.Context, runID string) (*ExecutionLog, error)
	ListLogs(ctx context.Context, workflowID uint, limit int) ([]ExecutionLog, error)
}
