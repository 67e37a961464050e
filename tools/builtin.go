package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/engine"
	"github.com/BaSui01/nodeflow/graph"
	"github.com/BaSui01/nodeflow/storage"
	"github.com/BaSui01/nodeflow/types"
)

// Tool categories.
const (
	CategoryWorkflow  = "workflow"
	CategoryCanvas    = "canvas"
	CategoryAgent     = "agent"
	CategoryExecution = "execution"
)

// ContextCanvas marks canvas-only tools; they are hidden from non-canvas
// callers.
const ContextCanvas = "canvas"

// Deps are the collaborators the built-in tools operate on.
type Deps struct {
	Store     storage.Store
	Engine    *engine.Engine
	Executors *engine.Registry
	Logger    *zap.Logger
}

// RegisterBuiltins registers the built-in tool set: workflow and agent CRUD,
// canvas graph mutation, and workflow execution.
func RegisterBuiltins(registry *Registry, deps Deps) error {
	if deps.Store == nil || deps.Engine == nil || deps.Executors == nil {
		return types.NewError(types.ErrRegistration, "tool dependencies are incomplete")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	b := &builtins{deps: deps}
	for _, tool := range b.tools() {
		if !registry.Register(tool) {
			return types.NewErrorf(types.ErrRegistration, "registering tool %q failed", tool.Name)
		}
	}
	return nil
}

type builtins struct {
	deps Deps
}

func (b *builtins) tools() []*Tool {
	return []*Tool{
		{
			Name:        "create_workflow",
			Description: "Create a new workflow, optionally bound to an agent.",
			Category:    CategoryWorkflow,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"name":        types.StringSchema("Workflow name"),
				"description": types.StringSchema("Workflow description"),
				"agentId":     types.IntegerSchema("Agent to associate with the workflow"),
			}, "name"),
			Execute: b.createWorkflow,
		},
		{
			Name:        "list_workflows",
			Description: "List all workflows.",
			Category:    CategoryWorkflow,
			Parameters:  types.ObjectSchema(nil),
			Execute:     b.listWorkflows,
		},
		{
			Name:        "get_workflow",
			Description: "Get a workflow together with its graph.",
			Category:    CategoryWorkflow,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
			}, "workflowId"),
			Execute: b.getWorkflow,
		},
		{
			Name:        "update_workflow",
			Description: "Update a workflow's name, description, status, or agent.",
			Category:    CategoryWorkflow,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId":  types.IntegerSchema("Workflow identifier"),
				"name":        types.StringSchema("New name"),
				"description": types.StringSchema("New description"),
				"status": {
					Type:        types.SchemaTypeString,
					Description: "New status",
					Enum:        []any{storage.StatusActive, storage.StatusInactive, storage.StatusDraft},
				},
				"agentId": types.IntegerSchema("New agent association"),
			}, "workflowId"),
			Execute: b.updateWorkflow,
		},
		{
			Name:        "delete_workflow",
			Description: "Delete a workflow and its graph.",
			Category:    CategoryWorkflow,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
			}, "workflowId"),
			Execute: b.deleteWorkflow,
		},
		{
			Name:        "add_node",
			Description: "Add a node of a registered type to a workflow graph.",
			Category:    CategoryCanvas,
			Contexts:    []string{ContextCanvas},
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
				"nodeId":     types.StringSchema("Graph-local node id"),
				"nodeType":   types.StringSchema("Registered node type"),
				"x":          {Type: types.SchemaTypeNumber, Description: "Canvas x position"},
				"y":          {Type: types.SchemaTypeNumber, Description: "Canvas y position"},
				"data":       types.ObjectParamSchema("Node configuration"),
			}, "workflowId", "nodeId", "nodeType"),
			Execute: b.addNode,
		},
		{
			Name:        "update_node",
			Description: "Update a node's configuration or position.",
			Category:    CategoryCanvas,
			Contexts:    []string{ContextCanvas},
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
				"nodeId":     types.StringSchema("Graph-local node id"),
				"x":          {Type: types.SchemaTypeNumber, Description: "Canvas x position"},
				"y":          {Type: types.SchemaTypeNumber, Description: "Canvas y position"},
				"data":       types.ObjectParamSchema("Node configuration"),
			}, "workflowId", "nodeId"),
			Execute: b.updateNode,
		},
		{
			Name:        "delete_node",
			Description: "Remove a node and its attached edges from a workflow graph.",
			Category:    CategoryCanvas,
			Contexts:    []string{ContextCanvas},
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
				"nodeId":     types.StringSchema("Graph-local node id"),
			}, "workflowId", "nodeId"),
			Execute: b.deleteNode,
		},
		{
			Name:        "add_edge",
			Description: "Connect two nodes in a workflow graph.",
			Category:    CategoryCanvas,
			Contexts:    []string{ContextCanvas},
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId":   types.IntegerSchema("Workflow identifier"),
				"edgeId":       types.StringSchema("Graph-local edge id"),
				"source":       types.StringSchema("Source node id"),
				"target":       types.StringSchema("Target node id"),
				"sourceHandle": types.StringSchema("Source output port"),
				"targetHandle": types.StringSchema("Target input port"),
			}, "workflowId", "edgeId", "source", "target"),
			Execute: b.addEdge,
		},
		{
			Name:        "delete_edge",
			Description: "Remove an edge from a workflow graph.",
			Category:    CategoryCanvas,
			Contexts:    []string{ContextCanvas},
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
				"edgeId":     types.StringSchema("Graph-local edge id"),
			}, "workflowId", "edgeId"),
			Execute: b.deleteEdge,
		},
		{
			Name:        "execute_workflow",
			Description: "Execute a workflow against an input and return the run result.",
			Category:    CategoryExecution,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
				"input":      {Description: "Run input payload"},
			}, "workflowId"),
			Execute: b.executeWorkflow,
		},
		{
			Name:        "list_node_types",
			Description: "List registered node types with their metadata.",
			Category:    CategoryCanvas,
			Parameters:  types.ObjectSchema(nil),
			Execute:     b.listNodeTypes,
		},
		{
			Name:        "create_agent",
			Description: "Create a new agent.",
			Category:    CategoryAgent,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"name":         types.StringSchema("Agent name"),
				"description":  types.StringSchema("Agent description"),
				"systemPrompt": types.StringSchema("System prompt"),
			}, "name"),
			Execute: b.createAgent,
		},
		{
			Name:        "list_agents",
			Description: "List all agents.",
			Category:    CategoryAgent,
			Parameters:  types.ObjectSchema(nil),
			Execute:     b.listAgents,
		},
		{
			Name:        "delete_agent",
			Description: "Delete an agent.",
			Category:    CategoryAgent,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"agentId": types.IntegerSchema("Agent identifier"),
			}, "agentId"),
			Execute: b.deleteAgent,
		},
		{
			Name:        "get_logs",
			Description: "List recent run logs, optionally for one workflow.",
			Category:    CategoryExecution,
			Parameters: types.ObjectSchema(map[string]*types.JSONSchema{
				"workflowId": types.IntegerSchema("Workflow identifier"),
				"limit":      types.IntegerSchema("Maximum number of logs"),
			}),
			Execute: b.getLogs,
		},
	}
}

// ---------------------------------------------------------------------------
// Workflow tools
// ---------------------------------------------------------------------------

func (b *builtins) createWorkflow(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	wf := &storage.Workflow{
		Name:        stringParam(params, "name"),
		Description: stringParam(params, "description"),
		Status:      storage.StatusDraft,
	}
	if agentID, ok := uintParam(params, "agentId"); ok {
		if _, err := b.deps.Store.GetAgent(ctx, agentID); err != nil {
			return Failure("agent %d does not exist", agentID)
		}
		wf.AgentID = &agentID
	}
	if err := b.deps.Store.CreateWorkflow(ctx, wf); err != nil {
		return Failure("creating workflow failed: %v", err)
	}
	return Success(fmt.Sprintf("workflow %q created", wf.Name), wf)
}

func (b *builtins) listWorkflows(ctx context.Context, _ map[string]any, _ ExecuteOptions) ToolResult {
	workflows, err := b.deps.Store.ListWorkflows(ctx)
	if err != nil {
		return Failure("listing workflows failed: %v", err)
	}
	return Success(fmt.Sprintf("%d workflows", len(workflows)), workflows)
}

func (b *builtins) getWorkflow(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	id, _ := uintParam(params, "workflowId")
	wf, err := b.deps.Store.GetWorkflow(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("workflow %d does not exist", id)
		}
		return Failure("loading workflow failed: %v", err)
	}
	g, err := b.deps.Store.WorkflowGraph(ctx, id)
	if err != nil {
		return Failure("assembling graph failed: %v", err)
	}
	return Success("", map[string]any{"workflow": wf, "graph": g})
}

func (b *builtins) updateWorkflow(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	id, _ := uintParam(params, "workflowId")

	var update storage.WorkflowUpdate
	if v, ok := params["name"].(string); ok {
		update.Name = &v
	}
	if v, ok := params["description"].(string); ok {
		update.Description = &v
	}
	if v, ok := params["status"].(string); ok {
		update.Status = &v
	}
	if v, ok := uintParam(params, "agentId"); ok {
		update.AgentID = &v
	}

	wf, err := b.deps.Store.UpdateWorkflow(ctx, id, update)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("workflow %d does not exist", id)
		}
		return Failure("updating workflow failed: %v", err)
	}
	return Success(fmt.Sprintf("workflow %d updated", id), wf)
}

func (b *builtins) deleteWorkflow(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	id, _ := uintParam(params, "workflowId")
	if err := b.deps.Store.DeleteWorkflow(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("workflow %d does not exist", id)
		}
		return Failure("deleting workflow failed: %v", err)
	}
	return Success(fmt.Sprintf("workflow %d deleted", id), nil)
}

// ---------------------------------------------------------------------------
// Canvas tools
// ---------------------------------------------------------------------------

func (b *builtins) addNode(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")
	nodeType := stringParam(params, "nodeType")

	if !b.deps.Executors.Has(nodeType) {
		return Failure("Invalid node type %q. Valid types: %s",
			nodeType, strings.Join(b.deps.Executors.Types(), ", "))
	}

	data, _ := params["data"].(map[string]any)
	if data == nil {
		if meta, ok := b.deps.Executors.Metadata(nodeType); ok && meta.DefaultData != nil {
			data = make(map[string]any, len(meta.DefaultData))
			for k, v := range meta.DefaultData {
				data[k] = v
			}
		}
	}
	if err := b.deps.Executors.ValidateData(nodeType, data); err != nil {
		return Failure("invalid node data: %v", err)
	}

	node := graph.Node{
		ID:       stringParam(params, "nodeId"),
		Type:     nodeType,
		Position: graph.Position{X: floatParam(params, "x"), Y: floatParam(params, "y")},
		Data:     data,
	}
	if err := b.deps.Store.AddNode(ctx, workflowID, node); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("workflow %d does not exist", workflowID)
		}
		return Failure("adding node failed: %v", err)
	}
	return Success(fmt.Sprintf("node %s added", node.ID), node)
}

func (b *builtins) updateNode(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")
	nodeID := stringParam(params, "nodeId")

	var update storage.NodeUpdate
	_, hasX := params["x"]
	_, hasY := params["y"]
	if hasX || hasY {
		update.Position = &graph.Position{X: floatParam(params, "x"), Y: floatParam(params, "y")}
	}
	if data, ok := params["data"].(map[string]any); ok {
		update.Data = data
	}

	if err := b.deps.Store.UpdateNode(ctx, workflowID, nodeID, update); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("node %s does not exist in workflow %d", nodeID, workflowID)
		}
		return Failure("updating node failed: %v", err)
	}
	return Success(fmt.Sprintf("node %s updated", nodeID), nil)
}

func (b *builtins) deleteNode(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")
	nodeID := stringParam(params, "nodeId")
	if err := b.deps.Store.DeleteNode(ctx, workflowID, nodeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("node %s does not exist in workflow %d", nodeID, workflowID)
		}
		return Failure("deleting node failed: %v", err)
	}
	return Success(fmt.Sprintf("node %s deleted", nodeID), nil)
}

func (b *builtins) addEdge(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")
	edge := graph.Edge{
		ID:           stringParam(params, "edgeId"),
		Source:       stringParam(params, "source"),
		Target:       stringParam(params, "target"),
		SourceHandle: stringParam(params, "sourceHandle"),
		TargetHandle: stringParam(params, "targetHandle"),
	}
	if err := b.deps.Store.AddEdge(ctx, workflowID, edge); err != nil {
		return Failure("adding edge failed: %v", err)
	}
	return Success(fmt.Sprintf("edge %s added", edge.ID), edge)
}

func (b *builtins) deleteEdge(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")
	edgeID := stringParam(params, "edgeId")
	if err := b.deps.Store.DeleteEdge(ctx, workflowID, edgeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("edge %s does not exist in workflow %d", edgeID, workflowID)
		}
		return Failure("deleting edge failed: %v", err)
	}
	return Success(fmt.Sprintf("edge %s deleted", edgeID), nil)
}

func (b *builtins) listNodeTypes(_ context.Context, _ map[string]any, _ ExecuteOptions) ToolResult {
	nodeTypes := b.deps.Executors.Types()
	out := make([]map[string]any, 0, len(nodeTypes))
	for _, t := range nodeTypes {
		entry := map[string]any{"type": t}
		if meta, ok := b.deps.Executors.Metadata(t); ok {
			entry["label"] = meta.Label
			entry["description"] = meta.Description
			entry["default_data"] = meta.DefaultData
		}
		out = append(out, entry)
	}
	return Success(fmt.Sprintf("%d node types", len(out)), out)
}

// ---------------------------------------------------------------------------
// Execution tools
// ---------------------------------------------------------------------------

func (b *builtins) executeWorkflow(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")

	result, err := b.deps.Engine.Execute(ctx, workflowID, params["input"], engine.Options{})
	if err != nil {
		return Failure("executing workflow %d failed: %v", workflowID, err)
	}
	if result.Status != engine.RunStatusSuccess {
		return ToolResult{Success: false, Error: result.Error, Data: result}
	}
	return Success(fmt.Sprintf("run %s completed", result.RunID), result)
}

func (b *builtins) getLogs(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	workflowID, _ := uintParam(params, "workflowId")
	limit := 0
	if v, ok := uintParam(params, "limit"); ok {
		limit = int(v)
	}
	logs, err := b.deps.Store.ListLogs(ctx, workflowID, limit)
	if err != nil {
		return Failure("listing logs failed: %v", err)
	}
	return Success(fmt.Sprintf("%d logs", len(logs)), logs)
}

// ---------------------------------------------------------------------------
// Agent tools
// ---------------------------------------------------------------------------

func (b *builtins) createAgent(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	agent := &storage.Agent{
		Name:         stringParam(params, "name"),
		Description:  stringParam(params, "description"),
		SystemPrompt: stringParam(params, "systemPrompt"),
	}
	if err := b.deps.Store.CreateAgent(ctx, agent); err != nil {
		return Failure("creating agent failed: %v", err)
	}
	return Success(fmt.Sprintf("agent %q created", agent.Name), agent)
}

func (b *builtins) listAgents(ctx context.Context, _ map[string]any, _ ExecuteOptions) ToolResult {
	agents, err := b.deps.Store.ListAgents(ctx)
	if err != nil {
		return Failure("listing agents failed: %v", err)
	}
	return Success(fmt.Sprintf("%d agents", len(agents)), agents)
}

func (b *builtins) deleteAgent(ctx context.Context, params map[string]any, _ ExecuteOptions) ToolResult {
	id, _ := uintParam(params, "agentId")
	if err := b.deps.Store.DeleteAgent(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Failure("agent %d does not exist", id)
		}
		return Failure("deleting agent failed: %v", err)
	}
	return Success(fmt.Sprintf("agent %d deleted", id), nil)
}

// ---------------------------------------------------------------------------
// Parameter helpers
// ---------------------------------------------------------------------------

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func floatParam(params map[string]any, key string) float64 {
	switch n := params[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func uintParam(params map[string]any, key string) (uint, bool) {
	switch n := params[key].(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint(n), true
	case uint:
		return n, true
	default:
		return 0, false
	}
}
