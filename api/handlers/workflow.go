package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/engine"
	"github.com/BaSui01/nodeflow/storage"
	"github.com/BaSui01/nodeflow/types"
)

// WorkflowHandler serves workflow CRUD and execution.
type WorkflowHandler struct {
	store  storage.Store
	engine *engine.Engine
	logger *zap.Logger
}

// NewWorkflowHandler creates a workflow handler.
func NewWorkflowHandler(store storage.Store, eng *engine.Engine, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		store:  store,
		engine: eng,
		logger: logger.With(zap.String("component", "workflow_handler")),
	}
}

// ExecuteRequest is the execute endpoint request body.
type ExecuteRequest struct {
	Input    any            `json:"input"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExecuteResponse is the execute endpoint response body. Status is
// completed or error; the caller always gets a terminal status.
type ExecuteResponse struct {
	Status  string   `json:"status"`
	RunID   string   `json:"run_id"`
	Output  any      `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
	Visited []string `json:"visited,omitempty"`
}

// HandleExecute runs a workflow: POST /v1/workflows/{id}/execute.
func (h *WorkflowHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := workflowID(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	var req ExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	result, err := h.engine.Execute(r.Context(), id, req.Input, engine.Options{})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp := ExecuteResponse{
		RunID:   result.RunID,
		Output:  result.Output,
		Error:   result.Error,
		Visited: result.Visited,
	}
	if result.Status == engine.RunStatusSuccess {
		resp.Status = "completed"
	} else {
		resp.Status = "error"
	}
	WriteSuccess(w, resp)
}

// CreateWorkflowRequest is the create endpoint request body.
type CreateWorkflowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AgentID     *uint  `json:"agent_id,omitempty"`
}

// HandleCreate creates a workflow: POST /v1/workflows.
func (h *WorkflowHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if req.Name == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "name is required"), h.logger)
		return
	}

	wf := &storage.Workflow{
		Name:        req.Name,
		Description: req.Description,
		AgentID:     req.AgentID,
		Status:      storage.StatusDraft,
	}
	if err := h.store.CreateWorkflow(r.Context(), wf); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, wf)
}

// HandleList lists workflows: GET /v1/workflows.
func (h *WorkflowHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.store.ListWorkflows(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, workflows)
}

// HandleGet returns one workflow with its graph: GET /v1/workflows/{id}.
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := workflowID(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	wf, err := h.store.GetWorkflow(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	g, err := h.store.WorkflowGraph(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"workflow": wf, "graph": g})
}

// HandleDelete deletes a workflow: DELETE /v1/workflows/{id}.
func (h *WorkflowHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := workflowID(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if err := h.store.DeleteWorkflow(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, nil)
}

// HandleLogs lists a workflow's run logs: GET /v1/workflows/{id}/logs.
func (h *WorkflowHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	id, err := workflowID(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	logs, err := h.store.ListLogs(r.Context(), id, limit)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, logs)
}

func workflowID(r *http.Request) (uint, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, types.NewErrorf(types.ErrInvalidRequest, "invalid workflow id %q", raw)
	}
	return uint(id), nil
}
