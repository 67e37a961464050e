package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/tools"
	"github.com/BaSui01/nodeflow/types"
)

// ToolHandler exposes the tool registry to UI actions and agent loops.
type ToolHandler struct {
	registry *tools.Registry
	logger   *zap.Logger
}

// NewToolHandler creates a tool handler.
func NewToolHandler(registry *tools.Registry, logger *zap.Logger) *ToolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolHandler{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_handler")),
	}
}

// HandleList lists tools: GET /v1/tools. The optional context query
// parameter filters to tools available to that calling surface.
func (h *ToolHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	callerContext := r.URL.Query().Get("context")
	var list []*tools.Tool
	if callerContext == "" {
		list = h.registry.All()
	} else {
		list = h.registry.ForContext(callerContext)
	}
	WriteSuccess(w, list)
}

// ExecuteToolRequest is the tool dispatch request body.
type ExecuteToolRequest struct {
	Params  map[string]any `json:"params,omitempty"`
	Context string         `json:"context,omitempty"`
}

// HandleExecute dispatches one tool call: POST /v1/tools/{name}/execute.
// The tool result is returned as-is; tool failures are result values, not
// HTTP errors.
func (h *ToolHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "tool name is required"), h.logger)
		return
	}

	var req ExecuteToolRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	result := h.registry.Execute(r.Context(), name, req.Params, tools.ExecuteOptions{
		Context: req.Context,
	})
	WriteSuccess(w, result)
}
