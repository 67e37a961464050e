package storage

import (
	"time"
)

// WorkflowStatus values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDraft    = "draft"
)

// Workflow is the persisted workflow entity. The graph lives in the
// associated Node and Edge rows.
type Workflow struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"size:1024" json:"description,omitempty"`
	Status      string `gorm:"size:16;not null;default:draft" json:"status"`
	AgentID     *uint  `gorm:"index" json:"agent_id,omitempty"`

	Nodes []Node `gorm:"constraint:OnDelete:CASCADE" json:"nodes,omitempty"`
	Edges []Edge `gorm:"constraint:OnDelete:CASCADE" json:"edges,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Node is the persisted node entity. NodeID is the graph-local identifier,
// unique within its workflow; Data holds the executor configuration as a
// JSON document.
type Node struct {
	ID         uint    `gorm:"primaryKey" json:"-"`
	WorkflowID uint    `gorm:"index;uniqueIndex:idx_workflow_node,priority:1" json:"workflow_id"`
	NodeID     string  `gorm:"size:64;uniqueIndex:idx_workflow_node,priority:2" json:"node_id"`
	Type       string  `gorm:"size:64;not null" json:"type"`
	PosX       float64 `json:"pos_x"`
	PosY       float64 `json:"pos_y"`
	Data       string  `gorm:"type:text" json:"data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge is the persisted edge entity. Handles name the output/input ports
// the edge attaches to; empty handles attach to the default port.
type Edge struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	WorkflowID   uint   `gorm:"index;uniqueIndex:idx_workflow_edge,priority:1" json:"workflow_id"`
	EdgeID       string `gorm:"size:64;uniqueIndex:idx_workflow_edge,priority:2" json:"edge_id"`
	Source       string `gorm:"size:64;not null" json:"source"`
	Target       string `gorm:"size:64;not null" json:"target"`
	SourceHandle string `gorm:"size:64" json:"source_handle,omitempty"`
	TargetHandle string `gorm:"size:64" json:"target_handle,omitempty"`
	Type         string `gorm:"size:64" json:"type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Agent is the persisted agent entity workflows may reference.
type Agent struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	Description  string `gorm:"size:1024" json:"description,omitempty"`
	SystemPrompt string `gorm:"type:text" json:"system_prompt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutionLog is the persisted record of one run, created at run start and
// finalized at run end. Rows are keyed by RunID so concurrent runs of the
// same workflow never contend for one row.
type ExecutionLog struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	RunID      string `gorm:"size:64;uniqueIndex" json:"run_id"`
	WorkflowID uint   `gorm:"index" json:"workflow_id"`
	Status     string `gorm:"size:16;not null" json:"status"`
	Input      string `gorm:"type:text" json:"input,omitempty"`
	Output     string `gorm:"type:text" json:"output,omitempty"`
	Error      string `gorm:"type:text" json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AllModels lists every entity for migration.
func AllModels() []any {
	return []any{&Workflow{}, &Node{}, &Edge{}, &Agent{}, &ExecutionLog{}}
}
