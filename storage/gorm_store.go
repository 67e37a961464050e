package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/nodeflow/engine"
	"github.com/BaSui01/nodeflow/graph"
)

// GormStore implements Store over a gorm database handle. It works with
// both the pure-Go sqlite driver (development, tests) and postgres.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var (
	_ Store              = (*GormStore)(nil)
	_ engine.GraphLoader = (*GormStore)(nil)
	_ engine.RunRecorder = (*GormStore)(nil)
)

// NewGormStore creates a store over the given database handle.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "storage")),
	}
}

// Migrate creates or updates the schema for all entities.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Workflows
// ---------------------------------------------------------------------------

func (s *GormStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	if wf.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrInvalidInput)
	}
	if wf.Status == "" {
		wf.Status = StatusDraft
	}
	if err := s.db.WithContext(ctx).Create(wf).Error; err != nil {
		return fmt.Errorf("creating workflow: %w", err)
	}
	s.logger.Info("workflow created",
		zap.Uint("workflow_id", wf.ID),
		zap.String("name", wf.Name),
	)
	return nil
}

func (s *GormStore) GetWorkflow(ctx context.Context, id uint) (*Workflow, error) {
	var wf Workflow
	err := s.db.WithContext(ctx).
		Preload("Nodes").
		Preload("Edges").
		First(&wf, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("workflow %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading workflow %d: %w", id, err)
	}
	return &wf, nil
}

func (s *GormStore) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var workflows []Workflow
	if err := s.db.WithContext(ctx).Order("id").Find(&workflows).Error; err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	return workflows, nil
}

func (s *GormStore) UpdateWorkflow(ctx context.Context, id uint, update WorkflowUpdate) (*Workflow, error) {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if update.Name != nil {
		changes["name"] = *update.Name
	}
	if update.Description != nil {
		changes["description"] = *update.Description
	}
	if update.Status != nil {
		switch *update.Status {
		case StatusActive, StatusInactive, StatusDraft:
		default:
			return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, *update.Status)
		}
		changes["status"] = *update.Status
	}
	if update.AgentID != nil {
		if _, err := s.GetAgent(ctx, *update.AgentID); err != nil {
			return nil, err
		}
		changes["agent_id"] = *update.AgentID
	}
	if len(changes) == 0 {
		return wf, nil
	}

	if err := s.db.WithContext(ctx).Model(wf).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("updating workflow %d: %w", id, err)
	}
	return s.GetWorkflow(ctx, id)
}

func (s *GormStore) DeleteWorkflow(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&Workflow{}, id)
		if result.Error != nil {
			return fmt.Errorf("deleting workflow %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("workflow %d: %w", id, ErrNotFound)
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&Node{}).Error; err != nil {
			return fmt.Errorf("deleting workflow %d nodes: %w", id, err)
		}
		if err := tx.Where("workflow_id = ?", id).Delete(&Edge{}).Error; err != nil {
			return fmt.Errorf("deleting workflow %d edges: %w", id, err)
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Nodes and edges
// ---------------------------------------------------------------------------

func (s *GormStore) AddNode(ctx context.Context, workflowID uint, node graph.Node) error {
	if node.ID == "" || node.Type == "" {
		return fmt.Errorf("%w: node id and type are required", ErrInvalidInput)
	}
	if _, err := s.GetWorkflow(ctx, workflowID); err != nil {
		return err
	}

	var count int64
	s.db.WithContext(ctx).Model(&Node{}).
		Where("workflow_id = ? AND node_id = ?", workflowID, node.ID).
		Count(&count)
	if count > 0 {
		return fmt.Errorf("%w: node %s already exists in workflow %d", ErrInvalidInput, node.ID, workflowID)
	}

	row := Node{
		WorkflowID: workflowID,
		NodeID:     node.ID,
		Type:       node.Type,
		PosX:       node.Position.X,
		PosY:       node.Position.Y,
		Data:       encodeData(node.Data),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("adding node %s: %w", node.ID, err)
	}
	return nil
}

func (s *GormStore) UpdateNode(ctx context.Context, workflowID uint, nodeID string, update NodeUpdate) error {
	changes := map[string]any{}
	if update.Type != nil {
		changes["type"] = *update.Type
	}
	if update.Position != nil {
		changes["pos_x"] = update.Position.X
		changes["pos_y"] = update.Position.Y
	}
	if update.Data != nil {
		changes["data"] = encodeData(update.Data)
	}
	if len(changes) == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&Node{}).
		Where("workflow_id = ? AND node_id = ?", workflowID, nodeID).
		Updates(changes)
	if result.Error != nil {
		return fmt.Errorf("updating node %s: %w", nodeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("node %s in workflow %d: %w", nodeID, workflowID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteNode(ctx context.Context, workflowID uint, nodeID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("workflow_id = ? AND node_id = ?", workflowID, nodeID).Delete(&Node{})
		if result.Error != nil {
			return fmt.Errorf("deleting node %s: %w", nodeID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("node %s in workflow %d: %w", nodeID, workflowID, ErrNotFound)
		}
		// Edges attached to a removed node go with it.
		if err := tx.Where("workflow_id = ? AND (source = ? OR target = ?)", workflowID, nodeID, nodeID).
			Delete(&Edge{}).Error; err != nil {
			return fmt.Errorf("deleting edges of node %s: %w", nodeID, err)
		}
		return nil
	})
}

func (s *GormStore) AddEdge(ctx context.Context, workflowID uint, edge graph.Edge) error {
	if edge.ID == "" || edge.Source == "" || edge.Target == "" {
		return fmt.Errorf("%w: edge id, source, and target are required", ErrInvalidInput)
	}

	// Both endpoints must exist.
	for _, nodeID := range []string{edge.Source, edge.Target} {
		var count int64
		s.db.WithContext(ctx).Model(&Node{}).
			Where("workflow_id = ? AND node_id = ?", workflowID, nodeID).
			Count(&count)
		if count == 0 {
			return fmt.Errorf("%w: edge endpoint %s does not exist in workflow %d", ErrInvalidInput, nodeID, workflowID)
		}
	}

	row := Edge{
		WorkflowID:   workflowID,
		EdgeID:       edge.ID,
		Source:       edge.Source,
		Target:       edge.Target,
		SourceHandle: edge.SourceHandle,
		TargetHandle: edge.TargetHandle,
		Type:         edge.Type,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("adding edge %s: %w", edge.ID, err)
	}
	return nil
}

func (s *GormStore) DeleteEdge(ctx context.Context, workflowID uint, edgeID string) error {
	result := s.db.WithContext(ctx).
		Where("workflow_id = ? AND edge_id = ?", workflowID, edgeID).
		Delete(&Edge{})
	if result.Error != nil {
		return fmt.Errorf("deleting edge %s: %w", edgeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("edge %s in workflow %d: %w", edgeID, workflowID, ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Graph assembly
// ---------------------------------------------------------------------------

// WorkflowGraph assembles the persisted node and edge rows into the
// in-memory graph model. Implements engine.GraphLoader.
func (s *GormStore) WorkflowGraph(ctx context.Context, workflowID uint) (*graph.Graph, error) {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	g := &graph.Graph{
		Nodes: make([]graph.Node, 0, len(wf.Nodes)),
		Edges: make([]graph.Edge, 0, len(wf.Edges)),
	}
	for _, row := range wf.Nodes {
		g.Nodes = append(g.Nodes, graph.Node{
			ID:       row.NodeID,
			Type:     row.Type,
			Position: graph.Position{X: row.PosX, Y: row.PosY},
			Data:     decodeData(row.Data),
		})
	}
	for _, row := range wf.Edges {
		g.Edges = append(g.Edges, graph.Edge{
			ID:           row.EdgeID,
			Source:       row.Source,
			Target:       row.Target,
			SourceHandle: row.SourceHandle,
			TargetHandle: row.TargetHandle,
			Type:         row.Type,
		})
	}
	return g, nil
}

// ReplaceGraph swaps a workflow's entire graph in one transaction.
func (s *GormStore) ReplaceGraph(ctx context.Context, workflowID uint, g *graph.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if _, err := s.GetWorkflow(ctx, workflowID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workflow_id = ?", workflowID).Delete(&Node{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workflow_id = ?", workflowID).Delete(&Edge{}).Error; err != nil {
			return err
		}
		for _, n := range g.Nodes {
			row := Node{
				WorkflowID: workflowID,
				NodeID:     n.ID,
				Type:       n.Type,
				PosX:       n.Position.X,
				PosY:       n.Position.Y,
				Data:       encodeData(n.Data),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		for _, e := range g.Edges {
			row := Edge{
				WorkflowID:   workflowID,
				EdgeID:       e.ID,
				Source:       e.Source,
				Target:       e.Target,
				SourceHandle: e.SourceHandle,
				TargetHandle: e.TargetHandle,
				Type:         e.Type,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

func (s *GormStore) CreateAgent(ctx context.Context, agent *Agent) error {
	if agent.Name == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidInput)
	}
	if err := s.db.WithContext(ctx).Create(agent).Error; err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}
	return nil
}

func (s *GormStore) GetAgent(ctx context.Context, id uint) (*Agent, error) {
	var agent Agent
	err := s.db.WithContext(ctx).First(&agent, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("agent %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading agent %d: %w", id, err)
	}
	return &agent, nil
}

func (s *GormStore) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := s.db.WithContext(ctx).Order("id").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

func (s *GormStore) DeleteAgent(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Agent{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting agent %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent %d: %w", id, ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Run logs
// ---------------------------------------------------------------------------

// RecordRunStart creates the log row at run start. Implements
// engine.RunRecorder.
func (s *GormStore) RecordRunStart(ctx context.Context, rec engine.RunRecord) error {
	row := ExecutionLog{
		RunID:      rec.RunID,
		WorkflowID: rec.WorkflowID,
		Status:     string(rec.Status),
		Input:      rec.Input,
		StartedAt:  rec.StartedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating run log %s: %w", rec.RunID, err)
	}
	return nil
}

// RecordRunEnd finalizes the log row at run end.
func (s *GormStore) RecordRunEnd(ctx context.Context, rec engine.RunRecord) error {
	changes := map[string]any{
		"status":       string(rec.Status),
		"output":       rec.Output,
		"error":        rec.Error,
		"completed_at": rec.CompletedAt,
	}
	result := s.db.WithContext(ctx).Model(&ExecutionLog{}).
		Where("run_id = ?", rec.RunID).
		Updates(changes)
	if result.Error != nil {
		return fmt.Errorf("finalizing run log %s: %w", rec.RunID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run log %s: %w", rec.RunID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) GetLog(ctx context.Context, runID string) (*ExecutionLog, error) {
	var log ExecutionLog
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run log %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run log %s: %w", runID, err)
	}
	return &log, nil
}

func (s *GormStore) ListLogs(ctx context.Context, workflowID uint, limit int) ([]ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []ExecutionLog
	query := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if workflowID != 0 {
		query = query.Where("workflow_id = ?", workflowID)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("listing run logs: %w", err)
	}
	return logs, nil
}

func encodeData(data map[string]any) string {
	if data == nil {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(raw)
}

func decodeData(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	return data
}
