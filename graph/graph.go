// Package graph defines the workflow graph data model: nodes, edges, and
// named ports. The model is pure data; traversal behavior lives in the
// engine package.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/nodeflow/types"
)

// Well-known port names. A node with a single unnamed output attaches to
// the default port; branching nodes expose true/false/error ports.
const (
	PortDefault = "default"
	PortTrue    = "true"
	PortFalse   = "false"
	PortError   = "error"
	PortInput   = "input"
)

// Position represents node placement on the visual canvas. It is opaque to
// execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a configured instance of a registered executor type.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data,omitempty"`
}

// Edge represents a directed connection between two nodes. SourceHandle and
// TargetHandle name the output/input port the edge attaches to; an empty
// handle attaches to the default port.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Type         string `json:"type,omitempty"`
}

// Graph is the persisted wire shape of a workflow graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Parse decodes a graph from its JSON wire format.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, types.NewError(types.ErrGraphIntegrity, "malformed graph document").WithCause(err)
	}
	return &g, nil
}

// Encode serializes the graph to its JSON wire format.
func (g *Graph) Encode() ([]byte, error) {
	return json.Marshal(g)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// FirstByType returns the first node (in graph order) whose type matches.
func (g *Graph) FirstByType(nodeType string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Type == nodeType {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// EdgesFrom returns all outgoing edges of a node, in graph order.
func (g *Graph) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// EdgesFromPort returns the outgoing edges of a node attached to the given
// output port. An edge without a source handle attaches to the default port.
func (g *Graph) EdgesFromPort(nodeID, port string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source != nodeID {
			continue
		}
		handle := e.SourceHandle
		if handle == "" {
			handle = PortDefault
		}
		if handle == port {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks graph integrity: node ids must be unique within the graph
// and every edge must reference existing nodes.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return types.NewError(types.ErrGraphIntegrity, "node has empty id")
		}
		if n.Type == "" {
			return types.NewErrorf(types.ErrGraphIntegrity, "node %s has empty type", n.ID)
		}
		if seen[n.ID] {
			return types.NewErrorf(types.ErrGraphIntegrity, "duplicate node id %s", n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range g.Edges {
		if !seen[e.Source] {
			return types.NewErrorf(types.ErrGraphIntegrity, "edge %s references unknown source node %s", e.ID, e.Source)
		}
		if !seen[e.Target] {
			return types.NewErrorf(types.ErrGraphIntegrity, "edge %s references unknown target node %s", e.ID, e.Target)
		}
	}
	return nil
}

// HasCycle reports whether the graph contains a directed cycle, using
// Kahn's algorithm over the edge set.
func (g *Graph) HasCycle() bool {
	indegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		indegree[e.Target]++
	}

	queue := make([]string, 0, len(g.Nodes))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	removed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		removed++
		for _, e := range g.EdgesFrom(id) {
			indegree[e.Target]--
			if indegree[e.Target] == 0 {
				queue = append(queue, e.Target)
			}
		}
	}
	return removed != len(g.Nodes)
}

// String returns a short human-readable summary.
func (g *Graph) String() string {
	return fmt.Sprintf("graph(%d nodes, %d edges)", len(g.Nodes), len(g.Edges))
}
