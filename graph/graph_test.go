package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/types"
)

func sampleGraph() *Graph {
	return &Graph{
		Nodes: []Node{
			{ID: "a", Type: "trigger", Position: Position{X: 0, Y: 0}},
			{ID: "b", Type: "decision", Position: Position{X: 200, Y: 0}, Data: map[string]any{"condition": "value > 1"}},
			{ID: "c", Type: "function", Position: Position{X: 400, Y: 0}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c", SourceHandle: PortTrue},
		},
	}
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

func TestParse_WireFormat(t *testing.T) {
	t.Parallel()
	raw := `{
		"nodes": [
			{"id": "n1", "type": "trigger", "position": {"x": 10, "y": 20}},
			{"id": "n2", "type": "decision", "position": {"x": 30, "y": 40}, "data": {"condition": "value > 0"}}
		],
		"edges": [
			{"id": "e1", "source": "n1", "target": "n2", "sourceHandle": "default"}
		]
	}`

	g, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)

	assert.Equal(t, "n1", g.Nodes[0].ID)
	assert.Equal(t, 10.0, g.Nodes[0].Position.X)
	assert.Equal(t, "value > 0", g.Nodes[1].Data["condition"])
	assert.Equal(t, "default", g.Edges[0].SourceHandle)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{nodes: [}`))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrGraphIntegrity))
}

func TestEncode_Roundtrip(t *testing.T) {
	t.Parallel()
	g := sampleGraph()

	raw, err := g.Encode()
	require.NoError(t, err)

	decoded, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, g, decoded)
}

func TestEncode_HandleOmittedWhenEmpty(t *testing.T) {
	t.Parallel()
	g := &Graph{
		Nodes: []Node{{ID: "a", Type: "trigger"}, {ID: "b", Type: "function"}},
		Edges: []Edge{{ID: "e1", Source: "a", Target: "b"}},
	}
	raw, err := g.Encode()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	edges := doc["edges"].([]any)
	edge := edges[0].(map[string]any)
	_, present := edge["sourceHandle"]
	assert.False(t, present)
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidate_OK(t *testing.T) {
	t.Parallel()
	require.NoError(t, sampleGraph().Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Graph)
		message string
	}{
		{
			name:    "duplicate node id",
			mutate:  func(g *Graph) { g.Nodes = append(g.Nodes, Node{ID: "a", Type: "trigger"}) },
			message: "duplicate node id",
		},
		{
			name:    "empty node id",
			mutate:  func(g *Graph) { g.Nodes = append(g.Nodes, Node{Type: "trigger"}) },
			message: "empty id",
		},
		{
			name:    "empty node type",
			mutate:  func(g *Graph) { g.Nodes = append(g.Nodes, Node{ID: "z"}) },
			message: "empty type",
		},
		{
			name:    "dangling source",
			mutate:  func(g *Graph) { g.Edges = append(g.Edges, Edge{ID: "bad", Source: "ghost", Target: "a"}) },
			message: "unknown source node",
		},
		{
			name:    "dangling target",
			mutate:  func(g *Graph) { g.Edges = append(g.Edges, Edge{ID: "bad", Source: "a", Target: "ghost"}) },
			message: "unknown target node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := sampleGraph()
			tt.mutate(g)
			err := g.Validate()
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrGraphIntegrity))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

// ---------------------------------------------------------------------------
// Lookup helpers
// ---------------------------------------------------------------------------

func TestNodeLookup(t *testing.T) {
	t.Parallel()
	g := sampleGraph()

	node, found := g.Node("b")
	require.True(t, found)
	assert.Equal(t, "decision", node.Type)

	_, found = g.Node("ghost")
	assert.False(t, found)
}

func TestFirstByType(t *testing.T) {
	t.Parallel()
	g := sampleGraph()
	g.Nodes = append(g.Nodes, Node{ID: "a2", Type: "trigger"})

	node, found := g.FirstByType("trigger")
	require.True(t, found)
	assert.Equal(t, "a", node.ID, "first match by graph order wins")

	_, found = g.FirstByType("ghost_type")
	assert.False(t, found)
}

func TestEdgesFromPort(t *testing.T) {
	t.Parallel()
	g := sampleGraph()

	// Unnamed handle attaches to the default port.
	edges := g.EdgesFromPort("a", PortDefault)
	require.Len(t, edges, 1)
	assert.Equal(t, "e1", edges[0].ID)

	edges = g.EdgesFromPort("b", PortTrue)
	require.Len(t, edges, 1)
	assert.Equal(t, "c", edges[0].Target)

	assert.Empty(t, g.EdgesFromPort("b", PortFalse))
	assert.Empty(t, g.EdgesFromPort("c", PortDefault))
}

// ---------------------------------------------------------------------------
// Cycle detection
// ---------------------------------------------------------------------------

func TestHasCycle(t *testing.T) {
	t.Parallel()

	acyclic := sampleGraph()
	assert.False(t, acyclic.HasCycle())

	cyclic := sampleGraph()
	cyclic.Edges = append(cyclic.Edges, Edge{ID: "back", Source: "c", Target: "a"})
	assert.True(t, cyclic.HasCycle())

	selfLoop := &Graph{
		Nodes: []Node{{ID: "a", Type: "trigger"}},
		Edges: []Edge{{ID: "e", Source: "a", Target: "a"}},
	}
	assert.True(t, selfLoop.HasCycle())
}
