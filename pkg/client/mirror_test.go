package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMirrorUpsertIsIdempotent(t *testing.T) {
	m := NewMirror()

	n := Node{ID: "n1", Label: "Server", X: 1, Y: 2, UpdatedAt: 10}
	m.UpsertNode(n)
	// Re-receiving our own mutation as a broadcast is a no-op.
	m.UpsertNode(n)

	nodes, edges := m.Len()
	require.Equal(t, 1, nodes)
	require.Zero(t, edges)

	got, ok := m.Node("n1")
	require.True(t, ok)
	require.Equal(t, "Server", got.Label)
}

func TestMirrorLastWriteVisible(t *testing.T) {
	m := NewMirror()

	m.UpsertNode(Node{ID: "n1", Label: "old"})
	m.UpsertNode(Node{ID: "n1", Label: "new", UpdatedAt: 99})

	got, ok := m.Node("n1")
	require.True(t, ok)
	require.Equal(t, "new", got.Label)
	nodes, _ := m.Len()
	require.Equal(t, 1, nodes)
}

func TestMirrorRemoveNodeCascadesEdges(t *testing.T) {
	m := NewMirror()
	m.UpsertNode(Node{ID: "a"})
	m.UpsertNode(Node{ID: "b"})
	m.UpsertEdge(Edge{ID: "e1", Source: "a", Target: "b"})
	m.UpsertEdge(Edge{ID: "e2", Source: "b", Target: "a"})
	m.UpsertEdge(Edge{ID: "e3", Source: "b", Target: "b"})

	m.RemoveNode("a")

	_, ok := m.Node("a")
	require.False(t, ok)
	_, edges := m.Len()
	require.Equal(t, 1, edges, "edges touching the removed node go with it")
	_, ok = m.Edge("e3")
	require.True(t, ok)
}

func TestMirrorMergeUpsertsByID(t *testing.T) {
	m := NewMirror()
	m.UpsertNode(Node{ID: "n1", Label: "stale"})
	m.UpsertNode(Node{ID: "n2", Label: "untouched"})

	m.Merge(
		[]Node{{ID: "n1", Label: "fresh"}, {ID: "n3", Label: "added"}},
		[]Edge{{ID: "e1", Source: "n1", Target: "n3"}},
	)

	nodes, edges := m.Len()
	require.Equal(t, 3, nodes, "a delta never removes rows")
	require.Equal(t, 1, edges)
	got, _ := m.Node("n1")
	require.Equal(t, "fresh", got.Label)
}

func TestMirrorReplaceDiscardsOldState(t *testing.T) {
	m := NewMirror()
	m.UpsertNode(Node{ID: "gone"})
	m.UpsertEdge(Edge{ID: "gone-too"})

	m.Replace([]Node{{ID: "n1"}}, nil)

	nodes, edges := m.Len()
	require.Equal(t, 1, nodes)
	require.Zero(t, edges)
	_, ok := m.Node("gone")
	require.False(t, ok)
}

func TestMirrorSnapshotCopies(t *testing.T) {
	m := NewMirror()
	m.UpsertNode(Node{ID: "n1"})

	nodes, _ := m.Snapshot()
	require.Len(t, nodes, 1)
	nodes[0].ID = "mutated"

	_, ok := m.Node("n1")
	require.True(t, ok, "callers cannot mutate the mirror through a snapshot")
}
