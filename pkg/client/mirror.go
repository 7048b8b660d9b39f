package client

import "sync"

// Mirror is the local in-memory copy of one project's graph. All three
// input streams merge into it with the same rule: unconditional
// upsert-by-id (last write visible), remove-by-id for deletes. The rule
// is idempotent, so re-receiving a broadcast of our own mutation, or a
// delta row we already hold, is a no-op.
type Mirror struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[string]Edge
}

func NewMirror() *Mirror {
	return &Mirror{
		nodes: map[string]Node{},
		edges: map[string]Edge{},
	}
}

// UpsertNode overwrites the local copy unconditionally.
func (m *Mirror) UpsertNode(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
}

// RemoveNode removes the node and, synchronously, every edge referencing
// it as source or target — the mirror never holds a dangling edge.
func (m *Mirror) RemoveNode(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	for eid, e := range m.edges {
		if e.Source == id || e.Target == id {
			delete(m.edges, eid)
		}
	}
}

// UpsertEdge overwrites the local copy unconditionally.
func (m *Mirror) UpsertEdge(e Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[e.ID] = e
}

// RemoveEdge removes one edge.
func (m *Mirror) RemoveEdge(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges, id)
}

// Merge applies a snapshot or delta: every row is upserted by id. Server
// state wins over whatever the mirror held.
func (m *Mirror) Merge(nodes []Node, edges []Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	for _, e := range edges {
		m.edges[e.ID] = e
	}
}

// Replace discards the mirror and installs the given rows; used for
// initialData snapshots and dataImported events.
func (m *Mirror) Replace(nodes []Node, edges []Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[string]Node, len(nodes))
	m.edges = make(map[string]Edge, len(edges))
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	for _, e := range edges {
		m.edges[e.ID] = e
	}
}

// Clear empties the mirror.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = map[string]Node{}
	m.edges = map[string]Edge{}
}

// Node returns the local copy of a node.
func (m *Mirror) Node(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// Edge returns the local copy of an edge.
func (m *Mirror) Edge(id string) (Edge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[id]
	return e, ok
}

// Snapshot returns copies of the current node and edge sets.
func (m *Mirror) Snapshot() ([]Node, []Edge) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	edges := make([]Edge, 0, len(m.edges))
	for _, e := range m.edges {
		edges = append(edges, e)
	}
	return nodes, edges
}

// Len returns the node and edge counts.
func (m *Mirror) Len() (nodes, edges int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes), len(m.edges)
}
