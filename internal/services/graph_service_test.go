package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/realtime"
	"github.com/graphstudio/engine/internal/repository"
)

func newGraphFixture(t *testing.T) (GraphService, *recordingBroadcaster, string) {
	t.Helper()
	db := newTestDB(t)
	b := &recordingBroadcaster{}
	sessions := newSessionService(t, db, b)
	p, _, err := sessions.CreateProject(context.Background(), &CreateProjectInput{Name: "fixture"})
	require.NoError(t, err)
	return NewGraphService(repository.NewGraphRepository(db), b), b, p.ID
}

func TestSaveNodeBroadcastsUpdate(t *testing.T) {
	graphs, b, projectID := newGraphFixture(t)
	ctx := context.Background()

	n := &models.Node{ID: "n1", Label: "Server", X: 1, Y: 2}
	require.NoError(t, graphs.SaveNode(ctx, projectID, n))

	ev := b.last(t)
	require.Equal(t, realtime.EventNodeUpdated, ev.Event)
	require.Equal(t, projectID, ev.ProjectID)
	// The broadcast payload carries the server-stamped row, so receivers
	// see the authoritative updated_at.
	sent, ok := ev.Payload.(*models.Node)
	require.True(t, ok)
	require.Equal(t, "n1", sent.ID)
	require.Greater(t, sent.UpdatedAt, int64(0))
}

func TestDeleteNodeBroadcastsID(t *testing.T) {
	graphs, b, projectID := newGraphFixture(t)
	ctx := context.Background()

	require.NoError(t, graphs.SaveNode(ctx, projectID, &models.Node{ID: "n1", Label: "x"}))
	require.NoError(t, graphs.SaveEdge(ctx, projectID, &models.Edge{ID: "e1", Source: "n1", Target: "n1"}))

	res, err := graphs.DeleteNode(ctx, projectID, "n1")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.NodesDeleted)
	require.Equal(t, int64(1), res.EdgesDeleted)

	ev := b.last(t)
	require.Equal(t, realtime.EventNodeDeleted, ev.Event)
	require.Equal(t, map[string]string{"id": "n1"}, ev.Payload)
}

func TestEdgeLifecycleBroadcasts(t *testing.T) {
	graphs, b, projectID := newGraphFixture(t)
	ctx := context.Background()

	require.NoError(t, graphs.SaveEdge(ctx, projectID, &models.Edge{ID: "e1", Source: "a", Target: "b"}))
	require.Equal(t, realtime.EventEdgeUpdated, b.last(t).Event)

	deleted, err := graphs.DeleteEdge(ctx, projectID, "e1")
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	ev := b.last(t)
	require.Equal(t, realtime.EventEdgeDeleted, ev.Event)
	require.Equal(t, map[string]string{"id": "e1"}, ev.Payload)
}

func TestImportBroadcastsSnapshot(t *testing.T) {
	graphs, b, projectID := newGraphFixture(t)
	ctx := context.Background()

	nodeCount, edgeCount, err := graphs.Import(ctx, projectID, &models.GraphData{
		Nodes: []models.Node{{ID: "n1", Label: "one"}},
		Edges: []models.Edge{},
	})
	require.NoError(t, err)
	require.Equal(t, 1, nodeCount)
	require.Zero(t, edgeCount)
	require.Equal(t, realtime.EventDataImported, b.last(t).Event)
}

func TestClearBroadcasts(t *testing.T) {
	graphs, b, projectID := newGraphFixture(t)
	ctx := context.Background()

	require.NoError(t, graphs.SaveNode(ctx, projectID, &models.Node{ID: "n1", Label: "x"}))
	require.NoError(t, graphs.Clear(ctx, projectID))
	require.Equal(t, realtime.EventDataCleared, b.last(t).Event)

	nodes, err := graphs.Nodes(ctx, projectID)
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestFailedWriteDoesNotBroadcast(t *testing.T) {
	graphs, b, _ := newGraphFixture(t)

	err := graphs.SaveNode(context.Background(), "no-such-project", &models.Node{ID: "n1", Label: "x"})
	require.Error(t, err)
	for _, ev := range b.events {
		require.NotEqual(t, realtime.EventNodeUpdated, ev.Event)
	}
}
