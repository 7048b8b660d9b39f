package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/realtime"
	"github.com/graphstudio/engine/internal/repository"
	"github.com/graphstudio/engine/pkg/database"
	appErr "github.com/graphstudio/engine/pkg/errors"
	"github.com/graphstudio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Nop()
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "engine.db"), false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

// recordingBroadcaster captures fan-out calls for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
	closed []string
}

type recordedEvent struct {
	ProjectID string
	Event     string
	Payload   any
}

func (b *recordingBroadcaster) BroadcastToProject(projectID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{ProjectID: projectID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) CloseProject(projectID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, projectID)
}

func (b *recordingBroadcaster) last(t *testing.T) recordedEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.events)
	return b.events[len(b.events)-1]
}

func newSessionService(t *testing.T, db *gorm.DB, b Broadcaster) SessionService {
	t.Helper()
	return NewSessionService(repository.NewProjectRepository(db), repository.NewSessionRepository(db), b)
}

func TestCreateProjectMintsResolvableToken(t *testing.T) {
	db := newTestDB(t)
	svc := newSessionService(t, db, nil)
	ctx := context.Background()

	p, token, err := svc.CreateProject(ctx, &CreateProjectInput{Name: "alpha", Description: "d"})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.NotEmpty(t, token)

	resolved, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, p.ID, resolved.ID)
	require.Equal(t, "alpha", resolved.Name)
}

func TestResolveUnknownToken(t *testing.T) {
	db := newTestDB(t)
	svc := newSessionService(t, db, nil)

	_, err := svc.Resolve(context.Background(), uuid.NewString())
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestJoinProjectMintsFreshToken(t *testing.T) {
	db := newTestDB(t)
	svc := newSessionService(t, db, nil)
	ctx := context.Background()

	p, first, err := svc.CreateProject(ctx, &CreateProjectInput{Name: "alpha"})
	require.NoError(t, err)

	joined, second, err := svc.JoinProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, joined.ID)
	require.NotEqual(t, first, second, "every join mints its own credential")

	// Both tokens resolve independently.
	for _, token := range []string{first, second} {
		resolved, err := svc.Resolve(ctx, token)
		require.NoError(t, err)
		require.Equal(t, p.ID, resolved.ID)
	}
}

func TestJoinUnknownProject(t *testing.T) {
	db := newTestDB(t)
	svc := newSessionService(t, db, nil)

	_, _, err := svc.JoinProject(context.Background(), uuid.NewString())
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestTokensScopedToOwnProject(t *testing.T) {
	db := newTestDB(t)
	svc := newSessionService(t, db, nil)
	graphs := NewGraphService(repository.NewGraphRepository(db), nil)
	ctx := context.Background()

	pa, tokenA, err := svc.CreateProject(ctx, &CreateProjectInput{Name: "a"})
	require.NoError(t, err)
	pb, tokenB, err := svc.CreateProject(ctx, &CreateProjectInput{Name: "b"})
	require.NoError(t, err)

	require.NoError(t, graphs.SaveNode(ctx, pa.ID, &models.Node{ID: "n1", Label: "private"}))

	// Resolving B's token yields B, and B's graph never shows A's rows.
	resolved, err := svc.Resolve(ctx, tokenB)
	require.NoError(t, err)
	require.Equal(t, pb.ID, resolved.ID)

	data, err := graphs.Graph(ctx, resolved.ID)
	require.NoError(t, err)
	require.Empty(t, data.Nodes)

	resolved, err = svc.Resolve(ctx, tokenA)
	require.NoError(t, err)
	data, err = graphs.Graph(ctx, resolved.ID)
	require.NoError(t, err)
	require.Len(t, data.Nodes, 1)
}

func TestDeleteProjectRevokesAndNotifies(t *testing.T) {
	db := newTestDB(t)
	b := &recordingBroadcaster{}
	svc := newSessionService(t, db, b)
	ctx := context.Background()

	p, token, err := svc.CreateProject(ctx, &CreateProjectInput{Name: "doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProject(ctx, p.ID))

	_, err = svc.Resolve(ctx, token)
	require.True(t, appErr.IsCode(err, appErr.CodeForbidden), "cascade revokes every session")

	ev := b.last(t)
	require.Equal(t, realtime.EventProjectDeleted, ev.Event)
	require.Equal(t, p.ID, ev.ProjectID)
	require.Equal(t, []string{p.ID}, b.closed, "room closed after the delete")
}

func TestDeleteUnknownProjectDoesNotNotify(t *testing.T) {
	db := newTestDB(t)
	b := &recordingBroadcaster{}
	svc := newSessionService(t, db, b)

	err := svc.DeleteProject(context.Background(), uuid.NewString())
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	require.Empty(t, b.events)
	require.Empty(t, b.closed)
}
