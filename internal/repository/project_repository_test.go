package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/graphstudio/engine/internal/models"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

func TestCreateWithSessionSeedsWatermark(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := &models.Project{ID: uuid.NewString(), Name: "fresh"}
	s := &models.Session{Token: uuid.NewString()}
	require.NoError(t, NewProjectRepository(db).CreateWithSession(ctx, p, s))
	require.Equal(t, p.ID, s.ProjectID)

	// Token resolves immediately, project preloaded.
	var got models.Session
	require.NoError(t, NewSessionRepository(db).GetByToken(ctx, s.Token, &got))
	require.Equal(t, p.ID, got.Project.ID)
	require.Equal(t, "fresh", got.Project.Name)

	wm, err := NewGraphRepository(db).Watermark(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, wm)
}

func TestListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewProjectRepository(db)

	for _, name := range []string{"first", "second"} {
		require.NoError(t, repo.CreateWithSession(ctx,
			&models.Project{ID: uuid.NewString(), Name: name},
			&models.Session{Token: uuid.NewString()},
		))
	}

	projects, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
}

func TestDeleteCascadeRemovesEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	projectRepo := NewProjectRepository(db)
	sessionRepo := NewSessionRepository(db)
	graphRepo := NewGraphRepository(db)

	p := &models.Project{ID: uuid.NewString(), Name: "doomed"}
	s := &models.Session{Token: uuid.NewString()}
	require.NoError(t, projectRepo.CreateWithSession(ctx, p, s))
	require.NoError(t, graphRepo.UpsertNode(ctx, p.ID, &models.Node{ID: "n1", Label: "x"}))
	require.NoError(t, graphRepo.UpsertEdge(ctx, p.ID, &models.Edge{ID: "e1", Source: "n1", Target: "n1"}))

	require.NoError(t, projectRepo.DeleteCascade(ctx, p.ID))

	// Every session bound to the project is revoked by the cascade.
	var got models.Session
	err := sessionRepo.GetByToken(ctx, s.Token, &got)
	require.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	_, err = graphRepo.Watermark(ctx, p.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = projectRepo.DeleteCascade(ctx, p.ID)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestDeleteCascadeScopedToOneProject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	projectRepo := NewProjectRepository(db)
	graphRepo := NewGraphRepository(db)

	doomed := seedProject(t, db)
	survivor := seedProject(t, db)
	require.NoError(t, graphRepo.UpsertNode(ctx, survivor, &models.Node{ID: "n1", Label: "keep"}))

	require.NoError(t, projectRepo.DeleteCascade(ctx, doomed))

	nodes, err := graphRepo.GetNodes(ctx, survivor)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
}
