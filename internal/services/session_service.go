package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/graphstudio/engine/internal/models"
	"github.com/graphstudio/engine/internal/realtime"
	"github.com/graphstudio/engine/internal/repository"
	appErr "github.com/graphstudio/engine/pkg/errors"
	"github.com/graphstudio/engine/pkg/logger"
)

// Broadcaster fans mutation events out to the realtime room of a project.
// Broadcast is best-effort: delivery failures never roll back the
// persisted mutation.
type Broadcaster interface {
	BroadcastToProject(projectID, event string, payload any)
	CloseProject(projectID string)
}

// SessionService owns project lifecycle and the token → project mapping
// that gates every other operation.
type SessionService interface {
	CreateProject(ctx context.Context, input *CreateProjectInput) (*models.Project, string, error)
	JoinProject(ctx context.Context, projectID string) (*models.Project, string, error)
	// Resolve maps an opaque session token to its project. Unknown tokens
	// yield CodeForbidden.
	Resolve(ctx context.Context, token string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	// DeleteProject cascade-deletes the project, which invalidates every
	// session bound to it, then notifies and closes its realtime room.
	DeleteProject(ctx context.Context, projectID string) error
}

type CreateProjectInput struct {
	Name        string
	Description string
}

type sessionService struct {
	projectRepo repository.ProjectRepository
	sessionRepo repository.SessionRepository
	broadcast   Broadcaster
}

func NewSessionService(projectRepo repository.ProjectRepository, sessionRepo repository.SessionRepository, b Broadcaster) SessionService {
	return &sessionService{projectRepo: projectRepo, sessionRepo: sessionRepo, broadcast: b}
}

var _ SessionService = (*sessionService)(nil)

func (s *sessionService) CreateProject(ctx context.Context, input *CreateProjectInput) (*models.Project, string, error) {
	p := &models.Project{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
	}
	sess := &models.Session{Token: uuid.NewString()}
	if err := s.projectRepo.CreateWithSession(ctx, p, sess); err != nil {
		return nil, "", err
	}
	logger.L().Info("project created", zap.String("project_id", p.ID), zap.String("name", p.Name))
	return p, sess.Token, nil
}

func (s *sessionService) JoinProject(ctx context.Context, projectID string) (*models.Project, string, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, "", appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil, "", err
	}
	sess := &models.Session{Token: uuid.NewString(), ProjectID: p.ID}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, "", err
	}
	logger.L().Info("session minted", zap.String("project_id", p.ID))
	return &p, sess.Token, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*models.Project, error) {
	var sess models.Session
	if err := s.sessionRepo.GetByToken(ctx, token, &sess); err != nil {
		return nil, err
	}
	p := sess.Project
	return &p, nil
}

func (s *sessionService) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.projectRepo.List(ctx)
}

func (s *sessionService) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.projectRepo.DeleteCascade(ctx, projectID); err != nil {
		return err
	}
	logger.L().Info("project deleted", zap.String("project_id", projectID))
	if s.broadcast != nil {
		s.broadcast.BroadcastToProject(projectID, realtime.EventProjectDeleted, map[string]string{"id": projectID})
		s.broadcast.CloseProject(projectID)
	}
	return nil
}
