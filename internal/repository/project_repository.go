package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/graphstudio/engine/internal/models"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	List(ctx context.Context) ([]models.Project, error)
	// CreateWithSession creates the project, its initial session token,
	// and a zero-valued sync watermark in one transaction.
	CreateWithSession(ctx context.Context, p *models.Project, s *models.Session) error
	// DeleteCascade removes the project and every entity scoped to it:
	// edges, nodes, sessions, and the sync watermark.
	DeleteCascade(ctx context.Context, projectID string) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) List(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects failed")
	}
	return out, nil
}

func (r *projectRepository) CreateWithSession(ctx context.Context, p *models.Project, s *models.Session) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		s.ProjectID = p.ID
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		return tx.Create(&models.SyncStatus{ProjectID: p.ID, LastSync: 0}).Error
	})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create project failed")
	}
	return nil
}

func (r *projectRepository) DeleteCascade(ctx context.Context, projectID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FK ordering: edges before nodes, scoped rows before the project.
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Edge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Node{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.SyncStatus{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", projectID).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErr.New(appErr.CodeNotFound, "project not found")
		}
		return nil
	})
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return err
		}
		return appErr.Wrap(err, appErr.CodeInternal, "delete project failed")
	}
	return nil
}
