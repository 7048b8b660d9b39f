package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/graphstudio/engine/internal/models"
	appErr "github.com/graphstudio/engine/pkg/errors"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	// GetByToken loads the session and its project in one query. A missing
	// token yields CodeForbidden: the credential was supplied but does not
	// resolve, which callers must report distinctly from a missing one.
	GetByToken(ctx context.Context, token string, dest *models.Session) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *models.Session) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create session failed")
	}
	return nil
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string, dest *models.Session) error {
	err := r.db.WithContext(ctx).Preload("Project").First(dest, "token = ?", token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeForbidden, "invalid session token")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get session failed")
	}
	return nil
}
