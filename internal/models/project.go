package models

import (
	"time"

	"gorm.io/gorm"
)

// Project is the tenancy root: every node, edge, session, and sync
// watermark is scoped to exactly one project.
type Project struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Session is an opaque bearer credential resolving to one project.
// Sessions never expire on their own; deleting the project removes them.
type Session struct {
	Token     string    `gorm:"primaryKey" json:"token"`
	ProjectID string    `gorm:"type:uuid;index;not null" json:"project_id"`
	Project   Project   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SyncStatus holds the per-project watermark: a strictly increasing
// timestamp advanced inside every mutating write transaction. It is the
// single cursor for delta queries.
type SyncStatus struct {
	ProjectID string `gorm:"type:uuid;primaryKey" json:"project_id"`
	LastSync  int64  `gorm:"not null" json:"last_sync"`
}

// AutoMigrate creates or updates the schema for all persisted entities.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Project{},
		&Session{},
		&SyncStatus{},
		&Node{},
		&Edge{},
	)
}
