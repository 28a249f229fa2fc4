// Package repository provides data access types for reelsmith entities.
// Lookups that miss return (nil, nil) so callers decide the error mapping.
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
)

// ProjectRepository provides access to projects and their ownership rows.
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create creates a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id models.ULID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting project by ID: %w", err)
	}
	return &project, nil
}

// ListByPrincipal retrieves the projects owned by a principal, newest first.
func (r *ProjectRepository) ListByPrincipal(ctx context.Context, principalID string) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.WithContext(ctx).
		Joins("JOIN project_owners ON project_owners.project_id = projects.id").
		Where("project_owners.principal_id = ?", principalID).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("listing projects by principal: %w", err)
	}
	return projects, nil
}

// ListAll retrieves every project, newest first. Used when auth is disabled.
func (r *ProjectRepository) ListAll(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// Update updates an existing project.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

// SetOwner records ownership of a project by a principal.
func (r *ProjectRepository) SetOwner(ctx context.Context, projectID models.ULID, principalID string) error {
	owner := models.ProjectOwner{
		ProjectID:   projectID,
		PrincipalID: principalID,
		CreatedAt:   models.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&owner).Error; err != nil {
		return fmt.Errorf("setting project owner: %w", err)
	}
	return nil
}

// IsOwner reports whether the principal owns the project.
func (r *ProjectRepository) IsOwner(ctx context.Context, projectID models.ULID, principalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProjectOwner{}).
		Where("project_id = ? AND principal_id = ?", projectID, principalID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking project owner: %w", err)
	}
	return count > 0, nil
}
