package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
)

// JobRepository provides access to jobs.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID.
func (r *JobRepository) GetByID(ctx context.Context, id models.ULID) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting job by ID: %w", err)
	}
	return &job, nil
}

// ListByProject retrieves up to limit jobs of a project, newest first.
func (r *JobRepository) ListByProject(ctx context.Context, projectID models.ULID, limit int) ([]*models.Job, error) {
	var jobs []*models.Job
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("listing jobs by project: %w", err)
	}
	return jobs, nil
}

// OldestRunnable retrieves the oldest queued job among projects that have no
// running job. Queued jobs of a busy project are skipped so one project
// cannot stall the rest of the queue.
func (r *JobRepository) OldestRunnable(ctx context.Context) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where("status = ?", models.JobStatusQueued).
		Where("NOT EXISTS (SELECT 1 FROM jobs active WHERE active.project_id = jobs.project_id AND active.status = ?)",
			models.JobStatusRunning).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting oldest runnable job: %w", err)
	}
	return &job, nil
}

// HasRunning reports whether any job of the project is currently running.
func (r *JobRepository) HasRunning(ctx context.Context, projectID models.ULID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("project_id = ? AND status = ?", projectID, models.JobStatusRunning).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("counting running jobs: %w", err)
	}
	return count > 0, nil
}

// Update updates an existing job.
func (r *JobRepository) Update(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return nil
}

// DeleteFinishedBefore removes terminal jobs older than the cutoff.
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]models.JobStatus{models.JobStatusSucceeded, models.JobStatusFailed, models.JobStatusCanceled},
			cutoff).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting finished jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
