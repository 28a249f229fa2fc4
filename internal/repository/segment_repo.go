package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelsmith/reelsmith/internal/models"
)

// SegmentRepository provides access to segments.
type SegmentRepository struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// Get retrieves the segment at (projectID, index).
func (r *SegmentRepository) Get(ctx context.Context, projectID models.ULID, index int) (*models.Segment, error) {
	var segment models.Segment
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND seg_index = ?", projectID, index).
		First(&segment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting segment: %w", err)
	}
	return &segment, nil
}

// ListByProject retrieves all segments of a project ordered by index.
func (r *SegmentRepository) ListByProject(ctx context.Context, projectID models.ULID) ([]*models.Segment, error) {
	var segments []*models.Segment
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("seg_index ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	return segments, nil
}

// Upsert inserts or replaces the segment at (project_id, seg_index).
func (r *SegmentRepository) Upsert(ctx context.Context, segment *models.Segment) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}, {Name: "seg_index"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"segment_script", "video_prompt", "video_path",
				"video_description", "last_frame_path", "status", "updated_at",
			}),
		}).
		Create(segment).Error
	if err != nil {
		return fmt.Errorf("upserting segment: %w", err)
	}
	return nil
}

// Update updates an existing segment.
func (r *SegmentRepository) Update(ctx context.Context, segment *models.Segment) error {
	if err := r.db.WithContext(ctx).Save(segment).Error; err != nil {
		return fmt.Errorf("updating segment: %w", err)
	}
	return nil
}

// InvalidateAfter demotes every segment with index > after to pending and
// clears its derived fields.
func (r *SegmentRepository) InvalidateAfter(ctx context.Context, projectID models.ULID, after int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Segment{}).
		Where("project_id = ? AND seg_index > ?", projectID, after).
		Updates(map[string]any{
			"segment_script":    "",
			"video_prompt":      "",
			"video_path":        "",
			"video_description": "",
			"last_frame_path":   "",
			"status":            models.SegmentStatusPending,
		}).Error
	if err != nil {
		return fmt.Errorf("invalidating downstream segments: %w", err)
	}
	return nil
}

// InvalidateAll demotes every segment of a project to pending.
func (r *SegmentRepository) InvalidateAll(ctx context.Context, projectID models.ULID) error {
	return r.InvalidateAfter(ctx, projectID, -1)
}
