package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
)

// RateLimitRepository provides raw access to windowed counter rows. The
// increment algorithm lives in the ratelimit package.
type RateLimitRepository struct {
	db *gorm.DB
}

// NewRateLimitRepository creates a new RateLimitRepository.
func NewRateLimitRepository(db *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Get retrieves a counter by key.
func (r *RateLimitRepository) Get(ctx context.Context, key string) (*models.RateLimitCounter, error) {
	var counter models.RateLimitCounter
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&counter).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting rate limit counter: %w", err)
	}
	return &counter, nil
}

// Create inserts a fresh counter row. Fails on key conflicts so the caller
// can detect insert races.
func (r *RateLimitRepository) Create(ctx context.Context, counter *models.RateLimitCounter) error {
	if err := r.db.WithContext(ctx).Create(counter).Error; err != nil {
		return fmt.Errorf("creating rate limit counter: %w", err)
	}
	return nil
}

// Save overwrites an existing counter row.
func (r *RateLimitRepository) Save(ctx context.Context, counter *models.RateLimitCounter) error {
	if err := r.db.WithContext(ctx).Save(counter).Error; err != nil {
		return fmt.Errorf("saving rate limit counter: %w", err)
	}
	return nil
}

// DeleteExpired removes counters whose window ended before now.
func (r *RateLimitRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.RateLimitCounter{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting expired counters: %w", res.Error)
	}
	return res.RowsAffected, nil
}
