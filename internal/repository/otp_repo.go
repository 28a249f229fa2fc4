package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
)

// OTPRepository provides access to email verification codes.
type OTPRepository struct {
	db *gorm.DB
}

// NewOTPRepository creates a new OTPRepository.
func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create creates a new code row.
func (r *OTPRepository) Create(ctx context.Context, code *models.OTPCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return fmt.Errorf("creating otp code: %w", err)
	}
	return nil
}

// LatestByEmail retrieves the most recently issued code for an email,
// consumed or not. Used to enforce the minimum send interval.
func (r *OTPRepository) LatestByEmail(ctx context.Context, email string) (*models.OTPCode, error) {
	var code models.OTPCode
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest otp code: %w", err)
	}
	return &code, nil
}

// ListUsableByEmail retrieves unexpired, unconsumed codes for an email,
// newest first.
func (r *OTPRepository) ListUsableByEmail(ctx context.Context, email string, now time.Time) ([]*models.OTPCode, error) {
	var codes []*models.OTPCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND consumed_at IS NULL AND expires_at > ?", email, now).
		Order("created_at DESC").
		Find(&codes).Error
	if err != nil {
		return nil, fmt.Errorf("listing usable otp codes: %w", err)
	}
	return codes, nil
}

// Update updates a code row (attempt counter, consumed_at).
func (r *OTPRepository) Update(ctx context.Context, code *models.OTPCode) error {
	if err := r.db.WithContext(ctx).Save(code).Error; err != nil {
		return fmt.Errorf("updating otp code: %w", err)
	}
	return nil
}
