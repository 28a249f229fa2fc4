package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
)

// InviteRepository provides access to invite codes.
type InviteRepository struct {
	db *gorm.DB
}

// NewInviteRepository creates a new InviteRepository.
func NewInviteRepository(db *gorm.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// GetByCode retrieves an invite code.
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	var invite models.InviteCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&invite).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting invite code: %w", err)
	}
	return &invite, nil
}

// Create creates a new invite code.
func (r *InviteRepository) Create(ctx context.Context, invite *models.InviteCode) error {
	if err := r.db.WithContext(ctx).Create(invite).Error; err != nil {
		return fmt.Errorf("creating invite code: %w", err)
	}
	return nil
}

// Redeem marks a code as redeemed by the principal. The update is
// conditional on the code being unredeemed and enabled; it returns false
// when another caller won the race.
func (r *InviteRepository) Redeem(ctx context.Context, code, principalID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InviteCode{}).
		Where("code = ? AND redeemed_at IS NULL AND disabled_at IS NULL", code).
		Updates(map[string]any{
			"redeemed_by_principal_id": principalID,
			"redeemed_at":              at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("redeeming invite code: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListUnredeemedByOwner retrieves an owner's unredeemed codes, newest first.
func (r *InviteRepository) ListUnredeemedByOwner(ctx context.Context, principalID string) ([]*models.InviteCode, error) {
	var invites []*models.InviteCode
	err := r.db.WithContext(ctx).
		Where("owner_principal_id = ? AND redeemed_at IS NULL AND disabled_at IS NULL", principalID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("listing invites by owner: %w", err)
	}
	return invites, nil
}
