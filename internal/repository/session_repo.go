package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
)

// SessionRepository provides access to auth sessions.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.AuthSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetActiveByTokenHash retrieves an unrevoked session by token hash.
// Expiry is checked by the caller so it can distinguish stale from missing.
func (r *SessionRepository) GetActiveByTokenHash(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	var session models.AuthSession
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting session by token hash: %w", err)
	}
	return &session, nil
}

// Revoke marks the session with the given token hash as revoked.
func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.AuthSession{}).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		Update("revoked_at", at).Error
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// TouchLastSeen updates the session's last-seen timestamp. Best effort;
// callers ignore the error.
func (r *SessionRepository) TouchLastSeen(ctx context.Context, id models.ULID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.AuthSession{}).
		Where("id = ?", id).
		Update("last_seen_at", at).Error
	if err != nil {
		return fmt.Errorf("updating session last_seen_at: %w", err)
	}
	return nil
}
