package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
	"gorm.io/gorm"
)

type VerificationTokenRepo struct {
	db *gorm.DB
}

func NewVerificationTokenRepo(db *gorm.DB) *VerificationTokenRepo {
	return &VerificationTokenRepo{db: db}
}

func (r *VerificationTokenRepo) Create(token *entity.VerificationToken) error {
	return r.db.Create(token).Error
}

func (r *VerificationTokenRepo) GetActive(identifier, tokenHash string) (*entity.VerificationToken, error) {
	var token entity.VerificationToken
	err := r.db.
		Where("identifier = ? AND token_hash = ? AND consumed_at IS NULL", identifier, tokenHash).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	return &token, nil
}

// MarkConsumed only succeeds once per token; a second caller gets ErrNotFound.
func (r *VerificationTokenRepo) MarkConsumed(id uint) error {
	result := r.db.Model(&entity.VerificationToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to consume verification token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *VerificationTokenRepo) DeleteExpired() (int64, error) {
	result := r.db.Where("expires_at < ?", time.Now()).Delete(&entity.VerificationToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
