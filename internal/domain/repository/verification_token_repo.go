package repository

import "github.com/yoshi-pos/pos-web/internal/domain/entity"

// VerificationTokenRepository persists email sign-in link tokens.
type VerificationTokenRepository interface {
	Create(token *entity.VerificationToken) error
	GetActive(identifier, tokenHash string) (*entity.VerificationToken, error)
	// MarkConsumed returns ErrNotFound when the token was consumed concurrently.
	MarkConsumed(id uint) error
	DeleteExpired() (int64, error)
}
