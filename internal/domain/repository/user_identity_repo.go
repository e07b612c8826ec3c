package repository

import "github.com/yoshi-pos/pos-web/internal/domain/entity"

// UserIdentityRepository stores identity provider links for users.
type UserIdentityRepository interface {
	Create(identity *entity.UserIdentity) error
	GetByProviderSub(provider, providerSub string) (*entity.UserIdentity, error)
	GetByUserAndProvider(userID uint, provider string) (*entity.UserIdentity, error)
}
