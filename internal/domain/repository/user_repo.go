package repository

import (
	"github.com/yoshi-pos/pos-web/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	// UpdateProfile обновляет только переданные поля (name, image, email_verified_at)
	UpdateProfile(userID uint, updates map[string]interface{}) error
}
