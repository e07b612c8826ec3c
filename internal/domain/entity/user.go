package entity

import (
	"strings"
	"time"
)

// User представляет сотрудника POS, который входит в back office
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Email           string     `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Name            string     `gorm:"size:100;not null;default:''" json:"name"`
	Image           string     `gorm:"size:255;not null;default:''" json:"image"`
	EmailVerifiedAt *time.Time `gorm:"type:timestamp" json:"email_verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// DisplayName возвращает имя для шапки страницы; если имени нет, используется локальная часть email
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// IsEmailVerified сообщает, подтвержден ли email (ссылкой или провайдером)
func (u *User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}
