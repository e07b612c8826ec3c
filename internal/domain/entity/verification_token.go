package entity

import "time"

// VerificationToken stores the hashed one-time token of an email sign-in link.
// The plaintext token only exists inside the email.
type VerificationToken struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Identifier  string     `gorm:"size:100;not null;index" json:"identifier"`
	TokenHash   string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	CallbackURL string     `gorm:"size:255;not null;default:''" json:"callback_url"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	ConsumedAt  *time.Time `gorm:"index" json:"consumed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (VerificationToken) TableName() string {
	return "verification_tokens"
}

func (t *VerificationToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
