package repository

import (
	"context"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
)

// SessionRepository stores browser sessions keyed by session id.
type SessionRepository interface {
	Save(ctx context.Context, session *entity.Session) error
	Get(ctx context.Context, sessionID string) (*entity.Session, error)
	Delete(ctx context.Context, sessionID string) error
}
