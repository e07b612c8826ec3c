package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/domain/repository"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
)

const sessionKeyPrefix = "session:"

// SessionRepo хранит сессии в Redis как JSON с TTL до ExpiresAt
type SessionRepo struct {
	cache repository.CacheRepository
}

func NewSessionRepo(cache repository.CacheRepository) *SessionRepo {
	return &SessionRepo{cache: cache}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *SessionRepo) Save(ctx context.Context, session *entity.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s: %w", session.ID, apperrors.ErrExpiredToken)
	}
	if err := r.cache.SetJSON(ctx, sessionKey(session.ID), session, ttl); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// Get возвращает ErrNotFound, если сессии нет или TTL истек
func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*entity.Session, error) {
	var session entity.Session
	if err := r.cache.GetJSON(ctx, sessionKey(sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	return r.cache.Delete(ctx, sessionKey(sessionID))
}
