package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/domain/repository"
	"github.com/yoshi-pos/pos-web/internal/metrics"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
	"github.com/yoshi-pos/pos-web/pkg/auth"
	"github.com/yoshi-pos/pos-web/pkg/auth/manager"
)

// ClientInfo describes the browser a session is created for.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// SessionService resolves, creates, refreshes and destroys browser sessions.
type SessionService struct {
	repo    repository.SessionRepository
	jwt     *auth.JWTService
	cookies *manager.CookieManager
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewSessionService(
	repo repository.SessionRepository,
	jwtService *auth.JWTService,
	cookies *manager.CookieManager,
	ttl time.Duration,
	m *metrics.Metrics,
	log *zap.Logger,
) (*SessionService, error) {
	if repo == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("jwt service is required")
	}
	if cookies == nil {
		return nil, fmt.Errorf("cookie manager is required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		repo:    repo,
		jwt:     jwtService,
		cookies: cookies,
		ttl:     ttl,
		metrics: m,
		log:     log.Named("SessionService"),
		now:     time.Now,
	}, nil
}

func (s *SessionService) Cookies() *manager.CookieManager {
	return s.cookies
}

// Create stores a new session for user and returns it with its signed token.
func (s *SessionService) Create(ctx context.Context, user *entity.User, client ClientInfo) (*entity.Session, string, error) {
	now := s.now()
	session := &entity.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Image:     user.Image,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}
	token, err := s.jwt.GenerateSessionToken(session.ID, user.ID, session.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}
	s.metrics.SessionEvent("created")
	s.log.Info("session created", zap.Uint("user_id", user.ID), zap.String("session_id", session.ID))
	return session, token, nil
}

// Resolve returns the session of r, or nil when there is none or it is invalid.
// Only storage failures are returned as errors.
func (s *SessionService) Resolve(ctx context.Context, r *http.Request) (*entity.Session, error) {
	raw, err := s.cookies.GetSessionCookie(r)
	if err != nil {
		return nil, nil
	}
	claims, err := s.jwt.ParseSessionToken(raw)
	if err != nil {
		s.metrics.SessionEvent("rejected")
		return nil, nil
	}

	session, err := s.repo.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.SessionEvent("rejected")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != claims.UserID {
		s.log.Warn("session token does not match stored session", zap.String("session_id", claims.SessionID))
		s.metrics.SessionEvent("rejected")
		return nil, nil
	}
	if session.IsExpired(s.now()) {
		_ = s.repo.Delete(ctx, session.ID)
		s.metrics.SessionEvent("rejected")
		return nil, nil
	}

	s.metrics.SessionEvent("resolved")
	return session, nil
}

// NeedsRefresh reports whether less than half of the session lifetime is left.
func (s *SessionService) NeedsRefresh(session *entity.Session) bool {
	return session.ExpiresAt.Sub(s.now()) < s.ttl/2
}

// Refresh extends session and returns a new token. Failures are reported as RefreshAccessTokenError.
func (s *SessionService) Refresh(ctx context.Context, session *entity.Session) (string, error) {
	session.ExpiresAt = s.now().Add(s.ttl)
	if err := s.repo.Save(ctx, session); err != nil {
		return "", err
	}
	token, err := s.jwt.GenerateSessionToken(session.ID, session.UserID, session.ExpiresAt)
	if err != nil {
		return "", err
	}
	s.metrics.SessionEvent("refreshed")
	return token, nil
}

// Destroy deletes the session of r, if any.
func (s *SessionService) Destroy(ctx context.Context, r *http.Request) error {
	raw, err := s.cookies.GetSessionCookie(r)
	if err != nil {
		return nil
	}
	claims, err := s.jwt.ParseSessionToken(raw)
	if err != nil {
		return nil
	}
	if err := s.repo.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.metrics.SessionEvent("destroyed")
	s.log.Info("session destroyed", zap.Uint("user_id", claims.UserID), zap.String("session_id", claims.SessionID))
	return nil
}
