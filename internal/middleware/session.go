package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/signin"
	"github.com/yoshi-pos/pos-web/pkg/auth/manager"
)

const (
	sessionKey = "session"
	// sessionFailedKey отмечает запрос, в котором Provider уже записал ошибку сессии
	sessionFailedKey = "session_failed"
)

type sessionCtxKey struct{}

// SessionStore is the part of the session service the middleware needs.
type SessionStore interface {
	Resolve(ctx context.Context, r *http.Request) (*entity.Session, error)
	NeedsRefresh(session *entity.Session) bool
	Refresh(ctx context.Context, session *entity.Session) (string, error)
	Cookies() *manager.CookieManager
}

// SessionMiddleware resolves the browser session once per request.
type SessionMiddleware struct {
	sessions SessionStore
	errors   *ErrorContextStore
	log      *zap.Logger
}

func NewSessionMiddleware(sessions SessionStore, errors *ErrorContextStore, log *zap.Logger) *SessionMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionMiddleware{sessions: sessions, errors: errors, log: log.Named("SessionMiddleware")}
}

// Provider loads the session and slides its expiry when less than half of it is left.
// A failed refresh signs the user out with RefreshAccessTokenError.
func (m *SessionMiddleware) Provider() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		session, err := m.sessions.Resolve(ctx, c.Request)
		if err != nil {
			m.log.Error("failed to resolve session", zap.Error(err))
			m.errors.Set(c, &signin.ErrorContext{ErrorName: signin.CodeDatabaseError})
			c.Set(sessionFailedKey, true)
			session = nil
		}

		if session != nil && m.sessions.NeedsRefresh(session) {
			token, refreshErr := m.sessions.Refresh(ctx, session)
			if refreshErr != nil {
				m.log.Warn("failed to refresh session", zap.String("session_id", session.ID), zap.Error(refreshErr))
				m.sessions.Cookies().ClearSessionCookie(c.Writer)
				m.errors.Set(c, &signin.ErrorContext{ErrorName: signin.CodeRefreshAccessTokenError})
				c.Set(sessionFailedKey, true)
				session = nil
			} else {
				m.sessions.Cookies().SetSessionCookie(c.Writer, token, session.ExpiresAt)
			}
		}

		if session != nil {
			c.Set(sessionKey, session)
			c.Request = c.Request.WithContext(context.WithValue(ctx, sessionCtxKey{}, session))
		}
		c.Next()
	}
}

// RequireSession redirects anonymous requests to the sign-in page with NotAllowedAccess.
// A session failure recorded by Provider in the same request is kept instead.
// Sign-in always lands on the dashboard, so the original URL is not carried.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSession(c) != nil {
			c.Next()
			return
		}
		if !c.GetBool(sessionFailedKey) {
			m.errors.Set(c, &signin.ErrorContext{ErrorName: signin.CodeNotAllowedAccess})
		}
		c.Redirect(http.StatusSeeOther, signin.SigninPath)
		c.Abort()
	}
}

// GetSession returns the session resolved for the request or nil.
func GetSession(c *gin.Context) *entity.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*entity.Session)
	return s
}

// SessionFromContext returns the session the Provider attached to the request context.
func SessionFromContext(ctx context.Context) *entity.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*entity.Session)
	return s
}

// RequestSessionResolver serves the session already resolved by Provider.
type RequestSessionResolver struct{}

func (RequestSessionResolver) Resolve(_ context.Context, r *http.Request) (*entity.Session, error) {
	return SessionFromContext(r.Context()), nil
}
