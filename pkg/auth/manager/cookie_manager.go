package manager

import (
	"errors"
	"net/http"
	"time"
)

// ErrNoSessionCookie: cookie сессии отсутствует или пуста
var ErrNoSessionCookie = errors.New("session cookie not found")

// CookieManager выставляет и читает cookie сессии
type CookieManager struct {
	name     string
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite
}

// NewCookieManager создает менеджер cookie. Lax нужен, чтобы cookie пережила
// редирект обратно от Google/LINE.
func NewCookieManager(name string, secure bool) *CookieManager {
	return &CookieManager{
		name:     name,
		path:     "/",
		secure:   secure,
		sameSite: http.SameSiteLaxMode,
	}
}

// SetCookieAttributes позволяет настроить атрибуты cookie
func (m *CookieManager) SetCookieAttributes(path, domain string, sameSite http.SameSite) {
	m.path = path
	m.domain = domain
	m.sameSite = sameSite
}

func (m *CookieManager) Name() string {
	return m.name
}

// SetSessionCookie записывает токен сессии в HttpOnly cookie
func (m *CookieManager) SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     m.path,
		Domain:   m.domain,
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	})
}

// GetSessionCookie возвращает значение cookie сессии
func (m *CookieManager) GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSessionCookie
	}
	return cookie.Value, nil
}

// ClearSessionCookie удаляет cookie сессии
func (m *CookieManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     m.path,
		Domain:   m.domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	})
}
