package middleware

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoshi-pos/pos-web/internal/signin"
)

const (
	ErrorContextCookie = "pos_error"
	errorContextKey    = "error_context"
)

var errEmptyErrorName = errors.New("error context without name")

// ErrorContextStore keeps the shared application error between requests in a
// short-lived cookie. The value stays until it is replaced or cleared.
type ErrorContextStore struct {
	secure bool
	maxAge int
}

func NewErrorContextStore(secure bool) *ErrorContextStore {
	return &ErrorContextStore{secure: secure, maxAge: 600}
}

// Provider loads the error context of the request. A cookie that cannot be
// decoded becomes an InvalidError context.
func (s *ErrorContextStore) Provider() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(ErrorContextCookie)
		if err == nil && raw != "" {
			ec, decodeErr := decodeErrorContext(raw)
			if decodeErr != nil {
				ec = &signin.ErrorContext{ErrorName: signin.CodeInvalidError}
			}
			c.Set(errorContextKey, ec)
		}
		c.Next()
	}
}

// Set replaces the error context for this and the following requests.
func (s *ErrorContextStore) Set(c *gin.Context, ec *signin.ErrorContext) {
	if ec == nil {
		return
	}
	c.Set(errorContextKey, ec)
	b, _ := json.Marshal(ec)
	s.write(c, base64.RawURLEncoding.EncodeToString(b), s.maxAge)
}

// Clear removes the error context.
func (s *ErrorContextStore) Clear(c *gin.Context) {
	c.Set(errorContextKey, (*signin.ErrorContext)(nil))
	s.write(c, "", -1)
}

func (s *ErrorContextStore) write(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     ErrorContextCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetErrorContext returns the current error context or nil.
func GetErrorContext(c *gin.Context) *signin.ErrorContext {
	v, ok := c.Get(errorContextKey)
	if !ok {
		return nil
	}
	ec, _ := v.(*signin.ErrorContext)
	return ec
}

func decodeErrorContext(raw string) (*signin.ErrorContext, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	var ec signin.ErrorContext
	if err := json.Unmarshal(b, &ec); err != nil {
		return nil, err
	}
	if ec.ErrorName == "" {
		return nil, errEmptyErrorName
	}
	return &ec, nil
}
