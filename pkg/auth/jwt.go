package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const (
	sessionIssuer   = "pos-web"
	sessionAudience = "pos-backoffice"
)

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenNotValidYet      = errors.New("token not valid yet")
	ErrTokenSignatureInvalid = errors.New("signature is invalid")
	ErrTokenInvalid          = errors.New("token validation failed")
)

// SessionClaims содержит ссылку на серверную сессию; данные пользователя в токен не кладем
type SessionClaims struct {
	SessionID string `json:"sid"`
	UserID    uint   `json:"uid"`
	jwt.RegisteredClaims
}

// JWTService подписывает и проверяет токены cookie сессии (HS256)
type JWTService struct {
	secret []byte
	log    *zap.Logger
	now    func() time.Time
}

// NewJWTService создает сервис; секрет должен быть не короче 32 байт
func NewJWTService(secret string, log *zap.Logger) (*JWTService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &JWTService{secret: []byte(secret), log: log.Named("JWT"), now: time.Now}, nil
}

// GenerateSessionToken создает токен для сессии sessionID, истекающий вместе с ней
func (s *JWTService) GenerateSessionToken(sessionID string, userID uint, expiresAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id cannot be empty")
	}
	now := s.now()
	claims := &SessionClaims{
		SessionID: sessionID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{sessionAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign session token", zap.Uint("user_id", userID), zap.Error(err))
		return "", err
	}
	return signed, nil
}

// ParseSessionToken проверяет подпись, срок, издателя и аудиторию
func (s *JWTService) ParseSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				s.log.Debug("session token expired", zap.Uint("user_id", claims.UserID))
				return nil, ErrTokenExpired
			case ve.Errors&jwt.ValidationErrorNotValidYet != 0:
				return nil, ErrTokenNotValidYet
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				s.log.Warn("session token signature is invalid", zap.Uint("user_id", claims.UserID))
				return nil, ErrTokenSignatureInvalid
			}
		}
		s.log.Debug("session token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Issuer != sessionIssuer || !claims.VerifyAudience(sessionAudience, true) {
		return nil, fmt.Errorf("%w: unexpected issuer or audience", ErrTokenInvalid)
	}
	return claims, nil
}
