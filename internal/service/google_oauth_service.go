package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"github.com/yoshi-pos/pos-web/internal/config"
	"github.com/yoshi-pos/pos-web/internal/domain/entity"
)

const defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// NewGoogleProvider builds the Google sign-in provider. redirectURL is BASE/auth/callback/google.
func NewGoogleProvider(cfg config.OAuthClient, redirectURL string) (IdentityProvider, error) {
	if !cfg.Enabled() {
		return nil, ErrProviderNotConfigured
	}
	return &oauthProvider{
		id: entity.ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     googleEndpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		verifier: NewGoogleIDTokenVerifier(cfg.ClientID, defaultGoogleJWKSURL),
		authOpts: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")},
	}, nil
}

type googleIDTokenClaims struct {
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
	Name          string      `json:"name"`
	Picture       string      `json:"picture"`
	jwt.RegisteredClaims
}

type googleJWKSet struct {
	Keys []googleJWK `json:"keys"`
}

type googleJWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// GoogleIDTokenVerifier verifies RS256 Google id tokens against the cached JWKS.
type GoogleIDTokenVerifier struct {
	clientID   string
	jwksURL    string
	httpClient *http.Client
	jwksMu     sync.RWMutex
	jwksKeys   map[string]*rsa.PublicKey
	jwksExpiry time.Time
}

func NewGoogleIDTokenVerifier(clientID, jwksURL string) *GoogleIDTokenVerifier {
	return &GoogleIDTokenVerifier{
		clientID:   clientID,
		jwksURL:    jwksURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, idToken string) (*ProviderIdentity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrIDTokenVerificationFailed)
	}

	claims := &googleIDTokenClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodRS256.Alg()}}
	token, err := parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrIDTokenVerificationFailed)
		}
		return v.getPublicKey(ctx, strings.TrimSpace(kid))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIDTokenVerificationFailed, err)
	}
	if token == nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrIDTokenVerificationFailed)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrIDTokenVerificationFailed)
	}
	if claims.Issuer != "accounts.google.com" && claims.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("%w: invalid issuer", ErrIDTokenVerificationFailed)
	}
	if !claims.VerifyAudience(v.clientID, true) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrIDTokenVerificationFailed)
	}
	if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrIDTokenVerificationFailed)
	}

	emailVerified, ok := parseEmailVerifiedClaim(claims.EmailVerified)
	if !ok {
		return nil, fmt.Errorf("%w: invalid email_verified claim", ErrIDTokenVerificationFailed)
	}

	return &ProviderIdentity{
		Subject:       strings.TrimSpace(claims.Subject),
		Email:         normalizeEmail(claims.Email),
		EmailVerified: emailVerified,
		Name:          strings.TrimSpace(claims.Name),
		Picture:       strings.TrimSpace(claims.Picture),
	}, nil
}

func parseEmailVerifiedClaim(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case nil:
		return false, true
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			return true, true
		case "false":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

func (v *GoogleIDTokenVerifier) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := time.Now()
	v.jwksMu.RLock()
	if key, ok := v.jwksKeys[kid]; ok && now.Before(v.jwksExpiry) {
		v.jwksMu.RUnlock()
		return key, nil
	}
	v.jwksMu.RUnlock()

	if err := v.refreshJWKS(ctx); err != nil {
		return nil, err
	}

	v.jwksMu.RLock()
	defer v.jwksMu.RUnlock()
	key, ok := v.jwksKeys[kid]
	if !ok || key == nil {
		return nil, fmt.Errorf("%w: jwks key not found", ErrIDTokenVerificationFailed)
	}
	return key, nil
}

func (v *GoogleIDTokenVerifier) refreshJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create google jwks request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to fetch google jwks: %v", ErrIDTokenVerificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: jwks status=%d body=%s", ErrIDTokenVerificationFailed, resp.StatusCode, string(body))
	}

	var set googleJWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode google jwks response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if strings.TrimSpace(jwk.Kid) == "" || jwk.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(jwk)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no usable rsa keys in google jwks", ErrIDTokenVerificationFailed)
	}

	ttl := parseJWKSMaxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = time.Hour
	}

	v.jwksMu.Lock()
	v.jwksKeys = keys
	v.jwksExpiry = time.Now().Add(ttl)
	v.jwksMu.Unlock()
	return nil
}

func parseRSAPublicKey(jwk googleJWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nBytes)
	eInt := 0
	for _, b := range eBytes {
		eInt = eInt<<8 + int(b)
	}
	if n.Sign() <= 0 || eInt <= 0 {
		return nil, fmt.Errorf("invalid rsa jwk")
	}

	return &rsa.PublicKey{N: n, E: eInt}, nil
}

func parseJWKSMaxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if !strings.HasPrefix(part, "max-age=") {
			continue
		}
		seconds, err := time.ParseDuration(strings.TrimPrefix(part, "max-age=") + "s")
		if err != nil {
			return 0
		}
		if seconds < time.Minute {
			return time.Minute
		}
		return seconds
	}
	return 0
}
