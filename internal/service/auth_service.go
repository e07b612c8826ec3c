package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	"github.com/yoshi-pos/pos-web/internal/domain/repository"
	"github.com/yoshi-pos/pos-web/internal/metrics"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
	"github.com/yoshi-pos/pos-web/internal/signin"
)

const (
	VerifyRequestPath  = "/auth/verify-request"
	callbackPathPrefix = "/auth/callback/"
)

// CallbackResult is a completed sign-in.
type CallbackResult struct {
	User        *entity.User
	Session     *entity.Session
	Token       string
	RedirectURL string
}

// AuthServiceConfig wires AuthService.
type AuthServiceConfig struct {
	Users      repository.UserRepository
	Identities repository.UserIdentityRepository
	Tokens     repository.VerificationTokenRepository
	States     *OAuthStateStore
	Sessions   *SessionService
	Email      EmailService
	Hasher     *TokenHasher
	// Providers holds the configured OAuth providers by id.
	Providers map[string]IdentityProvider
	BaseURL   string
	TokenTTL  time.Duration
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// AuthService is the authentication service behind the sign-in page. Failures
// are returned as *signin.CallbackError or *signin.AppError.
type AuthService struct {
	users      repository.UserRepository
	identities repository.UserIdentityRepository
	tokens     repository.VerificationTokenRepository
	states     *OAuthStateStore
	sessions   *SessionService
	email      EmailService
	hasher     *TokenHasher
	providers  map[string]IdentityProvider
	baseURL    string
	tokenTTL   time.Duration
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(cfg AuthServiceConfig) (*AuthService, error) {
	if cfg.Users == nil || cfg.Identities == nil || cfg.Tokens == nil {
		return nil, fmt.Errorf("user, identity and token repositories are required")
	}
	if cfg.States == nil || cfg.Sessions == nil || cfg.Email == nil || cfg.Hasher == nil {
		return nil, fmt.Errorf("state store, session service, email service and hasher are required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	providers := cfg.Providers
	if providers == nil {
		providers = map[string]IdentityProvider{}
	}
	return &AuthService{
		users:      cfg.Users,
		identities: cfg.Identities,
		tokens:     cfg.Tokens,
		states:     cfg.States,
		sessions:   cfg.Sessions,
		email:      cfg.Email,
		hasher:     cfg.Hasher,
		providers:  providers,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenTTL:   cfg.TokenTTL,
		metrics:    cfg.Metrics,
		log:        log.Named("AuthService"),
		now:        time.Now,
	}, nil
}

// CallbackURL returns the absolute provider callback URL.
func CallbackURL(baseURL, provider string) string {
	return strings.TrimRight(baseURL, "/") + callbackPathPrefix + provider
}

// isSupported reports whether provider is known to the application, configured or not.
func isSupported(provider string) bool {
	switch provider {
	case entity.ProviderEmail, entity.ProviderGoogle, entity.ProviderLine:
		return true
	}
	return false
}

// Initiate starts a sign-in with provider.
func (s *AuthService) Initiate(ctx context.Context, provider string, cred *signin.Credential, callbackURL string) (*signin.InitiateResult, error) {
	callbackURL = safeCallbackURL(callbackURL)

	var (
		res *signin.InitiateResult
		err error
	)
	switch {
	case provider == entity.ProviderEmail:
		res, err = s.initiateEmail(ctx, cred, callbackURL)
	case isSupported(provider):
		res, err = s.initiateOAuth(ctx, provider, callbackURL)
	default:
		err = signin.NewAppError(signin.CodeUnsupportedProvider, fmt.Errorf("provider %q", provider))
	}

	s.metrics.SigninAttempt(provider, "initiate", outcome(err))
	return res, err
}

func (s *AuthService) initiateEmail(ctx context.Context, cred *signin.Credential, callbackURL string) (*signin.InitiateResult, error) {
	if cred == nil {
		return nil, signin.NewCallbackError(signin.CodeEmailSignin, errors.New("email credential is required"))
	}
	email := normalizeEmail(cred.Email)
	if email == "" {
		return nil, signin.NewCallbackError(signin.CodeEmailSignin, errors.New("email is empty"))
	}

	token, err := generateRandomHex(32)
	if err != nil {
		return nil, signin.NewAppError(signin.CodeInvalidError, err)
	}
	record := &entity.VerificationToken{
		Identifier:  email,
		TokenHash:   s.hasher.Hash(token),
		CallbackURL: callbackURL,
		ExpiresAt:   s.now().Add(s.tokenTTL),
	}
	if err := s.tokens.Create(record); err != nil {
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}

	link := s.emailLink(email, token)
	if err := s.email.SendSignInLink(ctx, email, link, fmt.Sprintf("signin-link/%d", record.ID)); err != nil {
		s.log.Warn("failed to send sign-in link", zap.String("email", email), zap.Error(err))
		return nil, signin.NewCallbackError(signin.CodeEmailSignin, err)
	}

	s.log.Info("sign-in link sent", zap.String("email", email))
	return &signin.InitiateResult{RedirectURL: VerifyRequestPath}, nil
}

func (s *AuthService) emailLink(email, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return CallbackURL(s.baseURL, entity.ProviderEmail) + "?" + q.Encode()
}

func (s *AuthService) initiateOAuth(ctx context.Context, provider, callbackURL string) (*signin.InitiateResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, signin.NewCallbackError(signin.CodeOAuthSignin, fmt.Errorf("%s: %w", provider, ErrProviderNotConfigured))
	}

	state, err := generateRandomHex(24)
	if err != nil {
		return nil, signin.NewCallbackError(signin.CodeOAuthSignin, err)
	}
	verifier := oauth2.GenerateVerifier()
	err = s.states.Save(ctx, state, &oauthState{
		Provider:    provider,
		Verifier:    verifier,
		CallbackURL: callbackURL,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, signin.NewCallbackError(signin.CodeOAuthSignin, err)
	}

	return &signin.InitiateResult{RedirectURL: p.AuthCodeURL(state, verifier)}, nil
}

// HandleCallback completes a sign-in from the provider callback query.
func (s *AuthService) HandleCallback(ctx context.Context, provider string, params url.Values, client ClientInfo) (*CallbackResult, error) {
	var (
		res *CallbackResult
		err error
	)
	switch {
	case provider == entity.ProviderEmail:
		res, err = s.emailCallback(ctx, params, client)
	case isSupported(provider):
		res, err = s.oauthCallback(ctx, provider, params, client)
	default:
		err = signin.NewAppError(signin.CodeUnsupportedProvider, fmt.Errorf("provider %q", provider))
	}

	s.metrics.SigninAttempt(provider, "callback", outcome(err))
	if err != nil {
		s.log.Info("sign-in callback failed", zap.String("provider", provider), zap.Error(err))
	}
	return res, err
}

func (s *AuthService) emailCallback(ctx context.Context, params url.Values, client ClientInfo) (*CallbackResult, error) {
	email := normalizeEmail(params.Get("email"))
	token := strings.TrimSpace(params.Get("token"))
	if email == "" || token == "" {
		return nil, signin.NewCallbackError(signin.CodeVerification, ErrVerificationLinkInvalid)
	}

	record, err := s.tokens.GetActive(email, s.hasher.Hash(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, signin.NewCallbackError(signin.CodeVerification, ErrVerificationLinkInvalid)
		}
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}
	if record.IsExpired(s.now()) {
		return nil, signin.NewCallbackError(signin.CodeVerification, fmt.Errorf("%w: expired", ErrVerificationLinkInvalid))
	}
	if err := s.tokens.MarkConsumed(record.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, signin.NewCallbackError(signin.CodeVerification, fmt.Errorf("%w: already used", ErrVerificationLinkInvalid))
		}
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}

	user, err := s.emailUser(email)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, client, record.CallbackURL)
}

// emailUser returns the user for a verified email link, creating it on first sign-in.
func (s *AuthService) emailUser(email string) (*entity.User, error) {
	now := s.now()
	user, err := s.users.GetByEmail(email)
	switch {
	case err == nil:
		if !user.IsEmailVerified() {
			if err := s.users.UpdateProfile(user.ID, map[string]interface{}{"email_verified_at": &now}); err != nil {
				return nil, signin.NewAppError(signin.CodeUpdateUserError, err)
			}
			user.EmailVerifiedAt = &now
		}
		return user, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}

	user = &entity.User{Email: email, EmailVerifiedAt: &now}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// concurrent first sign-in with the same address
			if existing, getErr := s.users.GetByEmail(email); getErr == nil {
				return existing, nil
			}
		}
		return nil, signin.NewCallbackError(signin.CodeEmailCreateAccount, err)
	}
	err = s.identities.Create(&entity.UserIdentity{
		UserID:        user.ID,
		Provider:      entity.ProviderEmail,
		ProviderSub:   email,
		ProviderEmail: email,
		EmailVerified: true,
	})
	if err != nil {
		return nil, signin.NewCallbackError(signin.CodeEmailCreateAccount, err)
	}
	s.log.Info("user created from email link", zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *AuthService) oauthCallback(ctx context.Context, provider string, params url.Values, client ClientInfo) (*CallbackResult, error) {
	if providerErr := params.Get("error"); providerErr != "" {
		return nil, signin.NewCallbackError(signin.CodeOAuthCallback,
			fmt.Errorf("%s returned error=%s: %s", provider, providerErr, params.Get("error_description")))
	}

	state, err := s.states.Consume(ctx, params.Get("state"))
	if err != nil {
		return nil, signin.NewCallbackError(signin.CodeOAuthCallback, err)
	}
	if state.Provider != provider {
		return nil, signin.NewCallbackError(signin.CodeOAuthCallback, ErrStateMismatch)
	}

	p, ok := s.providers[provider]
	if !ok {
		return nil, signin.NewCallbackError(signin.CodeOAuthSignin, fmt.Errorf("%s: %w", provider, ErrProviderNotConfigured))
	}
	info, err := p.Exchange(ctx, params.Get("code"), state.Verifier)
	if err != nil {
		return nil, signin.NewCallbackError(signin.CodeOAuthCallback, err)
	}

	user, err := s.oauthUser(provider, info)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, client, state.CallbackURL)
}

// oauthUser finds the user linked to the provider identity or creates a new one.
// An existing account with the same email is never linked implicitly.
func (s *AuthService) oauthUser(provider string, info *ProviderIdentity) (*entity.User, error) {
	identity, err := s.identities.GetByProviderSub(provider, info.Subject)
	if err == nil {
		user, userErr := s.users.GetByID(identity.UserID)
		if userErr != nil {
			return nil, signin.NewAppError(signin.CodeDatabaseError, userErr)
		}
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}

	if info.Email == "" {
		return nil, signin.NewCallbackError(signin.CodeOAuthCreateAccount, fmt.Errorf("%s account has no email", provider))
	}

	_, err = s.users.GetByEmail(info.Email)
	if err == nil {
		return nil, signin.NewCallbackError(signin.CodeOAuthAccountNotLinked,
			fmt.Errorf("%s identity for %s is not linked", provider, info.Email))
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}

	user := &entity.User{Email: info.Email, Name: info.Name, Image: info.Picture}
	if info.EmailVerified {
		now := s.now()
		user.EmailVerifiedAt = &now
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, signin.NewAppError(signin.CodeEmailAlreadyInUse, err)
		}
		return nil, signin.NewCallbackError(signin.CodeOAuthCreateAccount, err)
	}

	err = s.identities.Create(&entity.UserIdentity{
		UserID:        user.ID,
		Provider:      provider,
		ProviderSub:   info.Subject,
		ProviderEmail: info.Email,
		EmailVerified: info.EmailVerified,
	})
	if err != nil {
		return nil, signin.NewCallbackError(signin.CodeOAuthCreateAccount, err)
	}
	s.log.Info("user created from provider", zap.String("provider", provider), zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *entity.User, client ClientInfo, callbackURL string) (*CallbackResult, error) {
	session, token, err := s.sessions.Create(ctx, user, client)
	if err != nil {
		return nil, signin.NewAppError(signin.CodeDatabaseError, err)
	}
	return &CallbackResult{
		User:        user,
		Session:     session,
		Token:       token,
		RedirectURL: safeCallbackURL(callbackURL),
	}, nil
}

// safeCallbackURL only allows local absolute paths; anything else falls back to the dashboard.
func safeCallbackURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return signin.DashboardPath
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return signin.DashboardPath
	}
	return raw
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	code, ec := signin.Classify(err)
	if code != "" {
		return code
	}
	return ec.ErrorName
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
