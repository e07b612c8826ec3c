package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/yoshi-pos/pos-web/internal/domain/repository"
)

// ProviderIdentity is the verified identity returned by an OAuth provider.
type ProviderIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityProvider is an OAuth 2.0 / OpenID Connect sign-in provider.
type IdentityProvider interface {
	ID() string
	AuthCodeURL(state, verifier string) string
	// Exchange trades the authorization code for tokens and verifies the id_token.
	Exchange(ctx context.Context, code, verifier string) (*ProviderIdentity, error)
}

// idTokenVerifier verifies a raw id_token.
type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*ProviderIdentity, error)
}

// oauthProvider implements IdentityProvider with x/oauth2 and PKCE.
type oauthProvider struct {
	id       string
	config   *oauth2.Config
	verifier idTokenVerifier
	authOpts []oauth2.AuthCodeOption
}

func (p *oauthProvider) ID() string { return p.id }

func (p *oauthProvider) AuthCodeURL(state, verifier string) string {
	opts := append([]oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, p.authOpts...)
	return p.config.AuthCodeURL(state, opts...)
}

func (p *oauthProvider) Exchange(ctx context.Context, code, verifier string) (*ProviderIdentity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ErrIDTokenVerificationFailed)
	}
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%s token exchange failed: %w", p.id, err)
	}
	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: id_token not returned by %s", ErrIDTokenVerificationFailed, p.id)
	}
	return p.verifier.Verify(ctx, rawIDToken)
}

// oauthState is kept in Redis between Initiate and the provider callback.
type oauthState struct {
	Provider    string    `json:"provider"`
	Verifier    string    `json:"verifier"`
	CallbackURL string    `json:"callback_url"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	oauthStateKeyPrefix = "oauth:state:"
	oauthStateTTL       = 10 * time.Minute
)

// OAuthStateStore keeps one-time OAuth state values.
type OAuthStateStore struct {
	cache repository.CacheRepository
}

func NewOAuthStateStore(cache repository.CacheRepository) *OAuthStateStore {
	return &OAuthStateStore{cache: cache}
}

func (s *OAuthStateStore) Save(ctx context.Context, state string, value *oauthState) error {
	return s.cache.SetJSON(ctx, oauthStateKeyPrefix+state, value, oauthStateTTL)
}

// Consume returns the state and deletes it; a state can be used once.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (*oauthState, error) {
	if state == "" {
		return nil, ErrStateMismatch
	}
	key := oauthStateKeyPrefix + state
	var value oauthState
	if err := s.cache.GetJSON(ctx, key, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return &value, nil
}
