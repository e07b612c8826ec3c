package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yoshi-pos/pos-web/internal/domain/entity"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
)

// ============================================================================
// Моки репозиториев
// ============================================================================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(userID uint, updates map[string]interface{}) error {
	return m.Called(userID, updates).Error(0)
}

type MockUserIdentityRepository struct {
	mock.Mock
}

func (m *MockUserIdentityRepository) Create(identity *entity.UserIdentity) error {
	return m.Called(identity).Error(0)
}

func (m *MockUserIdentityRepository) GetByProviderSub(provider, providerSub string) (*entity.UserIdentity, error) {
	args := m.Called(provider, providerSub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserIdentity), args.Error(1)
}

func (m *MockUserIdentityRepository) GetByUserAndProvider(userID uint, provider string) (*entity.UserIdentity, error) {
	args := m.Called(userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserIdentity), args.Error(1)
}

type MockVerificationTokenRepository struct {
	mock.Mock
}

func (m *MockVerificationTokenRepository) Create(token *entity.VerificationToken) error {
	return m.Called(token).Error(0)
}

func (m *MockVerificationTokenRepository) GetActive(identifier, tokenHash string) (*entity.VerificationToken, error) {
	args := m.Called(identifier, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.VerificationToken), args.Error(1)
}

func (m *MockVerificationTokenRepository) MarkConsumed(id uint) error {
	return m.Called(id).Error(0)
}

func (m *MockVerificationTokenRepository) DeleteExpired() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

// ============================================================================
// In-memory реализации для Redis-хранилищ
// ============================================================================

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}}
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(value)
	c.data[key] = string(b)
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration)
}

func (c *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	v, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memoryCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if ok, _ := c.Exists(ctx, key); ok {
		return false, nil
	}
	return true, c.Set(ctx, key, value, expiration)
}

func (c *memoryCache) DeleteIfValue(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(value)
	if v, ok := c.data[key]; !ok || v != string(b) {
		return false, nil
	}
	delete(c.data, key)
	return true, nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
	err      error
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: map[string]entity.Session{}}
}

func (r *memorySessionRepo) Save(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *memorySessionRepo) Get(_ context.Context, sessionID string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (r *memorySessionRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// ============================================================================
// Внешние сервисы
// ============================================================================

type sentLink struct {
	to, link, idempotencyKey string
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentLink
	err  error
}

func (s *fakeEmailService) SendSignInLink(_ context.Context, toEmail, link, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentLink{to: toEmail, link: link, idempotencyKey: idempotencyKey})
	return nil
}

type fakeProvider struct {
	id           string
	identity     *ProviderIdentity
	err          error
	lastState    string
	lastVerifier string
	exchanged    []string
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	p.lastState = state
	p.lastVerifier = verifier
	return "https://idp.example.com/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (*ProviderIdentity, error) {
	p.exchanged = append(p.exchanged, code+"|"+verifier)
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}
