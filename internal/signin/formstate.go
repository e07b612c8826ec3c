package signin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yoshi-pos/pos-web/internal/domain/repository"
	apperrors "github.com/yoshi-pos/pos-web/internal/pkg/errors"
)

// FormState is the server-side state of one rendered sign-in form.
type FormState struct {
	LastCode    string    `json:"last_code,omitempty"`
	LastMessage string    `json:"last_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FormStateStore loads and saves FormState by form id. Load returns ErrNotFound for unknown ids.
type FormStateStore interface {
	Load(ctx context.Context, formID string) (*FormState, error)
	Save(ctx context.Context, formID string, state *FormState) error
}

const formStateKeyPrefix = "signin:form:"

// RedisFormStateStore keeps form state in Redis for ttl after the last write.
type RedisFormStateStore struct {
	cache repository.CacheRepository
	ttl   time.Duration
}

func NewRedisFormStateStore(cache repository.CacheRepository, ttl time.Duration) *RedisFormStateStore {
	return &RedisFormStateStore{cache: cache, ttl: ttl}
}

func (s *RedisFormStateStore) Load(ctx context.Context, formID string) (*FormState, error) {
	var state FormState
	if err := s.cache.GetJSON(ctx, formStateKeyPrefix+formID, &state); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load form state %s: %w", formID, err)
	}
	return &state, nil
}

func (s *RedisFormStateStore) Save(ctx context.Context, formID string, state *FormState) error {
	return s.cache.SetJSON(ctx, formStateKeyPrefix+formID, state, s.ttl)
}

// MemoryFormStateStore is used with the local guard backend.
type MemoryFormStateStore struct {
	mu     sync.RWMutex
	states map[string]FormState
}

func NewMemoryFormStateStore() *MemoryFormStateStore {
	return &MemoryFormStateStore{states: make(map[string]FormState)}
}

func (s *MemoryFormStateStore) Load(_ context.Context, formID string) (*FormState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[formID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &state, nil
}

func (s *MemoryFormStateStore) Save(_ context.Context, formID string, state *FormState) error {
	s.mu.Lock()
	s.states[formID] = *state
	s.mu.Unlock()
	return nil
}
