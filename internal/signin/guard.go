package signin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yoshi-pos/pos-web/internal/domain/repository"
)

// Guard enforces single-flight submission per form instance. While fn runs the
// form is Submitting; concurrent Do calls for the same form return
// ErrSubmissionInFlight without running. The form returns to Idle once fn
// settles, whatever the outcome.
type Guard interface {
	Do(ctx context.Context, formID string, fn func(ctx context.Context) error) error
	Submitting(ctx context.Context, formID string) (bool, error)
}

// LocalGuard keeps the Submitting set in process memory.
type LocalGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{inFlight: make(map[string]struct{})}
}

func (g *LocalGuard) acquire(formID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[formID]; busy {
		return false
	}
	g.inFlight[formID] = struct{}{}
	return true
}

func (g *LocalGuard) release(formID string) {
	g.mu.Lock()
	delete(g.inFlight, formID)
	g.mu.Unlock()
}

func (g *LocalGuard) Do(ctx context.Context, formID string, fn func(ctx context.Context) error) error {
	if !g.acquire(formID) {
		return ErrSubmissionInFlight
	}
	defer g.release(formID)
	return fn(ctx)
}

func (g *LocalGuard) Submitting(_ context.Context, formID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[formID]
	return busy, nil
}

const (
	guardKeyPrefix = "signin:guard:"
	// lockGrace держит ключ дольше дедлайна вызова, чтобы он не истек во время отправки
	lockGrace = 5 * time.Second
)

// RedisGuard shares the Submitting set between web replicas. fn runs with a
// deadline of ttl; the key lives ttl plus a grace period, which bounds how long
// a crashed replica can keep a form locked. Each lock holds a random owner token
// and is only released by its owner.
type RedisGuard struct {
	cache repository.CacheRepository
	ttl   time.Duration
}

func NewRedisGuard(cache repository.CacheRepository, ttl time.Duration) *RedisGuard {
	return &RedisGuard{cache: cache, ttl: ttl}
}

func (g *RedisGuard) Do(ctx context.Context, formID string, fn func(ctx context.Context) error) error {
	key := guardKeyPrefix + formID
	owner := uuid.NewString()
	acquired, err := g.cache.SetNX(ctx, key, owner, g.ttl+lockGrace)
	if err != nil {
		return fmt.Errorf("failed to acquire submission guard: %w", err)
	}
	if !acquired {
		return ErrSubmissionInFlight
	}
	defer func() {
		// request ctx may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_, _ = g.cache.DeleteIfValue(releaseCtx, key, owner)
	}()

	callCtx, cancel := context.WithTimeout(ctx, g.ttl)
	defer cancel()
	return fn(callCtx)
}

func (g *RedisGuard) Submitting(ctx context.Context, formID string) (bool, error) {
	return g.cache.Exists(ctx, guardKeyPrefix+formID)
}
