package repository

import (
	"context"
	"time"
)

// CacheRepository определяет методы для работы с кешем (Redis)
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Exists(ctx context.Context, key string) (bool, error)
	// SetNX устанавливает значение, только если ключа нет; true: ключ установлен
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfValue удаляет ключ, только если его значение равно value; true: ключ удален
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}
