// Package cache provides short-lived caching for gateway notification
// deduplication.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Provider is the interface for storing processed notification markers.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// NotificationKey identifies one gateway delivery (source plus a digest of the
// signed payload) for replay short-circuiting.
func NotificationKey(source, digest string) string {
	return fmt.Sprintf("notification:%s:%s", source, digest)
}
