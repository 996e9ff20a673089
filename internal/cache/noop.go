package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used when no cache backend is configured - all operations succeed
// but no actual caching occurs (always cache miss).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetEmbedding always returns nil (cache miss)
func (c *NoOpCache) GetEmbedding(ctx context.Context, key string) ([]float32, error) {
	return nil, nil
}

// SetEmbedding does nothing and always succeeds
func (c *NoOpCache) SetEmbedding(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	return nil
}

// Close does nothing and always succeeds
func (c *NoOpCache) Close() error {
	return nil
}
