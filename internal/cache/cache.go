package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores embedding vectors so repeated reference answers are
// not re-embedded on every run.
type Cache interface {
	// GetEmbedding retrieves a cached vector by key.
	// Returns nil if not found.
	GetEmbedding(ctx context.Context, key string) ([]float32, error)

	// SetEmbedding stores a vector with TTL.
	SetEmbedding(ctx context.Context, key string, vec []float32, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Key derives a stable cache key from the embedding model and input text.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
