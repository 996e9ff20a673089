package embeddings

import (
	"context"
	"log/slog"
	"time"

	"response-eval/internal/cache"
)

// CachedEmbedder wraps an Embedder with a vector cache. Reference answers
// repeat across runs, so caching saves most embedding calls.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	model string
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedEmbedder wraps inner with the given cache. The model name is part
// of the cache key so switching models never serves stale vectors.
func NewCachedEmbedder(inner Embedder, c cache.Cache, model string, ttl time.Duration, log *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: c,
		model: model,
		ttl:   ttl,
		log:   log,
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	key := cache.Key(e.model, text)

	if vec, err := e.cache.GetEmbedding(ctx, key); err != nil {
		e.log.Warn("embedding cache read failed", "err", err)
	} else if vec != nil {
		return Vector(vec), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, key, vec, e.ttl); err != nil {
		// Cache write failures never fail the embedding call.
		e.log.Warn("embedding cache write failed", "err", err)
	}
	return vec, nil
}
