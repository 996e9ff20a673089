package embeddings

import (
	"context"
	"errors"
	"math"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder produces a fixed-dimension vector for a text string.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
}

var (
	ErrDimensionMismatch = errors.New("embeddings: vectors have different dimensions")
	ErrZeroVector        = errors.New("embeddings: zero-magnitude vector")
)

// CosineDistance returns 1 minus the cosine similarity of a and b.
// Identical vectors score 0, orthogonal vectors score 1.
func CosineDistance(a, b Vector) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b Vector) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
