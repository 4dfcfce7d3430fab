// Package infer provides clients for the model inference backend:
// sentence embedding, cross-encoder scoring, and seq2seq summarization.
//
// All three models live behind one HTTP inference service. Instances are
// process-wide, constructed lazily, warmed once, and safe for concurrent
// use afterwards.
package infer

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultTimeout is the default timeout for inference requests.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize caps the number of inputs per embed request.
	DefaultBatchSize = 32

	// DefaultEmbeddingCacheSize is the default LRU capacity for the
	// embedding cache.
	DefaultEmbeddingCacheSize = 1000
)

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, index-aligned
	// with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string
}

// CrossEncoder scores (query, text) pairs for relevance.
type CrossEncoder interface {
	// Score returns one relevance score per text, index-aligned.
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Seq2Seq generates an abstractive summary of the input text.
type Seq2Seq interface {
	Generate(ctx context.Context, text string, opts GenerateOptions) (string, error)
}

// GenerateOptions are the seq2seq generation parameters.
type GenerateOptions struct {
	MaxLength  int
	MinLength  int
	Truncation bool
}

// CosineSimilarity computes the cosine similarity of two vectors.
// A small epsilon in the denominator avoids division by zero.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}

// Centroid returns the element-wise mean of the given vectors.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}
