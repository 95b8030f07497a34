// Package embedding maps text to fixed-length vectors and compares them.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// DefaultModel is the embedding model used when none is configured
const DefaultModel = "nomic-embed-text"

// DefaultDimensions is the vector size produced by DefaultModel
const DefaultDimensions = 768

// Embedder maps text to vectors. The same embedder must be used to build a
// collection and to query it.
type Embedder interface {
	// Embed returns the vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the model producing the vectors
	ModelName() string
}

// Comparer is an optional diagnostic capability of an Embedder
type Comparer interface {
	// Similarity returns the cosine similarity of two arbitrary texts
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Similarity embeds both texts with e and returns their cosine similarity.
// It uses the embedder's own Comparer when available.
func Similarity(ctx context.Context, e Embedder, a, b string) (float64, error) {
	if c, ok := e.(Comparer); ok {
		return c.Similarity(ctx, a, b)
	}
	vecs, err := e.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(vecs))
	}
	return Cosine(vecs[0], vecs[1]), nil
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero norm have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Relevance maps a cosine similarity to a relevance score in [0,1]
func Relevance(cosine float64) float64 {
	switch {
	case math.IsNaN(cosine), cosine < 0:
		return 0
	case cosine > 1:
		return 1
	}
	return cosine
}
