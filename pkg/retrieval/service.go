// Package retrieval turns a query into a context block of relevant passages.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
)

// Defaults for retrieval
const (
	DefaultTopK      = 3
	DefaultThreshold = 0.7
	DefaultDelimiter = "\n\n****\n\n"
)

// Service provides functionality for retrieving relevant passages
type Service interface {
	// Retrieve returns the passages of the topK best matches scoring at least threshold
	Retrieve(ctx context.Context, query string, topK int, threshold float64) (Result, error)
}

// Result is the outcome of one retrieval
type Result struct {
	Query string

	// Candidates are the topK matches before threshold filtering
	Candidates []models.SearchResult

	// Results are the candidates that passed the threshold, in score order
	Results []models.SearchResult

	// Context joins the surviving passages
	Context string
}

// Empty reports whether no passage passed the threshold
func (r Result) Empty() bool {
	return len(r.Results) == 0
}

// Retriever embeds queries and searches a vector store
type Retriever struct {
	embedder  embedding.Embedder
	store     vector.Store
	delimiter string
	logger    zerolog.Logger
}

var _ Service = (*Retriever)(nil)

// NewRetriever creates a retriever. An empty delimiter selects DefaultDelimiter.
func NewRetriever(embedder embedding.Embedder, store vector.Store, delimiter string, logger zerolog.Logger) *Retriever {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		delimiter: delimiter,
		logger:    logger.With().Str("component", "retriever").Logger(),
	}
}

// Check verifies the collection exists and was built with the retriever's embedding model
func (r *Retriever) Check(ctx context.Context) (vector.CollectionInfo, error) {
	info, err := r.store.Info(ctx)
	if err != nil {
		return info, err
	}
	if err := vector.CheckModel(info, r.embedder.ModelName()); err != nil {
		return info, err
	}
	return info, nil
}

// Retrieve embeds the query, fetches the topK nearest passages and drops
// those scoring below threshold. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64) (Result, error) {
	res := Result{Query: query}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return res, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return res, fmt.Errorf("searching collection: %w", err)
	}
	res.Candidates = candidates
	for i, c := range candidates {
		r.logger.Debug().
			Int("rank", i+1).
			Str("source", c.Chunk.Source()).
			Float64("score", c.Score).
			Msg("🔍 candidate")
	}

	res.Results = Filter(candidates, threshold)
	res.Context = JoinContext(res.Results, r.delimiter)
	r.logger.Debug().
		Int("candidates", len(candidates)).
		Int("kept", len(res.Results)).
		Float64("threshold", threshold).
		Msg("🔍 retrieval done")
	return res, nil
}

// Filter keeps results scoring at least threshold, preserving order
func Filter(results []models.SearchResult, threshold float64) []models.SearchResult {
	var kept []models.SearchResult
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// JoinContext concatenates result texts in order, separated by delimiter
func JoinContext(results []models.SearchResult, delimiter string) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Content
	}
	return strings.Join(texts, delimiter)
}
