package embedding

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// OllamaEmbedder creates embeddings through the Ollama /api/embed endpoint
type OllamaEmbedder struct {
	client *api.Client
	model  string
	logger zerolog.Logger
}

// NewOllamaEmbedder creates an embedder for model on an existing Ollama client
func NewOllamaEmbedder(client *api.Client, model string, logger zerolog.Logger) *OllamaEmbedder {
	if model == "" {
		model = DefaultModel
	}
	return &OllamaEmbedder{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "embedder").Str("model", model).Logger(),
	}
}

// ModelName returns the embedding model name
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Embed returns the embedding of a single text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in a single request
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.logger.Debug().Int("texts", len(texts)).Msg("🔄 requesting embeddings")
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding with %s failed: %w", e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding with %s returned %d vectors for %d texts", e.model, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Similarity returns the cosine similarity between two texts
func (e *OllamaEmbedder) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	return Cosine(vecs[0], vecs[1]), nil
}
