package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// OllamaClient generates text with a model served by Ollama
type OllamaClient struct {
	api    *api.Client
	model  string
	logger zerolog.Logger
}

var _ Client = (*OllamaClient)(nil)

// NewOllamaClient creates a client for model on an existing Ollama API client
func NewOllamaClient(client *api.Client, model string, logger zerolog.Logger) *OllamaClient {
	if model == "" {
		model = DefaultModel
	}
	return &OllamaClient{
		api:    client,
		model:  model,
		logger: logger.With().Str("component", "llm").Str("model", model).Logger(),
	}
}

// ModelName returns the generation model name
func (c *OllamaClient) ModelName() string {
	return c.model
}

// Ping verifies that the server is reachable and the model is installed
func (c *OllamaClient) Ping(ctx context.Context) error {
	if _, err := c.api.Show(ctx, &api.ShowRequest{Model: c.model}); err != nil {
		return fmt.Errorf("model %s is not available (is `ollama serve` running and the model pulled?): %w", c.model, err)
	}
	return nil
}

// Generate sends a single prompt and returns the streamed response joined together
func (c *OllamaClient) Generate(ctx context.Context, prompt string, config ModelConfig) (string, error) {
	stream := true
	req := &api.GenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: config.Options(),
	}

	var response strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		if resp.Done {
			c.logger.Debug().
				Int("prompt_tokens", resp.PromptEvalCount).
				Int("tokens", resp.EvalCount).
				Dur("took", resp.TotalDuration).
				Msg("✅ generation finished")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generation with %s failed: %w", c.model, err)
	}
	return response.String(), nil
}

// Close is a no-op; the HTTP client needs no cleanup
func (c *OllamaClient) Close() error {
	return nil
}
