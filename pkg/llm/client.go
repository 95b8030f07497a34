package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultModel is the generation model used when none is configured
const DefaultModel = "llama3"

// DefaultHost is the Ollama endpoint used when neither config nor OLLAMA_HOST is set
const DefaultHost = "http://localhost:11434"

// Client is the interface for interacting with LLMs
type Client interface {
	Generate(ctx context.Context, prompt string, config ModelConfig) (string, error)
	ModelName() string
	Ping(ctx context.Context) error
	Close() error
}

// ModelConfig holds configuration parameters for model generation
type ModelConfig struct {
	Temperature   float32
	TopP          float32
	MaxTokens     int
	StopSequences []string
}

// DefaultModelConfig returns a default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2048,
	}
}

// Options converts the config to Ollama request options
func (c ModelConfig) Options() map[string]any {
	opts := map[string]any{}
	if c.Temperature > 0 {
		opts["temperature"] = c.Temperature
	}
	if c.TopP > 0 {
		opts["top_p"] = c.TopP
	}
	if c.MaxTokens > 0 {
		opts["num_predict"] = c.MaxTokens
	}
	if len(c.StopSequences) > 0 {
		opts["stop"] = c.StopSequences
	}
	return opts
}

// NewAPIClient builds an Ollama API client. An empty host falls back to
// OLLAMA_HOST and then to DefaultHost.
func NewAPIClient(host string, timeout time.Duration) (*api.Client, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = DefaultHost
	}

	ollamaURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}
	if ollamaURL.Scheme == "" || ollamaURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama host %q: want scheme://host:port", host)
	}

	return api.NewClient(ollamaURL, &http.Client{Timeout: timeout}), nil
}
