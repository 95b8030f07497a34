// Package app wires configuration, logging and the Ollama and vector
// clients for the command line tools.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/spf13/pflag"

	"github.com/andrew/mhw-rag/pkg/chunker"
	"github.com/andrew/mhw-rag/pkg/config"
	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/llm"
	"github.com/andrew/mhw-rag/pkg/logging"
	"github.com/andrew/mhw-rag/pkg/vector"
	"github.com/andrew/mhw-rag/pkg/vector/backend"
)

// Options describes how a tool was started
type Options struct {
	Tool       string
	ConfigPath string
	Debug      bool
	// Flags and Keys bind command line flags over config keys
	Flags   *pflag.FlagSet
	Keys    map[string]string
	Console io.Writer
}

// Env is the configured environment of one tool run
type Env struct {
	Tool   string
	Config *config.Config
	Logger *logging.Logger

	ollama *api.Client
}

// Setup loads and validates the configuration and creates the logger
func Setup(opts Options) (*Env, error) {
	var loadOpts []config.Option
	if opts.Flags != nil && len(opts.Keys) > 0 {
		loadOpts = append(loadOpts, config.WithFlags(opts.Flags, opts.Keys))
	}
	cfg, err := config.Load(opts.ConfigPath, loadOpts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Dir:     cfg.Log.Dir,
		Tool:    opts.Tool,
		Console: opts.Console,
		File:    cfg.Log.File,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	if logger.Path != "" {
		logger.Debug().Str("path", logger.Path).Msg("📝 logging to file")
	}
	return &Env{Tool: opts.Tool, Config: cfg, Logger: logger}, nil
}

// Close releases the log file
func (e *Env) Close() error {
	return e.Logger.Close()
}

// Ollama returns the shared Ollama API client
func (e *Env) Ollama() (*api.Client, error) {
	if e.ollama != nil {
		return e.ollama, nil
	}
	c, err := llm.NewAPIClient(e.Config.Ollama.Host, e.Config.Ollama.Timeout)
	if err != nil {
		return nil, err
	}
	e.ollama = c
	return c, nil
}

// Embedder returns the configured Ollama embedder
func (e *Env) Embedder() (*embedding.OllamaEmbedder, error) {
	c, err := e.Ollama()
	if err != nil {
		return nil, err
	}
	return embedding.NewOllamaEmbedder(c, e.Config.Embedding.Model, e.Logger.Logger), nil
}

// LLM returns the configured generation client
func (e *Env) LLM() (*llm.OllamaClient, error) {
	c, err := e.Ollama()
	if err != nil {
		return nil, err
	}
	return llm.NewOllamaClient(c, e.Config.LLM.Model, e.Logger.Logger), nil
}

// Store opens the configured vector index for writing
func (e *Env) Store(ctx context.Context, embedder embedding.Embedder) (vector.Store, error) {
	return e.openStore(ctx, embedder, false)
}

// ReadStore opens an existing vector index without modifying it
func (e *Env) ReadStore(ctx context.Context, embedder embedding.Embedder) (vector.Store, error) {
	return e.openStore(ctx, embedder, true)
}

func (e *Env) openStore(ctx context.Context, embedder embedding.Embedder, readOnly bool) (vector.Store, error) {
	cfg := e.Config.VectorConfig()
	cfg.ReadOnly = readOnly
	store, err := backend.Open(ctx, cfg, embedder, e.Logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s index: %w", cfg.Backend, err)
	}
	return store, nil
}

// Splitter returns a chunker using the configured sizes
func (e *Env) Splitter() *chunker.Splitter {
	return chunker.New(
		chunker.WithChunkSize(e.Config.Index.ChunkSize),
		chunker.WithOverlap(e.Config.Index.ChunkOverlap),
	)
}
