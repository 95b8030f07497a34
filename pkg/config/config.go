// Package config loads the settings shared by the scraper, indexer and query tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/andrew/mhw-rag/pkg/llm"
	"github.com/andrew/mhw-rag/pkg/vector"
)

// EnvPrefix prefixes every environment override, e.g. MHW_RETRIEVAL_THRESHOLD
const EnvPrefix = "MHW"

// SyncLogName is the sync log file kept in the data directory unless
// scraper.sync_log names another path
const SyncLogName = "sync_log.json"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the tools
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Log       LogConfig       `mapstructure:"log"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Index     IndexConfig     `mapstructure:"index"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Chroma    ChromaConfig    `mapstructure:"chroma"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Prompt    PromptConfig    `mapstructure:"prompt"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
}

// LogConfig controls the console and file loggers
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
	File  bool   `mapstructure:"file"`
}

// OllamaConfig locates the Ollama server
type OllamaConfig struct {
	Host    string        `mapstructure:"host"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig selects the embedding model. The same model must be used
// to build and to query an index.
type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// LLMConfig holds generation settings
type LLMConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	TopP        float32 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// IndexConfig describes the vector index and how documents are chunked into it
type IndexConfig struct {
	Backend      string `mapstructure:"backend"`
	Path         string `mapstructure:"path"`
	Collection   string `mapstructure:"collection"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	UpsertBatch  int    `mapstructure:"upsert_batch"`
}

// QdrantConfig locates the qdrant gRPC endpoint
type QdrantConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ChromaConfig locates the chroma server
type ChromaConfig struct {
	URL string `mapstructure:"url"`
}

// RetrievalConfig holds the retrieval policy
type RetrievalConfig struct {
	TopK      int     `mapstructure:"top_k"`
	Threshold float64 `mapstructure:"threshold"`
	Delimiter string  `mapstructure:"delimiter"`
}

// PromptConfig bounds the composed prompt. MaxChars 0 disables the budget.
type PromptConfig struct {
	MaxChars int `mapstructure:"max_chars"`
}

// ScraperConfig controls the report scraper
type ScraperConfig struct {
	URL        string        `mapstructure:"url"`
	Fetcher    string        `mapstructure:"fetcher"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SyncLog    string        `mapstructure:"sync_log"`
	SyncLogCap int           `mapstructure:"sync_log_cap"`
}

// Option customises Load
type Option func(*viper.Viper) error

// WithFlags binds command line flags over config keys. Only flags the user
// set take precedence over environment and file values.
func WithFlags(flags *pflag.FlagSet, keys map[string]string) Option {
	return func(v *viper.Viper) error {
		for key, name := range keys {
			f := flags.Lookup(name)
			if f == nil {
				return fmt.Errorf("binding %s: no flag named --%s", key, name)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding %s: %w", key, err)
			}
		}
		return nil
	}
}

// Load builds the configuration from defaults, the optional file at path,
// MHW_ environment variables and bound flags, in increasing precedence.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Scraper.SyncLog == "" {
		cfg.Scraper.SyncLog = filepath.Join(cfg.DataDir, SyncLogName)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.file", true)

	v.SetDefault("ollama.host", llm.DefaultHost)
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		v.SetDefault("ollama.host", host)
	}
	v.SetDefault("ollama.timeout", "5m")

	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.batch_size", 32)

	gen := llm.DefaultModelConfig()
	v.SetDefault("llm.model", llm.DefaultModel)
	v.SetDefault("llm.temperature", gen.Temperature)
	v.SetDefault("llm.top_p", gen.TopP)
	v.SetDefault("llm.max_tokens", gen.MaxTokens)

	v.SetDefault("index.backend", vector.BackendLocal)
	v.SetDefault("index.path", "./chroma_db")
	v.SetDefault("index.collection", vector.DefaultCollection)
	v.SetDefault("index.chunk_size", 1000)
	v.SetDefault("index.chunk_overlap", 100)
	v.SetDefault("index.upsert_batch", 100)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("chroma.url", "http://localhost:8000")

	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.threshold", 0.7)
	v.SetDefault("retrieval.delimiter", "\n\n****\n\n")

	v.SetDefault("prompt.max_chars", 0)

	v.SetDefault("scraper.url", "https://psl.noaa.gov/marine-heatwaves/#report")
	v.SetDefault("scraper.fetcher", "http")
	v.SetDefault("scraper.timeout", "60s")
	// empty resolves to <data_dir>/sync_log.json after loading
	v.SetDefault("scraper.sync_log", "")
	v.SetDefault("scraper.sync_log_cap", 50)
}

// Fetchers accepted by scraper.fetcher
var Fetchers = []string{"http", "chromedp"}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("%w: index.chunk_size must be positive, got %d", ErrInvalid, c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("%w: index.chunk_overlap must be in [0, %d), got %d",
			ErrInvalid, c.Index.ChunkSize, c.Index.ChunkOverlap)
	}
	if strings.TrimSpace(c.Index.Collection) == "" {
		return fmt.Errorf("%w: index.collection is required", ErrInvalid)
	}
	if !contains(vector.Backends, c.Index.Backend) {
		return fmt.Errorf("%w: unknown index.backend %q (want one of %s)",
			ErrInvalid, c.Index.Backend, strings.Join(vector.Backends, ", "))
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive, got %d", ErrInvalid, c.Retrieval.TopK)
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("%w: retrieval.threshold must be in [0, 1], got %g", ErrInvalid, c.Retrieval.Threshold)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding.model cannot be empty", ErrInvalid)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model cannot be empty", ErrInvalid)
	}
	if c.Scraper.SyncLogCap <= 0 {
		return fmt.Errorf("%w: scraper.sync_log_cap must be positive, got %d", ErrInvalid, c.Scraper.SyncLogCap)
	}
	if !contains(Fetchers, c.Scraper.Fetcher) {
		return fmt.Errorf("%w: unknown scraper.fetcher %q (want one of %s)",
			ErrInvalid, c.Scraper.Fetcher, strings.Join(Fetchers, ", "))
	}
	return nil
}

// VectorConfig returns the settings needed to open the vector index
func (c *Config) VectorConfig() vector.Config {
	return vector.Config{
		Backend:    c.Index.Backend,
		Path:       c.Index.Path,
		Collection: c.Index.Collection,
		QdrantHost: c.Qdrant.Host,
		QdrantPort: c.Qdrant.Port,
		ChromaURL:  c.Chroma.URL,
	}
}

// ModelConfig returns the generation options
func (c *Config) ModelConfig() llm.ModelConfig {
	return llm.ModelConfig{
		Temperature: c.LLM.Temperature,
		TopP:        c.LLM.TopP,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
