// Package index builds the vector collection from documents.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrew/mhw-rag/pkg/chunker"
	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
)

// Default batch sizes
const (
	DefaultEmbedBatch  = 32
	DefaultUpsertBatch = 100
)

// Indexer turns documents into a searchable collection
type Indexer interface {
	Index(ctx context.Context, docs []models.Document) (Stats, error)
}

// Stats summarises an index build
type Stats struct {
	Documents  int
	Chunks     int
	Model      string
	Dimensions int
	Duration   time.Duration
}

// Config controls a Rebuilder
type Config struct {
	Collection string
	// Dimensions is used to create the collection when there is nothing to embed
	Dimensions  int
	EmbedBatch  int
	UpsertBatch int
}

// Rebuilder replaces the whole collection on every run. All chunks are
// embedded first; the collection is then dropped, recreated and filled.
// A failure after the drop leaves no usable collection.
type Rebuilder struct {
	splitter *chunker.Splitter
	embedder embedding.Embedder
	store    vector.Store
	cfg      Config
	logger   zerolog.Logger
}

var _ Indexer = (*Rebuilder)(nil)

// NewRebuilder creates a full-rebuild indexer
func NewRebuilder(splitter *chunker.Splitter, embedder embedding.Embedder, store vector.Store, cfg Config, logger zerolog.Logger) *Rebuilder {
	if cfg.Collection == "" {
		cfg.Collection = vector.DefaultCollection
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = embedding.DefaultDimensions
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = DefaultEmbedBatch
	}
	if cfg.UpsertBatch <= 0 {
		cfg.UpsertBatch = DefaultUpsertBatch
	}
	return &Rebuilder{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "indexer").Logger(),
	}
}

// Index chunks, embeds and stores docs, replacing any previous collection
func (r *Rebuilder) Index(ctx context.Context, docs []models.Document) (Stats, error) {
	start := time.Now()
	stats := Stats{Documents: len(docs), Model: r.embedder.ModelName(), Dimensions: r.cfg.Dimensions}

	chunks := r.splitter.SplitDocuments(docs)
	stats.Chunks = len(chunks)
	r.logger.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("🧩 split documents")

	if err := r.embed(ctx, chunks); err != nil {
		return stats, err
	}
	if len(chunks) > 0 {
		stats.Dimensions = len(chunks[0].Embedding)
	}

	spec := vector.CollectionSpec{Name: r.cfg.Collection, Model: stats.Model, Dimensions: stats.Dimensions}
	if err := r.store.Recreate(ctx, spec); err != nil {
		return stats, fmt.Errorf("recreating collection %s: %w", r.cfg.Collection, err)
	}

	for i := 0; i < len(chunks); i += r.cfg.UpsertBatch {
		end := min(i+r.cfg.UpsertBatch, len(chunks))
		if err := r.store.Upsert(ctx, chunks[i:end]); err != nil {
			return stats, fmt.Errorf("storing chunks %d-%d: %w", i, end, err)
		}
		r.logger.Debug().Int("stored", end).Int("total", len(chunks)).Msg("📤 stored batch")
	}

	stats.Duration = time.Since(start)
	r.logger.Info().
		Int("chunks", stats.Chunks).
		Int("dimensions", stats.Dimensions).
		Dur("took", stats.Duration).
		Msg("✅ collection rebuilt")
	return stats, nil
}

func (r *Rebuilder) embed(ctx context.Context, chunks []models.Chunk) error {
	dims := 0
	for i := 0; i < len(chunks); i += r.cfg.EmbedBatch {
		end := min(i+r.cfg.EmbedBatch, len(chunks))
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Content)
		}

		vecs, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", i, end, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedding chunks %d-%d: got %d vectors", i, end, len(vecs))
		}
		for j, v := range vecs {
			if dims == 0 {
				dims = len(v)
			}
			if len(v) != dims {
				return fmt.Errorf("chunk %s embedded to %d dimensions, expected %d", chunks[i+j].ID, len(v), dims)
			}
			chunks[i+j].Embedding = v
		}
		r.logger.Debug().Int("embedded", end).Int("total", len(chunks)).Msg("🔄 embedded batch")
	}
	return nil
}
