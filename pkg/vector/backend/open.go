// Package backend selects a vector store implementation by name.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/vector"
	"github.com/andrew/mhw-rag/pkg/vector/chroma"
	"github.com/andrew/mhw-rag/pkg/vector/local"
	"github.com/andrew/mhw-rag/pkg/vector/qdrant"
)

// Open returns the store configured by cfg. With cfg.ReadOnly the local
// backend only opens an index that already exists.
func Open(_ context.Context, cfg vector.Config, embedder embedding.Embedder, logger zerolog.Logger) (vector.Store, error) {
	switch cfg.Backend {
	case "", vector.BackendLocal:
		if cfg.ReadOnly {
			return local.OpenExisting(cfg.Path, cfg.Collection, logger)
		}
		return local.Open(cfg.Path, cfg.Collection, logger)
	case vector.BackendQdrant:
		return qdrant.Open(cfg.QdrantHost, cfg.QdrantPort, cfg.Collection, logger)
	case vector.BackendChroma:
		return chroma.Open(cfg.ChromaURL, cfg.Collection, embedder, logger)
	}
	return nil, fmt.Errorf("unknown vector backend %q (want one of %v)", cfg.Backend, vector.Backends)
}
