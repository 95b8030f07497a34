package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/andrew/mhw-rag/pkg/models"
)

// DefaultCollection is the fixed name of the discussion collection
const DefaultCollection = "marine_heatwave_discussions"

var (
	// ErrCollectionNotFound is returned when the collection has not been built
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrModelMismatch is returned when a collection was built with a different embedding model
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// Store defines the interface for vector database operations on one named collection
type Store interface {
	// Exists reports whether the collection is present
	Exists(ctx context.Context) (bool, error)

	// Recreate drops the collection if present and creates an empty one
	Recreate(ctx context.Context, spec CollectionSpec) error

	// Upsert writes embedded chunks into the collection
	Upsert(ctx context.Context, chunks []models.Chunk) error

	// Search returns at most limit records ordered by descending relevance
	Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error)

	// Info describes the collection
	Info(ctx context.Context) (CollectionInfo, error)

	// Close releases resources used by the vector store
	Close() error
}

// CollectionSpec describes a collection to create
type CollectionSpec struct {
	Name       string
	Model      string
	Dimensions int
}

// CollectionInfo describes an existing collection. Model is empty when the
// backend does not record it.
type CollectionInfo struct {
	Name       string
	Model      string
	Dimensions int
	Count      int
}

// CheckModel verifies that a collection built with info.Model can be queried with model
func CheckModel(info CollectionInfo, model string) error {
	if info.Model == "" || info.Model == model {
		return nil
	}
	return fmt.Errorf("%w: collection %q was built with %q, query uses %q", ErrModelMismatch, info.Name, info.Model, model)
}

// Backend names
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
	BackendChroma = "chroma"
)

// Backends lists the supported backends
var Backends = []string{BackendLocal, BackendQdrant, BackendChroma}

// Config contains configuration for a vector database
type Config struct {
	Backend    string // local, qdrant or chroma
	Path       string // directory for the local backend
	Collection string
	QdrantHost string
	QdrantPort int
	ChromaURL  string
	// ReadOnly opens an existing index without creating files or schema
	ReadOnly bool
}

// SortByScore orders results by descending score, keeping the input order of ties
func SortByScore(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
