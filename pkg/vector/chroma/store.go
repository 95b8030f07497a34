// Package chroma stores the collection in a Chroma server.
package chroma

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	chromago "github.com/amikos-tech/chroma-go"
	"github.com/amikos-tech/chroma-go/collection"
	"github.com/amikos-tech/chroma-go/types"
	"github.com/rs/zerolog"

	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
)

// Collection metadata keys
const (
	metaModel      = "embedding_model"
	metaDimensions = "dimensions"
)

// Store is a vector.Store backed by a Chroma collection using cosine space
type Store struct {
	client     *chromago.Client
	ef         types.EmbeddingFunction
	collection string
	logger     zerolog.Logger
}

var _ vector.Store = (*Store)(nil)

// Open creates a client for the Chroma server at url. The embedder is
// attached to the collection so server-side text queries use the same model.
func Open(url, collection string, embedder embedding.Embedder, logger zerolog.Logger) (*Store, error) {
	client, err := chromago.NewClient(chromago.WithBasePath(url))
	if err != nil {
		return nil, fmt.Errorf("failed to create ChromaDB client: %w", err)
	}
	if collection == "" {
		collection = vector.DefaultCollection
	}
	return &Store{
		client:     client,
		ef:         embeddingFunction{embedder: embedder},
		collection: collection,
		logger:     logger.With().Str("backend", "chroma").Str("collection", collection).Logger(),
	}, nil
}

// Close is a no-op; the HTTP client needs no cleanup
func (s *Store) Close() error {
	return nil
}

// Exists reports whether the server lists the collection
func (s *Store) Exists(ctx context.Context) (bool, error) {
	cols, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range cols {
		if c.Name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// Recreate deletes the collection if present and creates it in cosine space
func (s *Store) Recreate(ctx context.Context, spec vector.CollectionSpec) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Debug().Msg("🗑️ deleting existing collection")
		if _, err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	_, err = s.client.NewCollection(ctx, s.collection,
		collection.WithHNSWDistanceFunction(types.COSINE),
		collection.WithMetadata(metaModel, spec.Model),
		collection.WithMetadata(metaDimensions, spec.Dimensions),
		collection.WithEmbeddingFunction(s.ef),
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	s.logger.Debug().Str("model", spec.Model).Msg("🆕 collection created")
	return nil
}

func (s *Store) get(ctx context.Context) (*chromago.Collection, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, s.collection)
	}
	col, err := s.client.GetCollection(ctx, s.collection, s.ef)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return col, nil
}

// Upsert adds chunks with their precomputed embeddings
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col, err := s.get(ctx)
	if err != nil {
		return err
	}

	embeddings := make([]*types.Embedding, len(chunks))
	metadatas := make([]map[string]interface{}, len(chunks))
	documents := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		embeddings[i] = types.NewEmbeddingFromFloat32(c.Embedding)
		metadatas[i] = toMetadata(c.Metadata)
		documents[i] = c.Content
		ids[i] = c.ID
	}

	if _, err := col.Add(ctx, embeddings, metadatas, documents, ids); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search queries by embedding. Chroma reports cosine distance, so relevance is 1 - distance.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error) {
	col, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	}
	if limit <= 0 || count == 0 {
		return nil, nil
	}
	if limit > int(count) {
		limit = int(count)
	}

	qr, err := col.QueryWithOptions(ctx,
		types.WithQueryEmbeddings([]*types.Embedding{types.NewEmbeddingFromFloat32(queryVector)}),
		types.WithNResults(int32(limit)),
		types.WithInclude(types.IDocuments, types.IMetadatas, types.IDistances),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if len(qr.Ids) == 0 {
		return nil, nil
	}

	hits := make([]hit, len(qr.Ids[0]))
	for i, id := range qr.Ids[0] {
		hits[i].id = id
		if len(qr.Documents) > 0 && len(qr.Documents[0]) > i {
			hits[i].document = qr.Documents[0][i]
		}
		if len(qr.Metadatas) > 0 && len(qr.Metadatas[0]) > i {
			hits[i].metadata = qr.Metadatas[0][i]
		}
		if len(qr.Distances) > 0 && len(qr.Distances[0]) > i {
			hits[i].distance = float64(qr.Distances[0][i])
		}
	}
	return toResults(hits, time.Now()), nil
}

// Info returns the recorded model and dimensions and the record count
func (s *Store) Info(ctx context.Context) (vector.CollectionInfo, error) {
	info := vector.CollectionInfo{Name: s.collection}
	col, err := s.get(ctx)
	if err != nil {
		return info, err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to count collection: %w", err)
	}
	info.Count = int(count)
	if m, ok := col.Metadata[metaModel].(string); ok {
		info.Model = m
	}
	info.Dimensions = metadataInt(col.Metadata[metaDimensions])
	return info, nil
}

type hit struct {
	id       string
	document string
	metadata map[string]interface{}
	distance float64
}

func toResults(hits []hit, now time.Time) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		chunk := models.Chunk{
			ID:       h.id,
			Content:  h.document,
			Metadata: fromMetadata(h.metadata),
		}
		if off, err := strconv.Atoi(chunk.Metadata[models.MetaStartIndex]); err == nil {
			chunk.Offset = off
		}
		results = append(results, models.SearchResult{
			Chunk:       chunk,
			Score:       embedding.Relevance(1 - h.distance),
			RetrievedAt: now,
		})
	}
	vector.SortByScore(results)
	return results
}

func toMetadata(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func fromMetadata(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func metadataInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// embeddingFunction lets Chroma embed text with the configured embedder
type embeddingFunction struct {
	embedder embedding.Embedder
}

func (e embeddingFunction) EmbedDocuments(ctx context.Context, texts []string) ([]*types.Embedding, error) {
	if e.embedder == nil {
		return nil, errors.New("no embedder configured")
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = types.NewEmbeddingFromFloat32(v)
	}
	return out, nil
}

func (e embeddingFunction) EmbedQuery(ctx context.Context, text string) (*types.Embedding, error) {
	out, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e embeddingFunction) EmbedRecords(context.Context, []*types.Record, bool) error {
	return errors.New("record embedding is not used; vectors are supplied by the indexer")
}
