// Package qdrant stores the collection in a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
)

// Payload keys written with every point
const (
	payloadText  = "text"
	payloadModel = "embedding_model"
)

var waitForWrite = true

// Store is a vector.Store backed by a Qdrant collection
type Store struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
	model       string
	logger      zerolog.Logger
}

var _ vector.Store = (*Store)(nil)

// Open connects to the Qdrant gRPC endpoint at host:port
func Open(host string, port int, collection string, logger zerolog.Logger) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	s := New(qdrantclient.NewCollectionsClient(conn), qdrantclient.NewPointsClient(conn), collection, logger)
	s.conn = conn
	s.logger.Debug().Str("addr", addr).Msg("✅ connected to Qdrant")
	return s, nil
}

// New wraps existing gRPC clients
func New(collections qdrantclient.CollectionsClient, points qdrantclient.PointsClient, collection string, logger zerolog.Logger) *Store {
	if collection == "" {
		collection = vector.DefaultCollection
	}
	return &Store{
		collections: collections,
		points:      points,
		collection:  collection,
		logger:      logger.With().Str("backend", "qdrant").Str("collection", collection).Logger(),
	}
}

// Close closes the gRPC connection
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Exists checks if the collection is listed by the server
func (s *Store) Exists(ctx context.Context) (bool, error) {
	collections, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range collections.GetCollections() {
		if col.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// Recreate deletes the collection if it exists and creates it with cosine distance
func (s *Store) Recreate(ctx context.Context, spec vector.CollectionSpec) error {
	if spec.Dimensions <= 0 {
		return fmt.Errorf("qdrant collection needs a positive vector size, got %d", spec.Dimensions)
	}
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		s.logger.Debug().Msg("🗑️ deleting existing collection")
		if _, err := s.collections.Delete(ctx, &qdrantclient.DeleteCollection{CollectionName: s.collection}); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	_, err = s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(spec.Dimensions),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	s.model = spec.Model
	s.logger.Debug().Int("dimensions", spec.Dimensions).Msg("🆕 collection created")
	return nil
}

// Upsert writes chunks as points. The embedding model recorded by Recreate is
// stored in every payload.
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrantclient.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, s.toPoint(c))
	}

	s.logger.Debug().Int("points", len(points)).Msg("📤 upserting batch")
	_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &waitForWrite,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (s *Store) toPoint(c models.Chunk) *qdrantclient.PointStruct {
	payload := map[string]*qdrantclient.Value{
		payloadText:  stringValue(c.Content),
		payloadModel: stringValue(s.model),
	}
	for k, v := range c.Metadata {
		payload[k] = stringValue(v)
	}
	return &qdrantclient.PointStruct{
		Id: &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: pointID(c.ID)},
		},
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: c.Embedding},
			},
		},
		Payload: payload,
	}
}

// Search runs a similarity search; Qdrant returns cosine similarity as score
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error) {
	if ok, err := s.Exists(ctx); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, s.collection)
	}
	if limit <= 0 {
		return nil, nil
	}

	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: s.collection,
		Vector:         queryVector,
		Limit:          uint64(limit),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search in Qdrant: %w", err)
	}

	now := time.Now()
	results := make([]models.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		chunk := models.Chunk{
			ID:       point.GetId().GetUuid(),
			Metadata: map[string]string{},
		}
		for k, v := range point.GetPayload() {
			switch k {
			case payloadText:
				chunk.Content = v.GetStringValue()
			case payloadModel:
			default:
				chunk.Metadata[k] = valueString(v)
			}
		}
		if off, err := strconv.Atoi(chunk.Metadata[models.MetaStartIndex]); err == nil {
			chunk.Offset = off
		}
		results = append(results, models.SearchResult{
			Chunk:       chunk,
			Score:       embedding.Relevance(float64(point.GetScore())),
			RetrievedAt: now,
		})
	}
	vector.SortByScore(results)
	return results, nil
}

// Info reads the vector size and point count, and the embedding model from a stored point
func (s *Store) Info(ctx context.Context) (vector.CollectionInfo, error) {
	info := vector.CollectionInfo{Name: s.collection}
	if ok, err := s.Exists(ctx); err != nil {
		return info, err
	} else if !ok {
		return info, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, s.collection)
	}

	resp, err := s.collections.Get(ctx, &qdrantclient.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return info, fmt.Errorf("failed to get collection info: %w", err)
	}
	info.Dimensions = int(resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	info.Count = int(resp.GetResult().GetPointsCount())

	limit := uint32(1)
	scroll, err := s.points.Scroll(ctx, &qdrantclient.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{Fields: []string{payloadModel}},
			},
		},
	})
	if err != nil {
		return info, fmt.Errorf("failed to read a point: %w", err)
	}
	if pts := scroll.GetResult(); len(pts) > 0 {
		info.Model = pts[0].GetPayload()[payloadModel].GetStringValue()
	}
	return info, nil
}

// pointID returns id when it is a UUID, otherwise a UUID derived from it
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func stringValue(s string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
}

func valueString(v *qdrantclient.Value) string {
	switch k := v.GetKind().(type) {
	case *qdrantclient.Value_StringValue:
		return k.StringValue
	case *qdrantclient.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10)
	case *qdrantclient.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64)
	case *qdrantclient.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	}
	return ""
}
