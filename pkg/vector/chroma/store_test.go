package chroma

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/mhw-rag/pkg/embedding/embeddingtest"
	"github.com/andrew/mhw-rag/pkg/models"
)

func TestToResults_DistanceToRelevance(t *testing.T) {
	now := time.Now()
	results := toResults([]hit{
		{id: "b", document: "second", distance: 0.4, metadata: map[string]interface{}{"source": "data/b.md", "start_index": "900"}},
		{id: "a", document: "first", distance: 0.1},
		{id: "c", document: "opposite", distance: 1.6},
	}, now)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Equal(t, "b", results[1].Chunk.ID)
	assert.Equal(t, 900, results[1].Chunk.Offset)
	assert.Equal(t, "data/b.md", results[1].Chunk.Source())
	assert.Equal(t, 0.0, results[2].Score)
	assert.Equal(t, now, results[2].RetrievedAt)
}

func TestMetadataRoundTrip(t *testing.T) {
	in := map[string]string{models.MetaSource: "data/a.md", models.MetaStartIndex: "0"}
	assert.Equal(t, in, fromMetadata(toMetadata(in)))
}

func TestMetadataInt(t *testing.T) {
	assert.Equal(t, 768, metadataInt(float64(768)))
	assert.Equal(t, 768, metadataInt(int64(768)))
	assert.Equal(t, 768, metadataInt("768"))
	assert.Equal(t, 0, metadataInt(nil))
}

func TestEmbeddingFunction(t *testing.T) {
	ef := embeddingFunction{embedder: embeddingtest.New()}
	docs, err := ef.EmbedDocuments(context.Background(), []string{"marine heatwave", "forecast"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	q, err := ef.EmbedQuery(context.Background(), "forecast")
	require.NoError(t, err)
	assert.NotNil(t, q)

	_, err = embeddingFunction{}.EmbedQuery(context.Background(), "x")
	assert.Error(t, err)
}
