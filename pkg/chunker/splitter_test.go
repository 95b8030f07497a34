package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/mhw-rag/pkg/models"
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, s.Overlap())
}

func TestNew_ClampsOverlap(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(100))
	assert.Equal(t, 25, s.Overlap())

	s = New(WithChunkSize(-1), WithOverlap(-5))
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, s.Overlap())
}

func TestSplit_EmptyInput(t *testing.T) {
	s := New()
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("  \n\n\t "))
}

func TestSplit_ShortDocumentIsOneChunk(t *testing.T) {
	s := New()
	text := "Marine heatwave conditions persist across the North Pacific."

	spans := s.Split(text)

	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Offset)
	assert.Equal(t, text, spans[0].Text)
}

func TestSplit_ExactSizeIsOneChunk(t *testing.T) {
	s := New(WithChunkSize(10), WithOverlap(2))
	spans := s.Split("abcdefghij")
	require.Len(t, spans, 1)
	assert.Equal(t, "abcdefghij", spans[0].Text)
}

func TestSplit_OffsetsAdvanceByLengthMinusOverlap(t *testing.T) {
	s := New(WithChunkSize(120), WithOverlap(20))
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The forecast shows warm anomalies near the coast")
		if i%5 == 4 {
			b.WriteString(".\n\n")
		} else {
			b.WriteString(". ")
		}
	}
	text := b.String()

	spans := s.Split(text)
	require.Greater(t, len(spans), 2)

	runes := []rune(text)
	for i, span := range spans {
		assert.LessOrEqual(t, span.Len(), 120, "span %d too long", i)
		assert.Equal(t, string(runes[span.Offset:span.Offset+span.Len()]), span.Text)
		if i+1 < len(spans) {
			assert.Equal(t, span.Offset+span.Len()-20, spans[i+1].Offset, "span %d", i)
		}
	}
	last := spans[len(spans)-1]
	assert.Equal(t, len(runes), last.Offset+last.Len())
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	s := New(WithChunkSize(30), WithOverlap(5))
	text := "first paragraph here\n\nsecond paragraph follows on"

	spans := s.Split(text)

	require.GreaterOrEqual(t, len(spans), 2)
	assert.Equal(t, "first paragraph here\n\n", spans[0].Text)
}

func TestSplit_FallsBackToWords(t *testing.T) {
	s := New(WithChunkSize(12), WithOverlap(2))
	spans := s.Split("alpha beta gamma delta")

	require.GreaterOrEqual(t, len(spans), 2)
	assert.Equal(t, "alpha beta ", spans[0].Text)
}

func TestSplit_HardCutWithoutSeparators(t *testing.T) {
	s := New(WithChunkSize(10), WithOverlap(3))
	text := strings.Repeat("x", 25)

	spans := s.Split(text)

	require.Len(t, spans, 4)
	offsets := make([]int, len(spans))
	for i, span := range spans {
		offsets[i] = span.Offset
	}
	assert.Equal(t, []int{0, 7, 14, 21}, offsets)
	assert.Equal(t, 10, spans[0].Len())
	assert.Equal(t, 4, spans[3].Len())
}

func TestSplit_CountsRunes(t *testing.T) {
	s := New(WithChunkSize(4), WithOverlap(1))
	spans := s.Split("°C°C°C")

	require.Len(t, spans, 2)
	assert.Equal(t, "°C°C", spans[0].Text)
	assert.Equal(t, 3, spans[1].Offset)
}

func TestSplitDocuments(t *testing.T) {
	s := New(WithChunkSize(20), WithOverlap(4))
	docs := []models.Document{
		{ID: "a", Content: "short one", Metadata: map[string]string{models.MetaSource: "data/a.md"}},
		{ID: "empty", Content: "   ", Metadata: map[string]string{models.MetaSource: "data/empty.md"}},
		{ID: "b", Content: "a somewhat longer discussion text", Metadata: map[string]string{models.MetaSource: "data/b.md"}},
	}

	chunks := s.SplitDocuments(docs)

	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, "a", chunks[0].DocumentID)
	assert.Equal(t, "short one", chunks[0].Content)
	assert.Equal(t, "0", chunks[0].Metadata[models.MetaStartIndex])
	assert.Equal(t, "data/a.md", chunks[0].Source())

	for _, c := range chunks[1:] {
		assert.Equal(t, "b", c.DocumentID)
		assert.Equal(t, ChunkID("data/b.md", c.Offset), c.ID)
	}
	// parent metadata is not mutated
	assert.NotContains(t, docs[0].Metadata, models.MetaStartIndex)
}

func TestChunkID_Stable(t *testing.T) {
	assert.Equal(t, ChunkID("data/x.md", 100), ChunkID("data/x.md", 100))
	assert.NotEqual(t, ChunkID("data/x.md", 100), ChunkID("data/x.md", 101))
	assert.NotEqual(t, ChunkID("data/x.md", 0), ChunkID("data/y.md", 0))
}
