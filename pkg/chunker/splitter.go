// Package chunker splits documents into overlapping, bounded-length chunks.
//
// Splitting is recursive over a separator list: the largest separator that
// yields a cut inside the window wins, falling back to smaller separators and
// finally to a hard character cut. Offsets and lengths are counted in runes.
package chunker

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/andrew/mhw-rag/pkg/models"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
const DefaultChunkOverlap = 100

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// chunkNamespace scopes content-addressed chunk identifiers.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mhw-rag:chunk"))

// Span is one piece of a split text.
type Span struct {
	Offset int
	Text   string
}

// Len returns the span length in characters.
func (s Span) Len() int {
	return len([]rune(s.Text))
}

// Splitter splits text recursively on separators.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the number of characters shared by adjacent chunks.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator list. An empty string means a hard
// character cut; it is appended automatically when missing.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = toRunes(seps)
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for progress
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	if last := s.separators[len(s.separators)-1]; len(last) != 0 {
		s.separators = append(s.separators, nil)
	}
	return s
}

// ChunkSize returns the configured maximum chunk length.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap length.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into spans no longer than the chunk size. Consecutive spans
// share exactly Overlap characters, so offset[i+1] = offset[i] + len[i] - overlap.
// Whitespace-only text yields no spans.
func (s *Splitter) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var spans []Span
	start := 0
	for {
		if len(runes)-start <= s.chunkSize {
			spans = append(spans, Span{Offset: start, Text: string(runes[start:])})
			return spans
		}

		cut := s.cutPoint(runes, start)
		spans = append(spans, Span{Offset: start, Text: string(runes[start:cut])})
		start = cut - s.overlap
	}
}

// cutPoint returns the end of the chunk starting at start. The separator is
// kept at the end of the chunk it closes. A cut must land past start+overlap
// so the next chunk begins after the current one.
func (s *Splitter) cutPoint(runes []rune, start int) int {
	windowEnd := start + s.chunkSize
	minCut := start + s.overlap + 1

	for _, sep := range s.separators {
		if len(sep) == 0 {
			return windowEnd
		}
		for i := windowEnd - len(sep); i >= start && i+len(sep) >= minCut; i-- {
			if hasPrefix(runes[i:], sep) {
				return i + len(sep)
			}
		}
	}
	return windowEnd
}

// SplitDocuments chunks every document in order. Each chunk inherits the
// document metadata plus its start offset, and gets an identifier derived
// from the document source and offset.
func (s *Splitter) SplitDocuments(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		source := doc.Metadata[models.MetaSource]
		if source == "" {
			source = doc.Source
		}
		for _, span := range s.Split(doc.Content) {
			chunks = append(chunks, models.Chunk{
				ID:         ChunkID(source, span.Offset),
				DocumentID: doc.ID,
				Content:    span.Text,
				Offset:     span.Offset,
				Metadata:   models.CloneMetadata(doc.Metadata, span.Offset),
			})
		}
	}
	return chunks
}

// ChunkID returns the stable identifier of the chunk at offset in source.
func ChunkID(source string, offset int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(offset))).String()
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, len(seps))
	for i, sep := range seps {
		out[i] = []rune(sep)
	}
	return out
}

func hasPrefix(runes, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i := range prefix {
		if runes[i] != prefix[i] {
			return false
		}
	}
	return true
}
