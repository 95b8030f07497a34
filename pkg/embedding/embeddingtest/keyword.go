// Package embeddingtest provides a deterministic embedder for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// concepts maps words onto shared dimensions so that related wording lands
// close together.
var concepts = map[string]int{
	"forecast": 0, "forecasts": 0, "forecasted": 0, "predict": 0, "predicts": 0, "prediction": 0, "outlook": 0,
	"heatwave": 1, "heatwaves": 1, "mhw": 1, "mhws": 1, "marine": 1,
	"coverage": 2, "extent": 2, "area": 2,
	"temperature": 3, "temperatures": 3, "sst": 3, "warm": 3, "warming": 3, "anomaly": 3, "anomalies": 3,
	"pacific": 4, "atlantic": 4, "indian": 4, "ocean": 4, "basin": 4,
	"enso": 5, "nino": 5, "niño": 5, "nina": 5, "niña": 5,
}

const conceptDims = 6

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "what": true, "of": true,
	"to": true, "in": true, "at": true, "and": true, "will": true, "that": true, "for": true,
}

// Embedder is a keyword-bag embedder. Known words map onto concept
// dimensions and every other word is hashed into the remaining dimensions.
type Embedder struct {
	Model      string
	Dimensions int

	// Err, when set, is returned from every call
	Err error

	mu    sync.Mutex
	calls int
}

// New returns an embedder with 32 dimensions
func New() *Embedder {
	return &Embedder{Model: "keyword-test", Dimensions: 32}
}

// Calls reports how many embedding calls were made
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ModelName returns the configured model name
func (e *Embedder) ModelName() string {
	return e.Model
}

// Embed returns the vector for text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text
func (e *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	dims := e.Dimensions
	if dims <= conceptDims {
		dims = conceptDims + 1
	}
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if stopwords[w] {
			continue
		}
		if dim, ok := concepts[w]; ok {
			vec[dim] += 2
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[conceptDims+int(h.Sum32()%uint32(dims-conceptDims))] += 0.5
	}
	return vec
}
