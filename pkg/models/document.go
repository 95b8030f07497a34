package models

import (
	"strconv"
	"time"
)

// Metadata keys shared by documents, chunks and stored records
const (
	MetaSource     = "source"
	MetaStartIndex = "start_index"
)

// Document represents one markdown discussion loaded for indexing
type Document struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata"`
	Source      string            `json:"source"`
	Created     time.Time         `json:"created"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Chunk represents a contiguous slice of a document that gets embedded.
// A chunk with its Embedding set is the record stored in a collection.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Offset     int               `json:"offset"`
	Metadata   map[string]string `json:"metadata"`
	Embedding  []float32         `json:"embedding,omitempty"`
}

// Source returns the source path recorded in the chunk metadata
func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

// CloneMetadata copies the parent metadata and adds the chunk offset
func CloneMetadata(parent map[string]string, offset int) map[string]string {
	out := make(map[string]string, len(parent)+1)
	for k, v := range parent {
		out[k] = v
	}
	out[MetaStartIndex] = strconv.Itoa(offset)
	return out
}

// SearchResult represents a stored chunk that matched a query.
// Score is a relevance in [0,1], higher is more similar.
type SearchResult struct {
	Chunk       Chunk     `json:"chunk"`
	Score       float64   `json:"score"`
	RetrievedAt time.Time `json:"retrieved_at"`
}
