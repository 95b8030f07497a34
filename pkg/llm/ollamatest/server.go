// Package ollamatest serves a fake Ollama API backed by a deterministic embedder.
package ollamatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/andrew/mhw-rag/pkg/embedding"
)

// Server answers /api/embed, /api/show and /api/generate
type Server struct {
	*httptest.Server

	// Answer is streamed back for every generate request
	Answer string

	embedder embedding.Embedder

	mu      sync.Mutex
	prompts []string
}

// NewServer starts a fake Ollama server closed at the end of the test
func NewServer(t *testing.T, embedder embedding.Embedder, answer string) *Server {
	t.Helper()
	s := &Server{Answer: answer, embedder: embedder}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", s.embed)
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.ShowResponse{})
	})
	mux.HandleFunc("/api/generate", s.generate)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Prompts returns every prompt received so far
func (s *Server) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func (s *Server) embed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vecs, err := s.embedder.EmbedBatch(r.Context(), req.Input)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(api.EmbedResponse{Model: req.Model, Embeddings: vecs})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	_ = enc.Encode(api.GenerateResponse{Model: req.Model, Response: s.Answer})
	_ = enc.Encode(api.GenerateResponse{Model: req.Model, Done: true})
}
