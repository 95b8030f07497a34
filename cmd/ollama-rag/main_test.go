package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/mhw-rag/pkg/chunker"
	"github.com/andrew/mhw-rag/pkg/embedding/embeddingtest"
	"github.com/andrew/mhw-rag/pkg/index"
	"github.com/andrew/mhw-rag/pkg/llm/ollamatest"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
	"github.com/andrew/mhw-rag/pkg/vector/local"
)

func init() {
	color.NoColor = true
}

const discussion = `# Marine Heatwave Forecast Discussion

##### Forecast initial time: May 2025

Forecasts predict that global MHW coverage will remain at ~25-30% through the forecast period.
`

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()

	for name, def := range map[string]string{
		"top-k":       "3",
		"threshold":   "0.7",
		"db":          "./chroma_db",
		"model":       "llama3",
		"backend":     "local",
		"show-prompt": "false",
		"debug":       "false",
	} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, def, f.DefValue, name)
	}
	for key, name := range flagKeys {
		assert.NotNil(t, cmd.Flags().Lookup(name), key)
	}
}

// buildIndex indexes the discussion into a local store under dir
func buildIndex(t *testing.T, dir, model string) {
	t.Helper()
	store, err := local.Open(dir, vector.DefaultCollection, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	emb := embeddingtest.New()
	emb.Model = model
	docs := []models.Document{{
		ID:       "data/marine_heatwave_discussion_init_May_2025.md",
		Content:  discussion,
		Metadata: map[string]string{models.MetaSource: "data/marine_heatwave_discussion_init_May_2025.md"},
	}}
	_, err = index.NewRebuilder(chunker.New(), emb, store, index.Config{}, zerolog.Nop()).Index(context.Background(), docs)
	require.NoError(t, err)
}

func run(t *testing.T, input string, args ...string) (string, *ollamatest.Server, error) {
	t.Helper()
	srv := ollamatest.NewServer(t, embeddingtest.New(), "Coverage stays near 25-30%.")
	t.Setenv("MHW_LOG_FILE", "false")
	t.Setenv("MHW_OLLAMA_HOST", srv.URL)

	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), srv, err
}

func TestRootCmd_Session(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, "nomic-embed-text")

	input := "what is the marine heatwave coverage forecast?\n\nzzz qqq\nQUIT\nnever asked\n"
	out, srv, err := run(t, input, "--db", dir, "--show-prompt")
	require.NoError(t, err)

	assert.Contains(t, out, "✅ Database loaded from: "+dir)
	assert.Contains(t, out, "✅ Model loaded: llama3")
	assert.Contains(t, out, "📄 Found 1 relevant documents")
	assert.Contains(t, out, "📝 RAG prompt:")
	assert.Contains(t, out, "Coverage stays near 25-30%.")
	assert.Contains(t, out, "📄 No relevant documents found.")
	assert.Contains(t, out, "Thanks for using the Marine Heatwave RAG System!")

	prompts := srv.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "global MHW coverage will remain at ~25-30%")
	assert.Contains(t, prompts[0], "what is the marine heatwave coverage forecast?")
}

func TestRootCmd_HistoryReachesSecondPrompt(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, "nomic-embed-text")

	input := "what is the marine heatwave coverage forecast?\nmarine heatwave coverage forecast again\n"
	_, srv, err := run(t, input, "--db", dir)
	require.NoError(t, err)

	prompts := srv.Prompts()
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "Coverage stays near 25-30%.")
	assert.Contains(t, prompts[1], "Coverage stays near 25-30%.")
}

func TestRootCmd_MissingIndex(t *testing.T) {
	dir := t.TempDir()
	_, srv, err := run(t, "quit\n", "--db", dir)

	assert.ErrorIs(t, err, vector.ErrCollectionNotFound)
	assert.ErrorContains(t, err, "rag-indexer")
	assert.Empty(t, srv.Prompts())
	assert.NoFileExists(t, filepath.Join(dir, local.FileName))
}

func TestRootCmd_MistypedDBCreatesNothing(t *testing.T) {
	parent := t.TempDir()
	_, _, err := run(t, "quit\n", "--db", filepath.Join(parent, "typo_db"))

	assert.ErrorIs(t, err, vector.ErrCollectionNotFound)
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRootCmd_LeavesIndexUntouched(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, "nomic-embed-text")
	path := filepath.Join(dir, local.FileName)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, _, err = run(t, "what is the marine heatwave coverage forecast?\nquit\n", "--db", dir)
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRootCmd_ModelMismatch(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, "all-minilm")

	_, _, err := run(t, "quit\n", "--db", dir)

	assert.ErrorIs(t, err, vector.ErrModelMismatch)
}

func TestPrinter_Failed(t *testing.T) {
	out := new(bytes.Buffer)
	p := newPrinter(out)

	p.Failed("retrieving documents", errors.New("connection refused"))

	assert.Contains(t, out.String(), "❌ Error retrieving documents: connection refused")
}
