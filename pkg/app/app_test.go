package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/mhw-rag/pkg/config"
	"github.com/andrew/mhw-rag/pkg/embedding/embeddingtest"
	"github.com/andrew/mhw-rag/pkg/vector"
)

func TestSetup_DefaultsWithoutLogFile(t *testing.T) {
	t.Setenv("MHW_LOG_FILE", "false")

	env, err := Setup(Options{Tool: "rag-indexer", Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, "rag-indexer", env.Tool)
	assert.Empty(t, env.Logger.Path)
	assert.Equal(t, zerolog.InfoLevel, env.Logger.GetLevel())
	assert.Equal(t, 1000, env.Splitter().ChunkSize())
	assert.Equal(t, 100, env.Splitter().Overlap())
}

func TestSetup_DebugAndLogFile(t *testing.T) {
	t.Setenv("MHW_LOG_DIR", filepath.Join(t.TempDir(), "logs"))

	env, err := Setup(Options{Tool: "ollama-rag", Debug: true, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, zerolog.DebugLevel, env.Logger.GetLevel())
	assert.FileExists(t, env.Logger.Path)
}

func TestSetup_FlagsAndValidation(t *testing.T) {
	t.Setenv("MHW_LOG_FILE", "false")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("threshold", 0.7, "")
	require.NoError(t, fs.Parse([]string{"--threshold", "2"}))

	_, err := Setup(Options{
		Flags:   fs,
		Keys:    map[string]string{"retrieval.threshold": "threshold"},
		Console: &bytes.Buffer{},
	})

	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestEnv_LocalStore(t *testing.T) {
	t.Setenv("MHW_LOG_FILE", "false")
	t.Setenv("MHW_INDEX_PATH", t.TempDir())

	env, err := Setup(Options{Tool: "test", Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer env.Close()

	store, err := env.Store(context.Background(), embeddingtest.New())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Info(context.Background())
	assert.ErrorIs(t, err, vector.ErrCollectionNotFound)
}

func TestEnv_ReadStoreLeavesMissingIndexAlone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "typo_db")
	t.Setenv("MHW_LOG_FILE", "false")
	t.Setenv("MHW_INDEX_PATH", dir)

	env, err := Setup(Options{Tool: "test", Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer env.Close()

	_, err = env.ReadStore(context.Background(), embeddingtest.New())
	assert.ErrorIs(t, err, vector.ErrCollectionNotFound)
	assert.NoDirExists(t, dir)
}

func TestEnv_OllamaClientsShareConnection(t *testing.T) {
	t.Setenv("MHW_LOG_FILE", "false")
	t.Setenv("MHW_OLLAMA_HOST", "http://127.0.0.1:11434")
	t.Setenv("MHW_EMBEDDING_MODEL", "mxbai-embed-large")

	env, err := Setup(Options{Tool: "test", Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer env.Close()

	a, err := env.Ollama()
	require.NoError(t, err)
	b, err := env.Ollama()
	require.NoError(t, err)
	assert.Same(t, a, b)

	emb, err := env.Embedder()
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", emb.ModelName())

	gen, err := env.LLM()
	require.NoError(t, err)
	assert.Equal(t, "llama3", gen.ModelName())
}
