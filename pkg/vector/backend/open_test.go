package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/mhw-rag/pkg/vector"
	"github.com/andrew/mhw-rag/pkg/vector/local"
)

func TestOpen_LocalByDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma_db")
	store, err := Open(context.Background(), vector.Config{Path: dir}, nil, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	ls, ok := store.(*local.Store)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, local.FileName), ls.Path())
	assert.FileExists(t, ls.Path())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), vector.Config{Backend: "faiss"}, nil, zerolog.Nop())
	assert.ErrorContains(t, err, `unknown vector backend "faiss"`)
}

func TestOpen_ReadOnlyLocalNeedsExistingIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma_db")

	_, err := Open(context.Background(), vector.Config{Path: dir, ReadOnly: true}, nil, zerolog.Nop())

	assert.ErrorIs(t, err, vector.ErrCollectionNotFound)
	assert.NoDirExists(t, dir)
}

func TestOpen_ReadOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	rw, err := Open(context.Background(), vector.Config{Backend: vector.BackendLocal, Path: dir}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := Open(context.Background(), vector.Config{Backend: vector.BackendLocal, Path: dir, ReadOnly: true}, nil, zerolog.Nop())
	require.NoError(t, err)
	defer ro.Close()
	assert.IsType(t, &local.Store{}, ro)
}
