// Package local stores a collection in a single SQLite file under the index
// directory and searches it by brute-force cosine similarity.
package local

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/andrew/mhw-rag/pkg/embedding"
	"github.com/andrew/mhw-rag/pkg/models"
	"github.com/andrew/mhw-rag/pkg/vector"
)

// FileName is the database file created inside the index directory
const FileName = "index.sqlite3"

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS embeddings (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	vector     BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);`

// Store is a vector.Store backed by SQLite
type Store struct {
	db         *sql.DB
	path       string
	collection string
	logger     zerolog.Logger
}

var _ vector.Store = (*Store)(nil)

// Open opens or creates the index database in dir for the named collection
func Open(dir, collection string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	return newStore(db, dbPath, collection, logger), nil
}

// OpenExisting opens an index database read-only. Nothing is created on
// disk: a missing database or schema is reported as
// vector.ErrCollectionNotFound.
func OpenExisting(dir, collection string, logger zerolog.Logger) (*Store, error) {
	dbPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no index at %s", vector.ErrCollectionNotFound, dbPath)
	} else if err != nil {
		return nil, fmt.Errorf("checking index database: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('collections', 'embeddings')`).Scan(&tables)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading index schema: %w", err)
	}
	if tables != 2 {
		db.Close()
		return nil, fmt.Errorf("%w: %s has no index schema", vector.ErrCollectionNotFound, dbPath)
	}
	return newStore(db, dbPath, collection, logger), nil
}

func newStore(db *sql.DB, path, collection string, logger zerolog.Logger) *Store {
	if collection == "" {
		collection = vector.DefaultCollection
	}
	return &Store{
		db:         db,
		path:       path,
		collection: collection,
		logger:     logger.With().Str("backend", "local").Str("collection", collection).Logger(),
	}
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether the collection has been created
func (s *Store) Exists(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, s.collection).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking collection: %w", err)
	}
	return n > 0, nil
}

// Recreate deletes the collection with all its records and creates it empty
func (s *Store) Recreate(ctx context.Context, spec vector.CollectionSpec) error {
	if spec.Name != "" && spec.Name != s.collection {
		return fmt.Errorf("store is bound to collection %q, not %q", s.collection, spec.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (name, model, dimensions, created_at) VALUES (?, ?, ?, ?)`,
		s.collection, spec.Model, spec.Dimensions, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing collection: %w", err)
	}

	s.logger.Debug().Str("model", spec.Model).Int("dimensions", spec.Dimensions).Msg("🆕 collection created")
	return nil
}

// Upsert inserts or replaces embedded chunks
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk) error {
	info, err := s.Info(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (collection, id, content, metadata, vector) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if info.Dimensions > 0 && len(c.Embedding) != info.Dimensions {
			return fmt.Errorf("chunk %s has %d dimensions, collection expects %d", c.ID, len(c.Embedding), info.Dimensions)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, c.ID, c.Content, string(meta), encodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("upserting %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Search compares the query against every stored vector and returns the
// limit best matches. Records with equal scores keep their insertion order.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]models.SearchResult, error) {
	if ok, err := s.Exists(ctx); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, s.collection)
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, vector FROM embeddings WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var results []models.SearchResult
	for rows.Next() {
		var (
			id, content, meta string
			blob              []byte
		)
		if err := rows.Scan(&id, &content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		chunk := models.Chunk{ID: id, Content: content}
		if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
		chunk.Embedding = decodeVector(blob)
		results = append(results, models.SearchResult{
			Chunk:       chunk,
			Score:       embedding.Relevance(embedding.Cosine(queryVector, chunk.Embedding)),
			RetrievedAt: now,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	vector.SortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Info returns the collection model, dimensions and record count
func (s *Store) Info(ctx context.Context) (vector.CollectionInfo, error) {
	info := vector.CollectionInfo{Name: s.collection}
	err := s.db.QueryRowContext(ctx,
		`SELECT model, dimensions FROM collections WHERE name = ?`, s.collection).Scan(&info.Model, &info.Dimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, s.collection)
	}
	if err != nil {
		return info, fmt.Errorf("reading collection: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE collection = ?`, s.collection).Scan(&info.Count)
	if err != nil {
		return info, fmt.Errorf("counting records: %w", err)
	}
	return info, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
