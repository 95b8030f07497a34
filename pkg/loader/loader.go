// Package loader reads the markdown discussions to be indexed.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andrew/mhw-rag/pkg/models"
)

// DefaultPattern matches the files loaded from the data directory
const DefaultPattern = "*.md"

// Load reads every file in dir matching pattern, in lexical order. Each file
// becomes one document whose source metadata is its path. A missing
// directory yields no documents.
func Load(dir, pattern string) ([]models.Document, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		docs = append(docs, models.Document{
			ID:          path,
			Content:     string(content),
			Source:      path,
			Metadata:    map[string]string{models.MetaSource: path},
			Created:     info.ModTime(),
			LastUpdated: info.ModTime(),
		})
	}
	return docs, nil
}
