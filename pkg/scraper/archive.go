package scraper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePrefix starts the name of every saved discussion
const FilePrefix = "marine_heatwave_discussion_"

// FileName returns the file name used for a forecast date
func FileName(forecastDate string) string {
	if forecastDate == "" {
		forecastDate = UnknownDate
	}
	return FilePrefix + "init_" + forecastDate + ".md"
}

// FileInfo describes a saved discussion
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Archive is the directory of saved discussions, one file per forecast date
type Archive struct {
	Dir string
}

// Save writes the discussion unless a file for its forecast date exists.
// It reports whether a file was written and the file path.
func (a Archive) Save(d Discussion) (bool, string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return false, "", fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(a.Dir, FileName(d.ForecastDate))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, path, nil
	}
	if err != nil {
		return false, path, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteString(d.Markdown()); err != nil {
		f.Close()
		os.Remove(path)
		return false, path, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return false, path, fmt.Errorf("closing %s: %w", path, err)
	}
	return true, path, nil
}

// List returns the saved discussions sorted by name
func (a Archive) List() ([]FileInfo, error) {
	paths, err := filepath.Glob(filepath.Join(a.Dir, FilePrefix+"*.md"))
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, FileInfo{Name: filepath.Base(p), Path: p, Size: st.Size()})
	}
	return files, nil
}
