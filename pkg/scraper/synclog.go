package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sync log statuses
const (
	StatusSuccess       = "success"
	StatusAlreadyExists = "already_exists"
)

// DefaultLogCap is the number of entries kept in the sync log
const DefaultLogCap = 50

// Entry records one scrape attempt
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	ForecastDate string    `json:"forecast_date"`
	Status       string    `json:"status"`
	SourceURL    string    `json:"source_url"`
}

// timestampLayouts are tried in order when reading a log. Zone-less
// timestamps, as written by earlier scrapers, are read as local time.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

// UnmarshalJSON reads an entry, accepting timestamps with or without a zone
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var raw struct {
		plain
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry(raw.plain)
	if raw.Timestamp == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw.Timestamp, time.Local); err == nil {
			e.Timestamp = t
			return nil
		}
	}
	return fmt.Errorf("parsing sync log timestamp %q", raw.Timestamp)
}

// SyncLog is a JSON array of entries, newest first, capped in length
type SyncLog struct {
	Path string
	Cap  int
}

// Load returns the logged entries. A missing or unreadable log is empty.
func (l SyncLog) Load() []Entry {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// Add prepends an entry and drops the oldest beyond the cap
func (l SyncLog) Add(e Entry) error {
	limit := l.Cap
	if limit <= 0 {
		limit = DefaultLogCap
	}
	entries := append([]Entry{e}, l.Load()...)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("creating sync log directory: %w", err)
	}
	tmp := l.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing sync log: %w", err)
	}
	if err := os.Rename(tmp, l.Path); err != nil {
		return fmt.Errorf("replacing sync log: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (l SyncLog) Recent(n int) []Entry {
	entries := l.Load()
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
