package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLog_CorruptFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_log.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	l := SyncLog{Path: path}

	assert.Empty(t, l.Load())
	require.NoError(t, l.Add(Entry{Timestamp: time.Now(), ForecastDate: "May_2025", Status: StatusSuccess}))
	assert.Len(t, l.Load(), 1)
}

func TestSyncLog_KeepsZonelessHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_log.json")
	legacy := `[
  {
    "timestamp": "2025-08-01T12:34:56.789012",
    "forecast_date": "Jul_2025",
    "status": "success",
    "source_url": "https://psl.noaa.gov/marine-heatwaves/#report"
  },
  {
    "timestamp": "2025-07-01T08:00:00",
    "forecast_date": "Jun_2025",
    "status": "already_exists",
    "source_url": "https://psl.noaa.gov/marine-heatwaves/#report"
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))
	l := SyncLog{Path: path}

	entries := l.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, time.Date(2025, 8, 1, 12, 34, 56, 789012000, time.Local), entries[0].Timestamp)
	assert.Equal(t, "Jun_2025", entries[1].ForecastDate)
	assert.Equal(t, StatusAlreadyExists, entries[1].Status)

	now := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, l.Add(Entry{Timestamp: now, ForecastDate: "Aug_2025", Status: StatusSuccess}))

	entries = l.Load()
	require.Len(t, entries, 3)
	assert.Equal(t, "Aug_2025", entries[0].ForecastDate)
	assert.True(t, now.Equal(entries[0].Timestamp))
	assert.Equal(t, "Jul_2025", entries[1].ForecastDate)
	assert.True(t, time.Date(2025, 8, 1, 12, 34, 56, 789012000, time.Local).Equal(entries[1].Timestamp))
	assert.Equal(t, "Jun_2025", entries[2].ForecastDate)
}

func TestEntry_UnmarshalJSONTimestamps(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `{"timestamp":"2025-08-01T12:34:56Z"}`, time.Date(2025, 8, 1, 12, 34, 56, 0, time.UTC)},
		{"offset", `{"timestamp":"2025-08-01T12:34:56.5+02:00"}`, time.Date(2025, 8, 1, 10, 34, 56, 500000000, time.UTC)},
		{"zoneless", `{"timestamp":"2025-08-01T12:34:56"}`, time.Date(2025, 8, 1, 12, 34, 56, 0, time.Local)},
		{"missing", `{"forecast_date":"May_2025"}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Entry
			require.NoError(t, json.Unmarshal([]byte(tt.in), &e))
			assert.True(t, tt.want.Equal(e.Timestamp), "got %s", e.Timestamp)
		})
	}

	var e Entry
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &e))
}

func TestSyncLog_CustomCap(t *testing.T) {
	l := SyncLog{Path: filepath.Join(t.TempDir(), "nested", "sync_log.json"), Cap: 3}
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Add(Entry{ForecastDate: string(rune('a' + i))}))
	}

	entries := l.Load()
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].ForecastDate)
	assert.Equal(t, "c", entries[2].ForecastDate)
	assert.Len(t, l.Recent(2), 2)
}

func TestSyncLog_JSONFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync_log.json")
	l := SyncLog{Path: path}
	require.NoError(t, l.Add(Entry{ForecastDate: "May_2025", Status: StatusSuccess, SourceURL: DefaultURL}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{`"timestamp"`, `"forecast_date"`, `"status"`, `"source_url"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestArchive_ListSortedWithSizes(t *testing.T) {
	dir := t.TempDir()
	a := Archive{Dir: dir}
	_, _, err := a.Save(Discussion{ForecastDate: "May_2025", Body: "b"})
	require.NoError(t, err)
	_, _, err = a.Save(Discussion{ForecastDate: "April_2025", Body: "a"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644))

	files, err := a.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "marine_heatwave_discussion_init_April_2025.md", files[0].Name)
	assert.Positive(t, files[0].Size)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "marine_heatwave_discussion_init_May_2025.md", FileName("May_2025"))
	assert.Equal(t, "marine_heatwave_discussion_init_unknown_date.md", FileName(""))
}
