package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	page  string
	calls int
}

func (f *staticFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	return []byte(f.page), nil
}

func newScraper(t *testing.T, f Fetcher) (*Scraper, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(f, "", Archive{Dir: dir}, SyncLog{Path: filepath.Join(dir, "sync_log.json")}, zerolog.Nop())
	clock := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s, dir
}

func TestRun_IsIdempotentPerForecastDate(t *testing.T) {
	s, dir := newScraper(t, &staticFetcher{page: loadFixture(t)})
	ctx := context.Background()

	first, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, filepath.Join(dir, "marine_heatwave_discussion_init_May_2025.md"), first.Path)
	written, err := os.ReadFile(first.Path)
	require.NoError(t, err)

	second, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyExists, second.Status)

	again, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, written, again)

	files, err := s.archive.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)

	entries := s.log.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, StatusAlreadyExists, entries[0].Status)
	assert.Equal(t, StatusSuccess, entries[1].Status)
	assert.Equal(t, "May_2025", entries[0].ForecastDate)
	assert.Equal(t, DefaultURL, entries[0].SourceURL)
}

func TestRun_SyncLogCappedNewestFirst(t *testing.T) {
	s, _ := newScraper(t, &staticFetcher{page: loadFixture(t)})

	for i := 0; i < 60; i++ {
		_, err := s.Run(context.Background())
		require.NoError(t, err)
	}

	entries := s.log.Load()
	require.Len(t, entries, DefaultLogCap)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Timestamp.After(entries[i].Timestamp), "entry %d", i)
	}
	assert.Len(t, s.log.Recent(10), 10)
}

func TestRun_MissingSectionsWritesNothing(t *testing.T) {
	s, dir := newScraper(t, &staticFetcher{page: "<html><body><h3>Something else</h3></body></html>"})

	_, err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrSectionsMissing)
	files, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Empty(t, files)
	assert.Empty(t, s.log.Load())
}

func TestRun_OverHTTP(t *testing.T) {
	page := loadFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := New(NewHTTPFetcher(5*time.Second, ""), srv.URL+"/marine-heatwaves/#report",
		Archive{Dir: dir}, SyncLog{Path: filepath.Join(dir, "sync_log.json")}, zerolog.Nop())

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestHTTPFetcher_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(time.Second, "").Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "503")
}
