// Package scraper downloads the NOAA PSL marine heatwave report and keeps
// one markdown file per forecast date, with a log of scrape attempts.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultURL is the report page
const DefaultURL = "https://psl.noaa.gov/marine-heatwaves/#report"

// Result describes one completed scrape
type Result struct {
	ForecastDate string
	Status       string
	Path         string
}

// Scraper runs fetch, extract, save and log for one page
type Scraper struct {
	fetcher Fetcher
	url     string
	archive Archive
	log     SyncLog
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a scraper for url
func New(fetcher Fetcher, url string, archive Archive, log SyncLog, logger zerolog.Logger) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	return &Scraper{
		fetcher: fetcher,
		url:     url,
		archive: archive,
		log:     log,
		logger:  logger.With().Str("component", "scraper").Logger(),
		now:     time.Now,
	}
}

// Run scrapes the page once. Fetch and extraction failures write nothing
// and add no log entry. A discussion already on disk is logged as
// already_exists and left untouched.
func (s *Scraper) Run(ctx context.Context) (Result, error) {
	s.logger.Info().Str("url", s.url).Msg("🌐 fetching report")
	page, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	d, err := Extract(bytes.NewReader(page), s.url, now)
	if err != nil {
		return Result{}, err
	}
	s.logger.Info().Str("forecast_date", d.ForecastDate).Str("period", d.ForecastPeriod).Msg("✓ found all required sections")

	saved, path, err := s.archive.Save(d)
	if err != nil {
		return Result{}, err
	}
	res := Result{ForecastDate: d.ForecastDate, Status: StatusAlreadyExists, Path: path}
	if saved {
		res.Status = StatusSuccess
	}

	entry := Entry{Timestamp: now, ForecastDate: d.ForecastDate, Status: res.Status, SourceURL: s.url}
	if err := s.log.Add(entry); err != nil {
		return res, fmt.Errorf("updating sync log: %w", err)
	}
	s.logger.Info().Str("status", res.Status).Str("path", path).Msg("📋 scrape recorded")
	return res, nil
}
