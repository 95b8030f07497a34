package scraper

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extractedAt = time.Date(2025, 5, 20, 8, 30, 0, 0, time.UTC)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/report.html")
	require.NoError(t, err)
	return string(data)
}

func TestExtract_Report(t *testing.T) {
	d, err := Extract(strings.NewReader(loadFixture(t)), DefaultURL, extractedAt)
	require.NoError(t, err)

	assert.Equal(t, "May_2025", d.ForecastDate)
	assert.Equal(t, "Jun_2025_-_Nov_2025", d.ForecastPeriod)
	assert.Equal(t, DefaultURL, d.SourceURL)

	want := "##### Forecast initial time: May 2025\n\n" +
		"##### Forecast period: Jun 2025 - Nov 2025\n\n" +
		"### Global Marine Heatwave Forecast Discussion\n\n" +
		"Forecasts predict that global MHW coverage will remain at ~25-30% through the forecast period.\n\n" +
		"#### North Pacific\n\n" +
		"Marine heatwave conditions are expected to persist in the northeast Pacific.\n\n" +
		"- High confidence along the coast\n- Lower confidence offshore\n\n" +
		"##### ENSO\n\n" +
		"- Neutral conditions favoured"
	assert.Equal(t, want, d.Body)
	assert.NotContains(t, d.Body, "Basin panels")
	assert.NotContains(t, d.Body, "Footer")
}

func TestExtract_DateFallbacks(t *testing.T) {
	page := `<h5>Forecast initial time: March 2024</h5>
<h5>Forecast period  Apr 2024 to Sep 2024</h5>
<h3>global marine heatwave forecast discussion</h3><p>Body.</p>`

	d, err := Extract(strings.NewReader(page), DefaultURL, extractedAt)
	require.NoError(t, err)
	assert.Equal(t, "March_2024", d.ForecastDate)
	assert.Equal(t, "Apr_2024_to_Sep_2024", d.ForecastPeriod)

	page = `<h5>Forecast initial time: soon</h5><h5>Forecast period</h5>
<h3>Global Marine Heatwave Forecast Discussion</h3>`
	d, err = Extract(strings.NewReader(page), DefaultURL, extractedAt)
	require.NoError(t, err)
	assert.Equal(t, UnknownDate, d.ForecastDate)
}

func TestExtract_MissingSections(t *testing.T) {
	page := `<h5>Forecast initial time: <strong>May 2025</strong></h5><p>No discussion today.</p>`

	_, err := Extract(strings.NewReader(page), DefaultURL, extractedAt)

	assert.ErrorIs(t, err, ErrSectionsMissing)
	assert.ErrorContains(t, err, "forecast period")
	assert.ErrorContains(t, err, "discussion heading")
}

func TestDiscussion_Markdown(t *testing.T) {
	d := Discussion{ForecastDate: "May_2025", SourceURL: "https://example.test/r", Extracted: extractedAt, Body: "BODY"}

	want := "---\n" +
		"title: Marine Heatwave Forecast Discussion\n" +
		"source: https://example.test/r\n" +
		"extracted: 2025-05-20T08:30:00Z\n" +
		"---\n\n" +
		"# Marine Heatwave Forecast Discussion\n\n" +
		"**Source:** [https://example.test/r](https://example.test/r)  \n" +
		"**Extracted:** 2025-05-20T08:30:00Z\n\n" +
		"---\n\n" +
		"BODY\n"
	assert.Equal(t, want, d.Markdown())
}
