package scraper

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"
)

// ErrSectionsMissing is returned when the page lacks the report headings
var ErrSectionsMissing = errors.New("required discussion sections not found")

// UnknownDate names discussions whose forecast date cannot be read
const UnknownDate = "unknown_date"

// Title heads every saved discussion
const Title = "Marine Heatwave Forecast Discussion"

var (
	discussionHeading = regexp.MustCompile(`(?i)Global Marine Heatwave Forecast Discussion`)
	monthYear         = regexp.MustCompile(`(\w+ \d{4})`)
)

// Discussion is one extracted forecast discussion
type Discussion struct {
	ForecastDate   string
	ForecastPeriod string
	SourceURL      string
	Extracted      time.Time
	// Body is the discussion converted to markdown
	Body string
}

// Extract finds the forecast headings and the discussion section of the
// report page and converts them to markdown. The discussion runs from its
// heading up to the first basin panel.
func Extract(r io.Reader, sourceURL string, now time.Time) (Discussion, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Discussion{}, fmt.Errorf("parsing page: %w", err)
	}

	var initial, period *html.Node
	for _, h5 := range dom.GetElementsByTagName(doc, "h5") {
		lower := strings.ToLower(dom.TextContent(h5))
		switch {
		case strings.Contains(lower, "forecast initial time"):
			initial = h5
		case strings.Contains(lower, "forecast period"):
			period = h5
		}
	}

	var heading *html.Node
	for _, h3 := range dom.GetElementsByTagName(doc, "h3") {
		if discussionHeading.MatchString(dom.TextContent(h3)) {
			heading = h3
			break
		}
	}

	var missing []string
	if initial == nil {
		missing = append(missing, "forecast initial time")
	}
	if period == nil {
		missing = append(missing, "forecast period")
	}
	if heading == nil {
		missing = append(missing, "discussion heading")
	}
	if len(missing) > 0 {
		return Discussion{}, fmt.Errorf("%w: %s", ErrSectionsMissing, strings.Join(missing, ", "))
	}

	var parts []string
	initialText := text(initial)
	if initialText != "" {
		parts = append(parts, "##### "+initialText+"\n\n")
	}
	periodText := text(period)
	if periodText != "" {
		parts = append(parts, "##### "+periodText+"\n\n")
	}

	for n := heading; n != nil; n = dom.NextElementSibling(n) {
		if dom.TagName(n) == "div" && hasClass(n, "basinDiv") {
			break
		}
		if md := toMarkdown(n); strings.TrimSpace(md) != "" {
			parts = append(parts, md)
		}
	}

	return Discussion{
		ForecastDate:   forecastDate(initial, initialText),
		ForecastPeriod: forecastPeriod(period, periodText),
		SourceURL:      sourceURL,
		Extracted:      now,
		Body:           strings.TrimSpace(strings.Join(parts, "")),
	}, nil
}

func forecastDate(h5 *html.Node, full string) string {
	if strong := dom.GetElementsByTagName(h5, "strong"); len(strong) > 0 {
		return strings.ReplaceAll(text(strong[0]), " ", "_")
	}
	if m := monthYear.FindStringSubmatch(full); m != nil {
		return strings.ReplaceAll(m[1], " ", "_")
	}
	return UnknownDate
}

func forecastPeriod(h5 *html.Node, full string) string {
	if strong := dom.GetElementsByTagName(h5, "strong"); len(strong) > 0 {
		return strings.ReplaceAll(text(strong[0]), " ", "_")
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(full, "Forecast period", "")), "_")
}

// toMarkdown converts one block element
func toMarkdown(n *html.Node) string {
	t := text(n)
	switch dom.TagName(n) {
	case "h3":
		return "### " + t + "\n\n"
	case "h4":
		return "#### " + t + "\n\n"
	case "h5":
		return "##### " + t + "\n\n"
	case "li":
		if t == "" {
			return ""
		}
		return "- " + t + "\n"
	case "ul", "ol":
		var items []string
		for _, li := range dom.Children(n) {
			if dom.TagName(li) != "li" {
				continue
			}
			if it := text(li); it != "" {
				items = append(items, "- "+it)
			}
		}
		if len(items) == 0 {
			return ""
		}
		return strings.Join(items, "\n") + "\n\n"
	}
	if t == "" {
		return ""
	}
	return t + "\n\n"
}

func text(n *html.Node) string {
	return strings.TrimSpace(dom.TextContent(n))
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(dom.ClassName(n)) {
		if c == class {
			return true
		}
	}
	return false
}

// Markdown renders the file written for the discussion
func (d Discussion) Markdown() string {
	ts := d.Extracted.Format(time.RFC3339)
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: " + Title + "\n")
	b.WriteString("source: " + d.SourceURL + "\n")
	b.WriteString("extracted: " + ts + "\n")
	b.WriteString("---\n\n")
	b.WriteString("# " + Title + "\n\n")
	b.WriteString("**Source:** [" + d.SourceURL + "](" + d.SourceURL + ")  \n")
	b.WriteString("**Extracted:** " + ts + "\n\n")
	b.WriteString("---\n\n")
	b.WriteString(d.Body + "\n")
	return b.String()
}
