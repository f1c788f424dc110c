package search

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mohammad-safakhou/converse/internal/helpers"
	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/tools"
)

type wireSource struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Domain      string `json:"domain"`
	Excerpt     string `json:"excerpt"`
	PublishedAt string `json:"publishedAt"`
}

// ParseSearchResult splits a web-search operation result into its text block
// and the structured source list. Results missing the delimiter or carrying
// a malformed source array still return the text block; a nil source list
// means the caller degrades to text-only handling.
func ParseSearchResult(raw string) (string, []models.SourceItem) {
	text, payload, found := strings.Cut(raw, tools.ResultsDelimiter)
	text = strings.TrimSpace(text)
	if !found {
		return text, nil
	}

	var wire []wireSource
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &wire); err != nil {
		return text, nil
	}

	items := make([]models.SourceItem, 0, len(wire))
	for _, w := range wire {
		id, err := helpers.SourceID(w.URL)
		if err != nil {
			continue
		}
		item := models.SourceItem{
			ID:      id,
			URL:     w.URL,
			Title:   strings.TrimSpace(w.Title),
			Domain:  w.Domain,
			Snippet: strings.TrimSpace(w.Excerpt),
		}
		if item.Domain == "" {
			item.Domain = helpers.Domain(w.URL)
		}
		if w.PublishedAt != "" {
			if ts, err := parseTimestamp(w.PublishedAt); err == nil {
				item.PublishedAt = &ts
			}
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return text, nil
	}
	return text, items
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
