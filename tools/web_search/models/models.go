package models

import "time"

// Result is one raw search hit from a provider.
type Result struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Domain      string     `json:"domain,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
