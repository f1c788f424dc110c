package models

// Result is the extracted content of one fetched page.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Byline      string `json:"byline,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Text        string `json:"text"`
	WordCount   int    `json:"word_count"`
	Status      int    `json:"status"`
	FetchMS     int    `json:"fetch_ms"`
}
