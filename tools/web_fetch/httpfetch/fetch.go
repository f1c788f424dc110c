package httpfetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/converse/tools/web_fetch/models"
)

const userAgent = "converse/1.0 (+https://github.com/mohammad-safakhou/converse)"

// Fetch retrieves pages with a plain HTTP GET and extracts article text via
// readability. Pages that need JavaScript rendering come back thin; the
// chromedp fetcher covers those when configured.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
}

func (f Fetch) Fetch(ctx context.Context, target string) (models.Result, error) {
	if strings.TrimSpace(target) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.Result{URL: target, Status: 599, FetchMS: int(time.Since(t0) / time.Millisecond)}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.Result{URL: target, Status: resp.StatusCode, FetchMS: int(time.Since(t0) / time.Millisecond)}, err
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), mustParseURL(target))
	if err != nil {
		return models.Result{URL: target, Status: resp.StatusCode, FetchMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	res := models.Result{
		URL:       target,
		Title:     strings.TrimSpace(article.Title),
		Byline:    strings.TrimSpace(article.Byline),
		Text:      text,
		WordCount: len(strings.Fields(text)),
		Status:    resp.StatusCode,
		FetchMS:   int(time.Since(t0) / time.Millisecond),
	}
	if article.PublishedTime != nil {
		res.PublishedAt = article.PublishedTime.Format(time.RFC3339)
	}
	return res, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
