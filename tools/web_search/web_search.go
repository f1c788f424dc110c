package web_search

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/converse/tools/web_search/brave"
	"github.com/mohammad-safakhou/converse/tools/web_search/models"
	"github.com/mohammad-safakhou/converse/tools/web_search/serper"
)

// WebSearcher discovers up to k results for a query, optionally constrained
// to a recency window ("day", "week", "month", "" for any).
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, recency string) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported web search provider")

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
