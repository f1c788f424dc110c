package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mohammad-safakhou/converse/internal/helpers"
	"github.com/mohammad-safakhou/converse/tools/web_search/models"
)

type Search struct {
	ApiKey string
}

// freshness maps a recency window onto Brave's freshness parameter.
func freshness(recency string) string {
	switch recency {
	case "day":
		return "pd"
	case "week":
		return "pw"
	case "month":
		return "pm"
	default:
		return ""
	}
}

func (s Search) Discover(ctx context.Context, q string, k int, recency string) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", url.QueryEscape(q), k)
	if f := freshness(recency); f != "" {
		endpoint += "&freshness=" + f
	}
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search status %d", resp.StatusCode)
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
				Age     string `json:"page_age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		res := models.Result{
			Title:   r.Title,
			URL:     r.URL,
			Domain:  helpers.Domain(r.URL),
			Snippet: r.Snippet,
		}
		if r.Age != "" {
			if t, err := time.Parse("2006-01-02T15:04:05", r.Age); err == nil {
				res.PublishedAt = &t
			}
		}
		out = append(out, res)
	}
	return out, nil
}
