package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/converse/internal/helpers"
	"github.com/mohammad-safakhou/converse/tools/web_search/models"
)

type Search struct {
	ApiKey string
}

// tbs maps a recency window onto Google's time-based search parameter.
func tbs(recency string) string {
	switch recency {
	case "day":
		return "qdr:d"
	case "week":
		return "qdr:w"
	case "month":
		return "qdr:m"
	default:
		return ""
	}
}

func (s Search) Discover(ctx context.Context, q string, k int, recency string) ([]models.Result, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	if t := tbs(recency); t != "" {
		payload["tbs"] = t
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper search status %d", resp.StatusCode)
	}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Date    string `json:"date"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []models.Result
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		res := models.Result{
			Title:   r.Title,
			URL:     r.Link,
			Domain:  helpers.Domain(r.Link),
			Snippet: r.Snippet,
		}
		if r.Date != "" {
			if t := parseRelativeDate(r.Date, time.Now()); t != nil {
				res.PublishedAt = t
			}
		}
		out = append(out, res)
	}
	return out, nil
}

// parseRelativeDate handles serper's "2 hours ago" / "3 days ago" style
// dates alongside absolute "Jan 2, 2006" forms.
func parseRelativeDate(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil
	}
	if strings.HasSuffix(s, "ago") {
		fields := strings.Fields(s)
		if len(fields) >= 3 {
			var n int
			if _, err := fmt.Sscanf(fields[0], "%d", &n); err == nil && n > 0 {
				var d time.Duration
				switch {
				case strings.HasPrefix(fields[1], "minute"):
					d = time.Duration(n) * time.Minute
				case strings.HasPrefix(fields[1], "hour"):
					d = time.Duration(n) * time.Hour
				case strings.HasPrefix(fields[1], "day"):
					d = time.Duration(n) * 24 * time.Hour
				case strings.HasPrefix(fields[1], "week"):
					d = time.Duration(n) * 7 * 24 * time.Hour
				case strings.HasPrefix(fields[1], "month"):
					d = time.Duration(n) * 30 * 24 * time.Hour
				default:
					return nil
				}
				t := now.Add(-d)
				return &t
			}
		}
		return nil
	}
	for _, layout := range []string{"jan 2, 2006", "2 jan 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
