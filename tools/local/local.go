package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mohammad-safakhou/converse/internal/helpers"
	"github.com/mohammad-safakhou/converse/tools"
	"github.com/mohammad-safakhou/converse/tools/web_fetch"
	"github.com/mohammad-safakhou/converse/tools/web_search"
)

// Invoker executes tool operations in-process, so the assistant works
// without a remote tool service. Operations keep the same names and
// argument shapes as the remote contract.
type Invoker struct {
	searcher web_search.WebSearcher
	fetcher  web_fetch.WebFetcher
	httpc    *httpClient
	logger   *log.Logger
}

func NewInvoker(searcher web_search.WebSearcher, fetcher web_fetch.WebFetcher, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.New(log.Writer(), "[TOOLS] ", log.LstdFlags)
	}
	return &Invoker{
		searcher: searcher,
		fetcher:  fetcher,
		httpc:    newHTTPClient(15*time.Second, 2, 300*time.Millisecond),
		logger:   logger,
	}
}

func (inv *Invoker) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	switch name {
	case tools.OpWebSearch, tools.CamelAlias(tools.OpWebSearch):
		return inv.webSearch(ctx, args)
	case tools.OpWebBrowse, tools.CamelAlias(tools.OpWebBrowse):
		return inv.webBrowse(ctx, args)
	case tools.OpGetWeather, tools.CamelAlias(tools.OpGetWeather):
		return inv.getWeather(ctx, args)
	case tools.OpGetTime, tools.CamelAlias(tools.OpGetTime):
		return inv.getTime(ctx, args)
	case tools.OpGetHolidays, tools.CamelAlias(tools.OpGetHolidays):
		return inv.getHolidays(ctx, args)
	case tools.OpFetchFeed, tools.CamelAlias(tools.OpFetchFeed):
		return inv.fetchFeed(ctx, args)
	case tools.OpCheckStatus, tools.CamelAlias(tools.OpCheckStatus):
		return inv.checkStatus(ctx, args)
	default:
		return "", fmt.Errorf("%w: %s", tools.ErrUnknownOperation, name)
	}
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	Recency    string `json:"recency,omitempty"`
}

// sourceJSON matches the boundary contract: a text block, the delimiter,
// then a JSON array of these objects.
type sourceJSON struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Domain      string `json:"domain"`
	Excerpt     string `json:"excerpt,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

func (inv *Invoker) webSearch(ctx context.Context, raw json.RawMessage) (string, error) {
	var args webSearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("web_search args: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("web_search: empty query")
	}
	k := args.MaxResults
	if k <= 0 || k > 20 {
		k = 10
	}
	results, err := inv.searcher.Discover(ctx, args.Query, k, args.Recency)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}

	var text strings.Builder
	sources := make([]sourceJSON, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&text, "%d. %s (%s)\n", i+1, r.Title, r.Domain)
		if r.Snippet != "" {
			fmt.Fprintf(&text, "   %s\n", r.Snippet)
		}
		src := sourceJSON{URL: r.URL, Title: r.Title, Domain: r.Domain, Excerpt: r.Snippet}
		if r.PublishedAt != nil {
			src.PublishedAt = r.PublishedAt.Format(time.RFC3339)
		}
		sources = append(sources, src)
	}
	arr, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	return text.String() + "\n" + tools.ResultsDelimiter + "\n" + string(arr), nil
}

type webBrowseArgs struct {
	URL string `json:"url"`
}

func (inv *Invoker) webBrowse(ctx context.Context, raw json.RawMessage) (string, error) {
	var args webBrowseArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("web_browse args: %w", err)
	}
	res, err := inv.fetcher.Fetch(ctx, args.URL)
	if err != nil {
		return "", fmt.Errorf("web_browse: %w", err)
	}
	res.Text = helpers.SanitizeText(res.Text)
	res.WordCount = len(strings.Fields(res.Text))
	b, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type weatherArgs struct {
	Location string `json:"location"`
}

var weatherCodes = map[int]string{
	0: "clear sky", 1: "mainly clear", 2: "partly cloudy", 3: "overcast",
	45: "fog", 48: "depositing rime fog",
	51: "light drizzle", 53: "drizzle", 55: "dense drizzle",
	61: "light rain", 63: "rain", 65: "heavy rain",
	71: "light snow", 73: "snow", 75: "heavy snow",
	80: "rain showers", 81: "rain showers", 82: "violent rain showers",
	95: "thunderstorm", 96: "thunderstorm with hail", 99: "thunderstorm with heavy hail",
}

// getWeather resolves the location through the open-meteo geocoder, then
// asks for current conditions — the geocode-then-forecast pair behind a
// single operation.
func (inv *Invoker) getWeather(ctx context.Context, raw json.RawMessage) (string, error) {
	var args weatherArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("get_weather args: %w", err)
	}
	loc := strings.TrimSpace(args.Location)
	if loc == "" {
		return "", fmt.Errorf("get_weather: empty location")
	}

	var geo struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	geoURL := "https://geocoding-api.open-meteo.com/v1/search?count=1&name=" + url.QueryEscape(loc)
	if err := inv.httpc.DoJSON(ctx, "GET", geoURL, nil, nil, &geo); err != nil {
		return "", fmt.Errorf("geocode: %w", err)
	}
	if len(geo.Results) == 0 {
		return "", fmt.Errorf("geocode: no match for %q", loc)
	}
	place := geo.Results[0]

	var forecast struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	fcURL := fmt.Sprintf("https://api.open-meteo.com/v1/forecast?latitude=%.4f&longitude=%.4f&current_weather=true",
		place.Latitude, place.Longitude)
	if err := inv.httpc.DoJSON(ctx, "GET", fcURL, nil, nil, &forecast); err != nil {
		return "", fmt.Errorf("forecast: %w", err)
	}

	desc := weatherCodes[forecast.CurrentWeather.WeatherCode]
	if desc == "" {
		desc = "unknown conditions"
	}
	out := map[string]any{
		"location":      place.Name,
		"country":       place.Country,
		"temperature_c": forecast.CurrentWeather.Temperature,
		"windspeed_kmh": forecast.CurrentWeather.WindSpeed,
		"conditions":    desc,
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

type timeArgs struct {
	Timezone string `json:"timezone"`
}

func (inv *Invoker) getTime(_ context.Context, raw json.RawMessage) (string, error) {
	var args timeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("get_time args: %w", err)
	}
	tz := strings.TrimSpace(args.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("get_time: unknown timezone %q", tz)
	}
	now := time.Now().In(loc)
	out := map[string]any{
		"timezone": tz,
		"datetime": now.Format(time.RFC3339),
		"readable": now.Format("Monday, 2 January 2006, 15:04"),
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

type holidaysArgs struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	Year    int    `json:"year,omitempty"`
}

func (inv *Invoker) getHolidays(ctx context.Context, raw json.RawMessage) (string, error) {
	var args holidaysArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("get_holidays args: %w", err)
	}
	cc := strings.ToUpper(strings.TrimSpace(args.Country))
	if len(cc) != 2 {
		return "", fmt.Errorf("get_holidays: invalid country code %q", args.Country)
	}
	year := args.Year
	if year == 0 {
		year = time.Now().Year()
	}

	var holidays []struct {
		Date      string   `json:"date"`
		LocalName string   `json:"localName"`
		Name      string   `json:"name"`
		Global    bool     `json:"global"`
		Counties  []string `json:"counties"`
	}
	hURL := fmt.Sprintf("https://date.nager.at/api/v3/PublicHolidays/%d/%s", year, cc)
	if err := inv.httpc.DoJSON(ctx, "GET", hURL, nil, nil, &holidays); err != nil {
		return "", fmt.Errorf("holidays: %w", err)
	}

	region := strings.ToUpper(strings.TrimSpace(args.Region))
	out := make([]map[string]any, 0, len(holidays))
	for _, h := range holidays {
		if region != "" && !h.Global {
			match := false
			for _, c := range h.Counties {
				if c == cc+"-"+region {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, map[string]any{"date": h.Date, "name": h.Name, "local_name": h.LocalName})
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}

type feedArgs struct {
	URL   string `json:"url"`
	Limit int    `json:"limit,omitempty"`
}

func (inv *Invoker) fetchFeed(ctx context.Context, raw json.RawMessage) (string, error) {
	var args feedArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("fetch_feed args: %w", err)
	}
	limit := args.Limit
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(args.URL, ctx)
	if err != nil {
		return "", fmt.Errorf("fetch_feed: %w", err)
	}

	type feedItem struct {
		Title     string `json:"title"`
		Link      string `json:"link"`
		Published string `json:"published,omitempty"`
	}
	items := make([]feedItem, 0, limit)
	for _, it := range feed.Items {
		if len(items) >= limit {
			break
		}
		fi := feedItem{Title: strings.TrimSpace(it.Title), Link: it.Link}
		if it.PublishedParsed != nil {
			fi.Published = it.PublishedParsed.Format(time.RFC3339)
		}
		items = append(items, fi)
	}
	b, _ := json.Marshal(map[string]any{"title": feed.Title, "items": items})
	return string(b), nil
}

type statusArgs struct {
	URL string `json:"url"`
}

func (inv *Invoker) checkStatus(ctx context.Context, raw json.RawMessage) (string, error) {
	var args statusArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("check_status args: %w", err)
	}
	target := strings.TrimSpace(args.URL)
	if target == "" {
		return "", fmt.Errorf("check_status: empty url")
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	t0 := time.Now()
	req, err := http.NewRequestWithContext(ctx, "HEAD", target, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	up := err == nil && resp.StatusCode < 500
	code := 0
	if resp != nil {
		code = resp.StatusCode
		resp.Body.Close()
	}
	out := map[string]any{
		"url":        target,
		"up":         up,
		"status":     code,
		"latency_ms": int(time.Since(t0) / time.Millisecond),
	}
	b, _ := json.Marshal(out)
	return string(b), nil
}
