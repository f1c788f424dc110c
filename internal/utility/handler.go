package utility

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/tools"
)

// Handler executes tool-backed utility intents. A failed tool call is never
// surfaced as an error to the caller: the handler reports no-answer and the
// turn falls through to the general pipeline.
type Handler struct {
	invoker tools.Invoker
	logger  *log.Logger
	now     func() time.Time
}

func NewHandler(invoker tools.Invoker, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(log.Writer(), "[UTIL] ", log.LstdFlags)
	}
	return &Handler{invoker: invoker, logger: logger, now: time.Now}
}

// Execute turns a routed intent into a user-facing answer. ok is false when
// the intent had no inline answer and the tool call failed or returned
// something unusable.
func (h *Handler) Execute(ctx context.Context, res models.UtilityResult) (string, bool) {
	if res.Answer != "" {
		return res.Answer, true
	}
	if res.ToolName == "" {
		return "", false
	}

	raw, err := tools.CallWithAlias(ctx, h.invoker, res.ToolName, res.ToolArgs)
	if err != nil {
		h.logger.Printf("%s failed, degrading to general pipeline: %v", res.ToolName, err)
		return "", false
	}

	answer, err := h.format(res.Category, raw)
	if err != nil {
		h.logger.Printf("unusable %s result: %v", res.ToolName, err)
		return "", false
	}
	return answer, true
}

func (h *Handler) format(category, raw string) (string, error) {
	switch category {
	case "weather":
		return formatWeather(raw)
	case "time":
		return formatTime(raw)
	case "holiday_today", "holiday_next", "holiday_list":
		return formatHolidays(category, raw, h.now())
	case "feed":
		return formatFeed(raw)
	case "status":
		return formatStatus(raw)
	default:
		return "", fmt.Errorf("no formatter for category %q", category)
	}
}

func formatWeather(raw string) (string, error) {
	var w struct {
		Location     string  `json:"location"`
		Country      string  `json:"country"`
		TemperatureC float64 `json:"temperature_c"`
		WindspeedKMH float64 `json:"windspeed_kmh"`
		Conditions   string  `json:"conditions"`
	}
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return "", err
	}
	if w.Location == "" {
		return "", fmt.Errorf("weather result missing location")
	}
	place := w.Location
	if w.Country != "" {
		place += ", " + w.Country
	}
	return fmt.Sprintf("Currently in %s: %s, %.1f°C with wind at %.0f km/h.",
		place, w.Conditions, w.TemperatureC, w.WindspeedKMH), nil
}

func formatTime(raw string) (string, error) {
	var t struct {
		Timezone string `json:"timezone"`
		Readable string `json:"readable"`
	}
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return "", err
	}
	if t.Readable == "" {
		return "", fmt.Errorf("time result missing readable form")
	}
	return fmt.Sprintf("It is %s in %s.", t.Readable, t.Timezone), nil
}

type holidayEntry struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	LocalName string `json:"local_name"`
}

func formatHolidays(category, raw string, now time.Time) (string, error) {
	var entries []holidayEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return "", err
	}
	today := now.Format("2006-01-02")

	switch category {
	case "holiday_today":
		for _, e := range entries {
			if e.Date == today {
				return fmt.Sprintf("Yes, today is %s.", holidayName(e)), nil
			}
		}
		return "No, today is not a public holiday.", nil
	case "holiday_next":
		for _, e := range entries {
			if e.Date > today {
				return fmt.Sprintf("The next public holiday is %s on %s.", holidayName(e), e.Date), nil
			}
		}
		return "There are no more public holidays this year.", nil
	default:
		if len(entries) == 0 {
			return "No public holidays found.", nil
		}
		var b strings.Builder
		b.WriteString("Public holidays:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s: %s\n", e.Date, holidayName(e))
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

func holidayName(e holidayEntry) string {
	if e.LocalName != "" && !strings.EqualFold(e.LocalName, e.Name) {
		return fmt.Sprintf("%s (%s)", e.Name, e.LocalName)
	}
	return e.Name
}

func formatFeed(raw string) (string, error) {
	var f struct {
		Title string `json:"title"`
		Items []struct {
			Title     string `json:"title"`
			Link      string `json:"link"`
			Published string `json:"published"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return "", err
	}
	if len(f.Items) == 0 {
		return "", fmt.Errorf("feed has no items")
	}
	var b strings.Builder
	if f.Title != "" {
		fmt.Fprintf(&b, "Latest from %s:\n", f.Title)
	} else {
		b.WriteString("Latest feed items:\n")
	}
	for _, it := range f.Items {
		fmt.Fprintf(&b, "- %s (%s)\n", it.Title, it.Link)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatStatus(raw string) (string, error) {
	var s struct {
		URL       string `json:"url"`
		Up        bool   `json:"up"`
		Status    int    `json:"status"`
		LatencyMS int    `json:"latency_ms"`
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", err
	}
	if s.URL == "" {
		return "", fmt.Errorf("status result missing url")
	}
	if s.Up {
		return fmt.Sprintf("%s is up (HTTP %d, %d ms).", s.URL, s.Status, s.LatencyMS), nil
	}
	return fmt.Sprintf("%s looks down from here.", s.URL), nil
}
