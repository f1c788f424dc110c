package utility

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/tools"
)

// Route runs the ordered matchers, first match wins. Every matcher is pure
// and errs toward precision: ambiguous input falls through to the general
// pipeline rather than risking a wrong deterministic answer.
func Route(text string) (models.UtilityResult, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.UtilityResult{}, false
	}
	matchers := []func(string) (models.UtilityResult, bool){
		matchWeather,
		matchTime,
		matchHolidays,
		matchFeed,
		matchStatus,
		matchLetterCount,
		matchFact,
	}
	for _, m := range matchers {
		if res, ok := m(trimmed); ok {
			return res, true
		}
	}
	return models.UtilityResult{}, false
}

var (
	weatherKeywordRe  = regexp.MustCompile(`(?i)\b(weather|forecast|how (?:hot|cold|warm) is it)\b`)
	weatherLocationRe = regexp.MustCompile(`(?i)\b(?:in|at|near|for)\s+([A-Za-z][A-Za-z\s,.'-]{1,48}?)(?:\s*\?|\s+(?:today|tomorrow|right now|now|this week)\b|$)`)
	climateGuardRe    = regexp.MustCompile(`(?i)\b(political|economic|business|investment|regulatory|social) (climate|weather)\b`)
)

// matchWeather requires an explicit location clause. Bare "weather" mentions
// are rejected so prose like "political climate" never routes here.
func matchWeather(text string) (models.UtilityResult, bool) {
	if climateGuardRe.MatchString(text) {
		return models.UtilityResult{}, false
	}
	if !weatherKeywordRe.MatchString(text) {
		return models.UtilityResult{}, false
	}
	m := weatherLocationRe.FindStringSubmatch(text)
	if m == nil {
		return models.UtilityResult{}, false
	}
	location := strings.TrimSpace(strings.Trim(m[1], " ?.,"))
	if location == "" {
		return models.UtilityResult{}, false
	}
	args, _ := json.Marshal(map[string]string{"location": location})
	return models.UtilityResult{
		Category:   "weather",
		Confidence: ConfidenceHigh,
		ToolName:   tools.OpGetWeather,
		ToolArgs:   args,
	}, true
}

var cityZones = map[string]string{
	"london": "Europe/London", "paris": "Europe/Paris", "berlin": "Europe/Berlin",
	"madrid": "Europe/Madrid", "rome": "Europe/Rome", "amsterdam": "Europe/Amsterdam",
	"moscow": "Europe/Moscow", "istanbul": "Europe/Istanbul",
	"new york": "America/New_York", "los angeles": "America/Los_Angeles",
	"chicago": "America/Chicago", "denver": "America/Denver", "toronto": "America/Toronto",
	"mexico city": "America/Mexico_City", "sao paulo": "America/Sao_Paulo",
	"tokyo": "Asia/Tokyo", "beijing": "Asia/Shanghai", "shanghai": "Asia/Shanghai",
	"hong kong": "Asia/Hong_Kong", "singapore": "Asia/Singapore", "seoul": "Asia/Seoul",
	"mumbai": "Asia/Kolkata", "delhi": "Asia/Kolkata", "dubai": "Asia/Dubai",
	"tehran": "Asia/Tehran", "sydney": "Australia/Sydney", "melbourne": "Australia/Melbourne",
	"auckland": "Pacific/Auckland", "cairo": "Africa/Cairo", "lagos": "Africa/Lagos",
	"johannesburg": "Africa/Johannesburg", "utc": "UTC",
}

var (
	timeAskRe  = regexp.MustCompile(`(?i)\b(?:what(?:'s| is) the time|what time is it|current time|local time|time now)\b`)
	timeianaRe = regexp.MustCompile(`\b([A-Z][A-Za-z_]+/[A-Z][A-Za-z_]+)\b`)
	timeLocRe  = regexp.MustCompile(`(?i)\bin\s+([A-Za-z][A-Za-z\s]{1,30}?)(?:\s*\?|$)`)
)

// matchTime resolves a time-zone question only when the place maps onto a
// known zone; unknown cities fall through rather than guessing.
func matchTime(text string) (models.UtilityResult, bool) {
	if !timeAskRe.MatchString(text) {
		return models.UtilityResult{}, false
	}
	zone := ""
	if m := timeianaRe.FindStringSubmatch(text); m != nil {
		zone = m[1]
	} else if m := timeLocRe.FindStringSubmatch(text); m != nil {
		zone = cityZones[strings.ToLower(strings.TrimSpace(m[1]))]
	}
	if zone == "" {
		return models.UtilityResult{}, false
	}
	args, _ := json.Marshal(map[string]string{"timezone": zone})
	return models.UtilityResult{
		Category:   "time",
		Confidence: ConfidenceHigh,
		ToolName:   tools.OpGetTime,
		ToolArgs:   args,
	}, true
}

var countryCodes = map[string]string{
	"united states": "US", "usa": "US", "us": "US", "america": "US",
	"united kingdom": "GB", "uk": "GB", "britain": "GB", "england": "GB",
	"germany": "DE", "france": "FR", "spain": "ES", "italy": "IT",
	"netherlands": "NL", "belgium": "BE", "austria": "AT", "switzerland": "CH",
	"canada": "CA", "mexico": "MX", "brazil": "BR", "argentina": "AR",
	"japan": "JP", "china": "CN", "india": "IN", "australia": "AU",
	"new zealand": "NZ", "ireland": "IE", "portugal": "PT", "sweden": "SE",
	"norway": "NO", "denmark": "DK", "finland": "FI", "poland": "PL",
	"turkey": "TR", "iran": "IR", "south africa": "ZA", "south korea": "KR",
}

// countryInText matches country names on word boundaries only, so short
// names like "us" never fire inside ordinary words.
func countryInText(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
	padded := " " + strings.Join(words, " ") + " "
	for name, cc := range countryCodes {
		if strings.Contains(padded, " "+name+" ") {
			return cc
		}
	}
	return ""
}

var (
	holidayKeywordRe = regexp.MustCompile(`(?i)\bholidays?\b`)
	regionTokenRe    = regexp.MustCompile(`\b([A-Z]{2})-([A-Z]{2,3})\b`)
	holidayNextRe    = regexp.MustCompile(`(?i)\b(next|upcoming|coming)\b`)
	holidayTodayRe   = regexp.MustCompile(`(?i)\b(today|is today)\b`)
)

func matchHolidays(text string) (models.UtilityResult, bool) {
	if !holidayKeywordRe.MatchString(text) {
		return models.UtilityResult{}, false
	}

	country, region := "", ""
	if m := regionTokenRe.FindStringSubmatch(text); m != nil {
		country, region = m[1], m[2]
	} else {
		country = countryInText(text)
	}
	if country == "" {
		return models.UtilityResult{}, false
	}

	category := "holiday_list"
	switch {
	case holidayTodayRe.MatchString(text):
		category = "holiday_today"
	case holidayNextRe.MatchString(text):
		category = "holiday_next"
	}
	args, _ := json.Marshal(map[string]string{"country": country, "region": region})
	return models.UtilityResult{
		Category:   category,
		Confidence: ConfidenceHigh,
		ToolName:   tools.OpGetHolidays,
		ToolArgs:   args,
	}, true
}

var (
	urlTokenRe    = regexp.MustCompile(`(?i)\b((?:https?://)?[a-z0-9][a-z0-9.-]*\.[a-z]{2,}(?:/[^\s]*)?)`)
	feedIntentRe  = regexp.MustCompile(`(?i)\b(rss|feed|atom|latest posts|subscribe)\b`)
	feedLookingRe = regexp.MustCompile(`(?i)(\.rss|\.xml|/feed/?$|/rss/?$|/atom/?$)`)
)

func matchFeed(text string) (models.UtilityResult, bool) {
	m := urlTokenRe.FindStringSubmatch(text)
	if m == nil {
		return models.UtilityResult{}, false
	}
	rawURL := strings.TrimRight(m[1], ".,?!")
	if !feedIntentRe.MatchString(text) && !feedLookingRe.MatchString(rawURL) {
		return models.UtilityResult{}, false
	}
	args, _ := json.Marshal(map[string]any{"url": rawURL, "limit": 5})
	return models.UtilityResult{
		Category:   "feed",
		Confidence: ConfidenceHigh,
		ToolName:   tools.OpFetchFeed,
		ToolArgs:   args,
	}, true
}

var statusIntentRe = regexp.MustCompile(`(?i)\b(is .+ (?:up|down|reachable|online|working)|(?:check|ping) .+)\b`)

func matchStatus(text string) (models.UtilityResult, bool) {
	m := urlTokenRe.FindStringSubmatch(text)
	if m == nil {
		return models.UtilityResult{}, false
	}
	if !statusIntentRe.MatchString(text) {
		return models.UtilityResult{}, false
	}
	rawURL := strings.TrimRight(m[1], ".,?!")
	args, _ := json.Marshal(map[string]string{"url": rawURL})
	return models.UtilityResult{
		Category:   "status",
		Confidence: ConfidenceHigh,
		ToolName:   tools.OpCheckStatus,
		ToolArgs:   args,
	}, true
}

var letterCountRe = regexp.MustCompile(`(?i)\bhow many (?:letter\s+)?["']?([a-z])["']?'?s?\s+(?:are\s+)?in\s+(?:the word\s+)?["']?([a-z]+)["']?\s*\??$`)

func matchLetterCount(text string) (models.UtilityResult, bool) {
	m := letterCountRe.FindStringSubmatch(text)
	if m == nil {
		return models.UtilityResult{}, false
	}
	letter := strings.ToLower(m[1])
	word := strings.ToLower(m[2])
	count := strings.Count(word, letter)
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return models.UtilityResult{
		Category:   "letter_count",
		Answer:     fmt.Sprintf("There are %d %q%s in %q.", count, letter, plural, word),
		Confidence: ConfidenceHigh,
	}, true
}

type evergreenFact struct {
	match  *regexp.Regexp
	guard  *regexp.Regexp
	answer string
}

var evergreenFacts = []evergreenFact{
	{
		match:  regexp.MustCompile(`(?i)\b(?:how far|distance).*\b(?:moon)\b|\bmoon\b.*\b(?:how far|distance)\b`),
		guard:  regexp.MustCompile(`(?i)\b(mars|jupiter|europa|titan|phobos|deimos)\b`),
		answer: "The average distance from Earth to the Moon is about 384,400 km (238,855 miles).",
	},
	{
		match:  regexp.MustCompile(`(?i)\b(?:speed of light|how fast is light)\b`),
		guard:  regexp.MustCompile(`(?i)\b(water|glass|medium|fiber|fibre)\b`),
		answer: "The speed of light in a vacuum is 299,792,458 m/s (about 300,000 km/s).",
	},
	{
		match:  regexp.MustCompile(`(?i)\bboiling point of water\b`),
		guard:  regexp.MustCompile(`(?i)\b(everest|altitude|mountain|pressure|mars)\b`),
		answer: "Water boils at 100°C (212°F) at standard atmospheric pressure.",
	},
	{
		match:  regexp.MustCompile(`(?i)\bfreezing point of water\b`),
		guard:  regexp.MustCompile(`(?i)\b(salt|sea ?water|brine|pressure)\b`),
		answer: "Water freezes at 0°C (32°F) at standard atmospheric pressure.",
	},
	{
		match:  regexp.MustCompile(`(?i)\bhow many days (?:are there )?in a year\b`),
		guard:  regexp.MustCompile(`(?i)\b(martian|mars|venus|jupiter|mercury|saturn|lunar|leap)\b`),
		answer: "A year has 365 days (366 in a leap year).",
	},
}

func matchFact(text string) (models.UtilityResult, bool) {
	for _, f := range evergreenFacts {
		if !f.match.MatchString(text) {
			continue
		}
		if f.guard != nil && f.guard.MatchString(text) {
			// A qualified variant; let the general pipeline handle it.
			continue
		}
		return models.UtilityResult{
			Category:   "fact",
			Answer:     f.answer,
			Confidence: ConfidenceHigh,
		}, true
	}
	return models.UtilityResult{}, false
}
