package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Operation names the core invokes. These are the canonical snake_case
// forms; some tool services expose the same operations in lowerCamel.
const (
	OpWebSearch   = "web_search"
	OpWebBrowse   = "web_browse"
	OpGetWeather  = "get_weather"
	OpGetTime     = "get_time"
	OpGetHolidays = "get_holidays"
	OpFetchFeed   = "fetch_feed"
	OpCheckStatus = "check_status"
)

// ResultsDelimiter separates the human-readable block of a web_search result
// from the JSON array of sources that follows it.
const ResultsDelimiter = "---SOURCES---"

// ErrUnknownOperation is returned when the tool service does not recognise
// the requested operation name.
var ErrUnknownOperation = errors.New("unknown operation")

// Invoker executes a named operation with JSON arguments and returns a JSON
// or text result. Implementations may be remote services or in-process.
type Invoker interface {
	Call(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// CallWithAlias invokes name and, on an unknown-operation failure, retries
// once with the lowerCamel alias of the same operation. Tool services differ
// on casing at the boundary; a single alias attempt keeps that quirk out of
// the callers.
func CallWithAlias(ctx context.Context, inv Invoker, name string, args json.RawMessage) (string, error) {
	out, err := inv.Call(ctx, name, args)
	if err == nil || !errors.Is(err, ErrUnknownOperation) {
		return out, err
	}
	alias := CamelAlias(name)
	if alias == name {
		return "", err
	}
	return inv.Call(ctx, alias, args)
}

// CamelAlias converts a snake_case operation name to its lowerCamel form.
func CamelAlias(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return name
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
