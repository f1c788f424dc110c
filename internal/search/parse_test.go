package search

import (
	"testing"

	"github.com/mohammad-safakhou/converse/tools"
)

const sampleSearchResult = `1. Dow closes higher (example.com)
   Stocks rallied on Friday.

` + tools.ResultsDelimiter + `
[
  {"url":"https://Example.com/markets/dow/","title":"Dow closes higher","domain":"example.com","excerpt":"Stocks rallied on Friday.","publishedAt":"2025-08-29T14:00:00Z"},
  {"url":"https://other.org/a","title":"Markets wrap","excerpt":"A quiet session."},
  {"url":"","title":"no url, dropped"}
]`

func TestParseSearchResult(t *testing.T) {
	t.Parallel()

	text, items := ParseSearchResult(sampleSearchResult)
	if text == "" {
		t.Fatalf("text block lost")
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	first := items[0]
	if first.ID == "" || len(first.ID) != 12 {
		t.Fatalf("bad source id %q", first.ID)
	}
	if first.PublishedAt == nil {
		t.Fatalf("publishedAt not parsed")
	}
	if items[1].Domain != "other.org" {
		t.Fatalf("domain not derived from URL: %q", items[1].Domain)
	}
	if items[1].PublishedAt != nil {
		t.Fatalf("missing publishedAt should stay nil")
	}
}

func TestParseSearchResultStableIDs(t *testing.T) {
	t.Parallel()

	_, a := ParseSearchResult("x\n" + tools.ResultsDelimiter + `[{"url":"https://X.com/a/","title":"t"}]`)
	_, b := ParseSearchResult("x\n" + tools.ResultsDelimiter + `[{"url":"https://x.com/a","title":"t"}]`)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("parse failed: %d %d", len(a), len(b))
	}
	if a[0].ID != b[0].ID {
		t.Fatalf("ids differ for equivalent URLs: %q vs %q", a[0].ID, b[0].ID)
	}
}

func TestParseSearchResultDegradesGracefully(t *testing.T) {
	t.Parallel()

	// No delimiter: text only.
	text, items := ParseSearchResult("plain text answer with no sources")
	if text != "plain text answer with no sources" || items != nil {
		t.Fatalf("got %q / %v", text, items)
	}

	// Malformed payload: keep the text, drop the sources.
	text, items = ParseSearchResult("some text\n" + tools.ResultsDelimiter + "\nnot json at all")
	if text != "some text" || items != nil {
		t.Fatalf("got %q / %v", text, items)
	}
}
