package search

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/provider"
)

// chatFunc adapts a function to the chat contract for tests.
type chatFunc func(ctx context.Context, messages []provider.Message, opts provider.Options) (provider.Result, error)

func (f chatFunc) Chat(ctx context.Context, messages []provider.Message, opts provider.Options) (provider.Result, error) {
	return f(ctx, messages, opts)
}

func chatReturning(content string) chatFunc {
	return func(context.Context, []provider.Message, provider.Options) (provider.Result, error) {
		return provider.Result{Content: content}, nil
	}
}

func chatFailing(err error) chatFunc {
	return func(context.Context, []provider.Message, provider.Options) (provider.Result, error) {
		return provider.Result{}, err
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestBuildAcceptsValidatedQuery(t *testing.T) {
	t.Parallel()

	qb := NewQueryBuilder(chatReturning(`{"query":"eiffel tower how tall","recency":"any"}`), 0, quietLogger())
	bq := qb.Build(context.Background(), "how tall is the Eiffel Tower?", models.ModeWebFactFind, nil, nil)
	if bq.UsedFallback {
		t.Fatalf("valid query rejected: %+v", bq)
	}
	if bq.Query != "eiffel tower how tall" {
		t.Fatalf("query = %q", bq.Query)
	}
}

func TestBuildRejectsDriftedQuery(t *testing.T) {
	t.Parallel()

	// Two tokens the user never said and no entity explains.
	qb := NewQueryBuilder(chatReturning(`{"query":"quantum blockchain eiffel tower","recency":"any"}`), 0, quietLogger())
	bq := qb.Build(context.Background(), "how tall is the Eiffel Tower?", models.ModeWebFactFind, nil, nil)
	if !bq.UsedFallback {
		t.Fatalf("drifted query accepted: %+v", bq)
	}
	if strings.Contains(bq.Query, "quantum") || strings.Contains(bq.Query, "blockchain") {
		t.Fatalf("fallback leaked model tokens: %q", bq.Query)
	}
}

func TestBuildToleratesOneStrayToken(t *testing.T) {
	t.Parallel()

	// "height" never appears in the user text; a single stray is allowed.
	qb := NewQueryBuilder(chatReturning(`{"query":"eiffel tower height","recency":"any"}`), 0, quietLogger())
	bq := qb.Build(context.Background(), "how tall is the Eiffel Tower?", models.ModeWebFactFind, nil, nil)
	if bq.UsedFallback {
		t.Fatalf("single stray token should be tolerated: %+v", bq)
	}
}

func TestBuildEntityTokensExplainQuery(t *testing.T) {
	t.Parallel()

	entity := &models.ResolvedEntity{Name: "Marie Curie", Type: models.EntityPerson, Hint: "physicist"}
	qb := NewQueryBuilder(chatReturning(`{"query":"marie curie physicist discoveries","recency":"any"}`), 0, quietLogger())
	bq := qb.Build(context.Background(), "what did she discover? tell me about her discoveries", models.ModeWebFactFind, entity, nil)
	if bq.UsedFallback {
		t.Fatalf("entity-explained query rejected: %+v", bq)
	}
}

func TestBuildFallbackOnModelFailure(t *testing.T) {
	t.Parallel()

	qb := NewQueryBuilder(chatFailing(fmt.Errorf("boom")), 0, quietLogger())
	bq := qb.Build(context.Background(), "tell me about the Suez Canal expansion", models.ModeWebFactFind, nil, nil)
	if !bq.UsedFallback {
		t.Fatalf("expected fallback")
	}
	if !strings.Contains(bq.Query, "Suez Canal") {
		t.Fatalf("fallback lost the topic: %q", bq.Query)
	}
}

func TestFallbackQueryChain(t *testing.T) {
	t.Parallel()

	entity := &models.ResolvedEntity{Name: "Ada Lovelace", Hint: "mathematician"}
	if got := FallbackQuery("whatever", entity, nil); got != "Ada Lovelace mathematician" {
		t.Fatalf("entity fallback = %q", got)
	}

	if got := FallbackQuery("can you tell me about the history of tea please?", nil, nil); got != "history of tea" {
		t.Fatalf("topic fallback = %q", got)
	}

	sess := &session.SearchSession{LastQuery: "previous query"}
	if got := FallbackQuery("???", nil, sess); got != "previous query" {
		t.Fatalf("session fallback = %q", got)
	}

	long := strings.Repeat("word ", 30)
	if got := FallbackQuery(long, nil, nil); len(got) > 60 {
		t.Fatalf("truncation failed: %d chars", len(got))
	}
}

func TestResolveRecencyPrefersUserMarkers(t *testing.T) {
	t.Parallel()

	// The model said "month", the user said "today": the user wins.
	qb := NewQueryBuilder(chatReturning(`{"query":"election results today","recency":"month"}`), 0, quietLogger())
	bq := qb.Build(context.Background(), "election results today", models.ModeWebFactFind, nil, nil)
	if bq.Recency != models.RecencyDay {
		t.Fatalf("recency = %s, want day", bq.Recency)
	}
}

func TestCanonicalizeNewsChatter(t *testing.T) {
	t.Parallel()

	qb := NewQueryBuilder(chatReturning(`{"query":"latest news today","recency":"day"}`), 0, quietLogger())
	bq := qb.Build(context.Background(), "whats the latest news today", models.ModeNewsAggregate, nil, nil)
	if bq.Query != "top headlines" {
		t.Fatalf("query = %q, want top headlines", bq.Query)
	}

	// A query with real subject matter is left alone.
	qb = NewQueryBuilder(chatReturning(`{"query":"latest news wildfire evacuation","recency":"day"}`), 0, quietLogger())
	bq = qb.Build(context.Background(), "latest news on the wildfire evacuation", models.ModeNewsAggregate, nil, nil)
	if bq.Query == "top headlines" {
		t.Fatalf("substantive query canonicalized away")
	}
}

func TestMarketQuoteIntent(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"what is the Dow Jones at today",
		"how is the nasdaq doing",
		"tesla stock price",
		"bitcoin price right now",
	} {
		if !MarketQuoteIntent(input) {
			t.Fatalf("%q should read as a market quote request", input)
		}
	}
	for _, input := range []string{
		"history of the stock market crash of 1929",
		"what is the Dow Jones index",
	} {
		if MarketQuoteIntent(input) {
			t.Fatalf("%q should not read as a quote request", input)
		}
	}
}

func TestTopicPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"can you tell me about the history of tea please?", "history of tea"},
		{"what is photosynthesis", "photosynthesis"},
		{"search for cheap flights to Lisbon", "cheap flights to Lisbon"},
		{"look up the capital of Mongolia, thanks", "capital of Mongolia"},
	}
	for _, tc := range tests {
		if got := TopicPhrase(tc.in); got != tc.want {
			t.Fatalf("TopicPhrase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
