package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/converse/internal/audit"
	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/internal/session/inmemory"
	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
)

// dispatchChat answers by which system prompt it was handed, so one stub can
// serve extraction, query construction, and summarization in a single turn.
type dispatchChat struct {
	entityJSON  string
	queryJSON   string
	summary     string
	summaryErr  error
	lastSummary []provider.Message
	calls       []string
}

func (d *dispatchChat) Chat(_ context.Context, messages []provider.Message, _ provider.Options) (provider.Result, error) {
	system := ""
	if len(messages) > 0 {
		system = messages[0].Content
	}
	switch {
	case strings.Contains(system, "named entity"):
		d.calls = append(d.calls, "entity")
		return provider.Result{Content: d.entityJSON}, nil
	case strings.Contains(system, "search query"):
		d.calls = append(d.calls, "query")
		return provider.Result{Content: d.queryJSON}, nil
	default:
		d.calls = append(d.calls, "summary")
		d.lastSummary = messages
		if d.summaryErr != nil {
			return provider.Result{}, d.summaryErr
		}
		return provider.Result{Content: d.summary}, nil
	}
}

type orchInvoker struct {
	searchPayload string
	searchErr     error
	browseText    string
	browseErr     error
}

func (o *orchInvoker) Call(_ context.Context, name string, _ json.RawMessage) (string, error) {
	switch name {
	case tools.OpWebSearch:
		return o.searchPayload, o.searchErr
	case tools.OpWebBrowse:
		if o.browseErr != nil {
			return "", o.browseErr
		}
		b, _ := json.Marshal(map[string]any{"url": "https://example.com", "text": o.browseText, "word_count": len(strings.Fields(o.browseText))})
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: %s", tools.ErrUnknownOperation, name)
	}
}

func quotePayload(publishedAt string) string {
	src := fmt.Sprintf(`{"url":"https://markets.example.com/dow","title":"Dow Jones Industrial Average closes up 1.2%%","domain":"markets.example.com","excerpt":"The Dow rose, up 1.2%% on the day."`)
	if publishedAt != "" {
		src += fmt.Sprintf(`,"publishedAt":%q`, publishedAt)
	}
	src += "}"
	return "Dow coverage\n" + tools.ResultsDelimiter + "\n[" + src + "]"
}

func newTestOrchestrator(chat provider.ChatClient, inv tools.Invoker) *Orchestrator {
	return NewOrchestrator(chat, inv, inmemory.NewStore(), audit.NopSink{}, Options{}, quietLogger())
}

func TestRespondEndToEndMarketQuote(t *testing.T) {
	t.Parallel()

	chat := &dispatchChat{
		entityJSON: `{"name":""}`,
		queryJSON:  `{"query":"dow jones today","recency":"day"}`,
		summary:    "The Dow Jones closed up 1.2% today, led by industrials.",
	}
	inv := &orchInvoker{
		searchPayload: quotePayload(time.Now().Add(-1 * time.Hour).Format(time.RFC3339)),
		browseErr:     fmt.Errorf("fetch disabled"),
	}
	o := newTestOrchestrator(chat, inv)

	resp := o.Respond(context.Background(), "conv-1", "Dow Jones today")
	if !strings.Contains(resp.Text, "up") || !strings.Contains(resp.Text, "1.2%") {
		t.Fatalf("response lost direction or percentage: %q", resp.Text)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("got %d sources", len(resp.Sources))
	}
	if resp.UsedFallback {
		t.Fatalf("clean run flagged as fallback")
	}
}

func TestRespondRefusesStaleQuote(t *testing.T) {
	t.Parallel()

	chat := &dispatchChat{
		entityJSON: `{"name":""}`,
		queryJSON:  `{"query":"dow jones today","recency":"day"}`,
		summary:    "should never be used",
	}
	inv := &orchInvoker{
		searchPayload: quotePayload(time.Now().Add(-8 * time.Hour).Format(time.RFC3339)),
	}
	o := newTestOrchestrator(chat, inv)

	resp := o.Respond(context.Background(), "conv-1", "Dow Jones today")
	if resp.Text != staleQuoteMessage {
		t.Fatalf("expected hard refusal, got %q", resp.Text)
	}
	for _, c := range chat.calls {
		if c == "summary" {
			t.Fatalf("refusal path must not summarize")
		}
	}
}

func TestRespondUndatedQuoteGetsCaveatNotRefusal(t *testing.T) {
	t.Parallel()

	chat := &dispatchChat{
		entityJSON: `{"name":""}`,
		queryJSON:  `{"query":"dow jones today","recency":"day"}`,
		summary:    "The Dow was reported up 1.2%, though the sources are undated.",
	}
	inv := &orchInvoker{
		searchPayload: quotePayload(""),
		browseErr:     fmt.Errorf("fetch disabled"),
	}
	o := newTestOrchestrator(chat, inv)

	resp := o.Respond(context.Background(), "conv-1", "Dow Jones today")
	if resp.Text == staleQuoteMessage {
		t.Fatalf("timestamp absence must not trigger the refusal")
	}
	if len(chat.lastSummary) == 0 || !strings.Contains(chat.lastSummary[0].Content, "timestamp") {
		t.Fatalf("caveat instruction missing from summarization prompt")
	}
}

func TestRespondSearchFailureApologizes(t *testing.T) {
	t.Parallel()

	chat := &dispatchChat{
		entityJSON: `{"name":""}`,
		queryJSON:  `{"query":"anything","recency":"any"}`,
	}
	inv := &orchInvoker{searchErr: fmt.Errorf("network down")}
	o := newTestOrchestrator(chat, inv)

	resp := o.Respond(context.Background(), "conv-1", "tell me about anything")
	if resp.Text != apologyMessage {
		t.Fatalf("got %q", resp.Text)
	}
	if !resp.UsedFallback {
		t.Fatalf("failed turn not marked as fallback")
	}
}

func TestRespondSummaryFailureExtractiveFallback(t *testing.T) {
	t.Parallel()

	chat := &dispatchChat{
		entityJSON: `{"name":""}`,
		queryJSON:  `{"query":"volcano eruption iceland","recency":"day"}`,
		summaryErr: fmt.Errorf("model unavailable"),
	}
	inv := &orchInvoker{
		searchPayload: "eruption coverage\n" + tools.ResultsDelimiter +
			`[{"url":"https://example.com/volcano","title":"Volcano erupts in Iceland","domain":"example.com","excerpt":"Lava flows reported."}]`,
		browseErr: fmt.Errorf("fetch disabled"),
	}
	o := newTestOrchestrator(chat, inv)

	resp := o.Respond(context.Background(), "conv-1", "volcano eruption iceland")
	if !resp.UsedFallback {
		t.Fatalf("expected fallback flag")
	}
	if !strings.Contains(resp.Text, "Volcano erupts in Iceland") {
		t.Fatalf("extractive fallback lost the source title: %q", resp.Text)
	}
}

func TestRespondNewsModeClusters(t *testing.T) {
	t.Parallel()

	payload := "news\n" + tools.ResultsDelimiter + `[
		{"url":"https://a.example.com/1","title":"Fed raises interest rates by quarter point","domain":"a.example.com"},
		{"url":"https://b.example.com/2","title":"Federal Reserve raises rates a quarter point","domain":"b.example.com"},
		{"url":"https://c.example.com/3","title":"New species of deep sea fish discovered","domain":"c.example.com"}
	]`
	chat := &dispatchChat{
		queryJSON: `{"query":"latest news","recency":"day"}`,
		summary:   "Today's top story: the Fed raised rates.",
	}
	inv := &orchInvoker{searchPayload: payload, browseErr: fmt.Errorf("fetch disabled")}
	o := newTestOrchestrator(chat, inv)

	resp := o.Respond(context.Background(), "conv-1", "what's the latest news")
	if resp.Mode != models.ModeNewsAggregate {
		t.Fatalf("mode = %s", resp.Mode)
	}
	if len(resp.Clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(resp.Clusters))
	}
	if len(resp.Clusters[0].Items) != 2 {
		t.Fatalf("largest cluster has %d items", len(resp.Clusters[0].Items))
	}
	for _, c := range chat.calls {
		if c == "entity" {
			t.Fatalf("news turns must not resolve entities")
		}
	}
}

func TestRespondFollowUpDeepDive(t *testing.T) {
	t.Parallel()

	store := inmemory.NewStore()
	sess := &session.SearchSession{}
	sess.RecordSearchResults(models.ModeWebFactFind, "volcano iceland", models.RecencyDay, []models.SourceItem{{
		ID: "abc123def456", URL: "https://example.com/volcano", Title: "Volcano erupts",
		Domain: "example.com", Snippet: "Lava flows reported.",
	}}, time.Now())
	if err := store.Save(context.Background(), "conv-1", sess); err != nil {
		t.Fatal(err)
	}

	article := strings.Repeat("The eruption continued through the night with lava fountains. ", 40)
	chat := &dispatchChat{summary: "In depth: the eruption continued overnight."}
	inv := &orchInvoker{browseText: article}
	o := NewOrchestrator(chat, inv, store, audit.NopSink{}, Options{}, quietLogger())

	resp := o.Respond(context.Background(), "conv-1", "tell me more about that")
	if resp.Mode != models.ModeFollowUp {
		t.Fatalf("mode = %s", resp.Mode)
	}
	if resp.Text != "In depth: the eruption continued overnight." {
		t.Fatalf("got %q", resp.Text)
	}
}

func TestRespondFollowUpDeepDiveDegradesToSnippet(t *testing.T) {
	t.Parallel()

	store := inmemory.NewStore()
	sess := &session.SearchSession{}
	sess.RecordSearchResults(models.ModeWebFactFind, "volcano iceland", models.RecencyDay, []models.SourceItem{{
		ID: "abc123def456", URL: "https://example.com/volcano", Title: "Volcano erupts",
		Domain: "example.com", Snippet: "Lava flows reported.",
	}}, time.Now())
	if err := store.Save(context.Background(), "conv-1", sess); err != nil {
		t.Fatal(err)
	}

	chat := &dispatchChat{summary: "unused"}
	inv := &orchInvoker{browseErr: fmt.Errorf("timeout")}
	o := NewOrchestrator(chat, inv, store, audit.NopSink{}, Options{}, quietLogger())

	resp := o.Respond(context.Background(), "conv-1", "tell me more about that")
	if !resp.UsedFallback {
		t.Fatalf("expected degraded response")
	}
	if !strings.Contains(resp.Text, "Lava flows reported.") {
		t.Fatalf("snippet fallback missing: %q", resp.Text)
	}
}

func TestRespondFollowUpMoreSources(t *testing.T) {
	t.Parallel()

	store := inmemory.NewStore()
	sess := &session.SearchSession{}
	sess.RecordSearchResults(models.ModeNewsAggregate, "volcano iceland", models.RecencyDay, []models.SourceItem{{
		ID: "5ba0497a0e5a", URL: "https://known.example.com/old", Title: "Known article", Domain: "known.example.com",
	}}, time.Now())
	if err := store.Save(context.Background(), "conv-1", sess); err != nil {
		t.Fatal(err)
	}

	chat := &dispatchChat{summary: "Two more outlets covered the eruption."}
	inv := &orchInvoker{searchPayload: "more\n" + tools.ResultsDelimiter + `[
		{"url":"https://fresh.example.com/a","title":"Eruption continues","domain":"fresh.example.com"},
		{"url":"https://fresh.example.com/b","title":"Villages evacuated","domain":"fresh.example.com"}
	]`}
	o := NewOrchestrator(chat, inv, store, audit.NopSink{}, Options{}, quietLogger())

	resp := o.Respond(context.Background(), "conv-1", "any other sources on this?")
	if resp.Mode != models.ModeFollowUp {
		t.Fatalf("mode = %s", resp.Mode)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("got %d new sources, want 2", len(resp.Sources))
	}

	// The session accumulated the new sources for the next turn.
	after, err := store.Get(context.Background(), "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(after.LastResults) != 3 {
		t.Fatalf("session has %d results, want 3", len(after.LastResults))
	}
}
