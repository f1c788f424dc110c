package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/converse/internal/audit"
	"github.com/mohammad-safakhou/converse/internal/helpers"
	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
	fetchmodels "github.com/mohammad-safakhou/converse/tools/web_fetch/models"
)

const (
	apologyMessage = "I couldn't complete that search. Could you try rephrasing your question?"

	staleQuoteMessage = "I found market data for that, but the most recent source is several hours old, so I won't quote a number that may be stale. Please check a live market feed for the current figure."

	newsSummaryPrompt = `You summarize fresh news coverage for a user. Write a
compact briefing from the provided sources: lead with the most significant
story, group related items together, and attribute claims to their outlet.
Only use facts present in the sources. Plain prose, no preamble.`

	factSummaryPrompt = `You answer a user's question from the provided web
sources. Be direct: give the answer first, then one or two sentences of
supporting detail with attribution. Only use facts present in the sources.
If the sources do not answer the question, say so plainly.`

	deepDivePrompt = `You explain one article in depth for a user who already
saw the headline. Summarize its key points, context, and any numbers it
reports. Only use facts present in the article text.`

	moreSourcesPrompt = `The user wants additional coverage of a story they
already saw. Present the new sources briefly: what each adds, with
attribution. Only use facts present in the sources.`

	quoteCaveatInstruction = `None of the sources carry a publication
timestamp, so you cannot verify how current the figures are. Include the
figures, but state clearly that they may not reflect the latest trading.`
)

// Options are the orchestrator tunables.
type Options struct {
	QuoteFreshness   time.Duration
	SessionFreshness time.Duration
	ClusterThreshold float64
	MaxFetchSources  int
	MaxResults       int
	MinFetchWords    int
	MaxFetchChars    int
	RetryDelay       time.Duration
}

func (o *Options) normalize() {
	if o.QuoteFreshness <= 0 {
		o.QuoteFreshness = 6 * time.Hour
	}
	if o.SessionFreshness <= 0 {
		o.SessionFreshness = session.DefaultFreshness
	}
	if o.ClusterThreshold <= 0 {
		o.ClusterThreshold = DefaultClusterThreshold
	}
	if o.MaxFetchSources <= 0 || o.MaxFetchSources > 2 {
		o.MaxFetchSources = 2
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 10
	}
	if o.MinFetchWords <= 0 {
		o.MinFetchWords = 120
	}
	if o.MaxFetchChars <= 0 {
		o.MaxFetchChars = 6000
	}
}

// Orchestrator coordinates a full search turn: mode classification, entity
// resolution, query construction, retrieval, clustering, bounded content
// fetch, and summarization. Every stage failure degrades to a cheaper path;
// Respond never returns an error.
type Orchestrator struct {
	chat     provider.ChatClient
	invoker  tools.Invoker
	sessions session.Store
	entities *EntityResolver
	queries  *QueryBuilder
	sink     audit.Sink
	logger   *log.Logger
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(chat provider.ChatClient, invoker tools.Invoker, sessions session.Store, sink audit.Sink, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	opts.normalize()
	return &Orchestrator{
		chat:     chat,
		invoker:  invoker,
		sessions: sessions,
		entities: NewEntityResolver(chat, invoker, opts.RetryDelay, logger),
		queries:  NewQueryBuilder(chat, opts.RetryDelay, logger),
		sink:     sink,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Respond runs one search turn for a conversation.
func (o *Orchestrator) Respond(ctx context.Context, conversationID, text string) models.AgentResponse {
	now := o.now()

	sess, err := o.sessions.Get(ctx, conversationID)
	if err != nil {
		o.logger.Printf("session load failed, starting empty: %v", err)
		sess = &session.SearchSession{}
	}

	mode, kind := ClassifyMode(text, sess, now, o.opts.SessionFreshness)
	o.audit(ctx, conversationID, "turn_classified", map[string]any{"mode": string(mode), "kind": string(kind)})

	var resp models.AgentResponse
	if mode == models.ModeFollowUp {
		resp = o.followUp(ctx, conversationID, text, kind, sess)
	} else {
		resp = o.searchTurn(ctx, conversationID, text, mode, sess)
	}

	if err := o.sessions.Save(ctx, conversationID, sess); err != nil {
		o.logger.Printf("session save failed: %v", err)
	}
	resp.CreatedAt = now
	return resp
}

func (o *Orchestrator) searchTurn(ctx context.Context, conversationID, text string, mode models.SearchMode, sess *session.SearchSession) models.AgentResponse {
	isQuote := MarketQuoteIntent(text)

	var entity *models.ResolvedEntity
	if mode == models.ModeWebFactFind {
		entity = o.entities.Resolve(ctx, text, sess, false)
	}

	bq := o.queries.Build(ctx, text, mode, entity, sess)
	o.logger.Printf("mode=%s query=%q recency=%s fallback=%v", mode, bq.Query, bq.Recency, bq.UsedFallback)

	raw, err := o.webSearch(ctx, bq.Query, bq.Recency)
	if err != nil {
		o.logger.Printf("search failed: %v", err)
		o.audit(ctx, conversationID, "search_failed", map[string]any{"query": bq.Query, "error": err.Error()})
		return models.AgentResponse{Text: apologyMessage, Mode: mode, UsedFallback: true}
	}

	resultText, items := ParseSearchResult(raw)
	if len(items) == 0 && strings.TrimSpace(resultText) == "" {
		return models.AgentResponse{Text: apologyMessage, Mode: mode, UsedFallback: true}
	}

	// Market quotes: refuse on verifiably stale data, soften when the
	// sources carry no timestamps at all.
	quoteCaveat := false
	if isQuote {
		switch quoteFreshness(items, o.now(), o.opts.QuoteFreshness) {
		case quoteStale:
			o.audit(ctx, conversationID, "stale_quote_refused", map[string]any{"query": bq.Query})
			return models.AgentResponse{Text: staleQuoteMessage, Mode: mode, Sources: items}
		case quoteUndated:
			quoteCaveat = true
		}
	}

	sess.RecordSearchResults(mode, bq.Query, bq.Recency, items, o.now())

	var clusters []models.StoryCluster
	if mode == models.ModeNewsAggregate && len(items) > 1 {
		clusters = Cluster(items, o.opts.ClusterThreshold)
		sess.SetClusters(clusters)
	}

	fetched := o.fetchTopSources(ctx, items)

	prompt := factSummaryPrompt
	if mode == models.ModeNewsAggregate {
		prompt = newsSummaryPrompt
	}
	if quoteCaveat {
		prompt += "\n" + quoteCaveatInstruction
	}

	answer, usedFallback := o.summarize(ctx, prompt, text, resultText, items, fetched)
	o.audit(ctx, conversationID, "search_answered", map[string]any{
		"query": bq.Query, "sources": len(items), "fallback": usedFallback || bq.UsedFallback,
	})
	return models.AgentResponse{
		Text:         answer,
		Mode:         mode,
		Sources:      items,
		Clusters:     clusters,
		UsedFallback: usedFallback || bq.UsedFallback,
	}
}

func (o *Orchestrator) followUp(ctx context.Context, conversationID, text string, kind models.FollowUpKind, sess *session.SearchSession) models.AgentResponse {
	if kind == models.FollowUpMoreSources {
		return o.moreSources(ctx, conversationID, sess)
	}
	return o.deepDive(ctx, conversationID, text, sess)
}

func (o *Orchestrator) deepDive(ctx context.Context, conversationID, text string, sess *session.SearchSession) models.AgentResponse {
	src, ok := sess.PrimarySource()
	if !ok {
		return models.AgentResponse{Text: apologyMessage, Mode: models.ModeFollowUp, UsedFallback: true}
	}
	o.audit(ctx, conversationID, "deep_dive", map[string]any{"source": src.ID, "url": src.URL})

	article, err := o.webBrowse(ctx, src.URL)
	if err != nil || len(strings.Fields(article)) < o.opts.MinFetchWords {
		if err != nil {
			o.logger.Printf("deep dive fetch failed, degrading to snippet: %v", err)
		}
		// Degrade to what the search round already gave us.
		fallback := fmt.Sprintf("Here's what I have on that from %s: %s (%s)", src.Domain, src.Snippet, src.URL)
		if strings.TrimSpace(src.Snippet) == "" {
			fallback = fmt.Sprintf("I couldn't retrieve the full article from %s. The original is at %s.", src.Domain, src.URL)
		}
		return models.AgentResponse{Text: fallback, Mode: models.ModeFollowUp, Sources: []models.SourceItem{src}, UsedFallback: true}
	}

	user := fmt.Sprintf("The user asked: %s\n\nArticle %q from %s:\n%s", text, src.Title, src.Domain, helpers.Truncate(article, o.opts.MaxFetchChars))
	res, err := provider.ChatWithRetry(ctx, o.chat, []provider.Message{
		{Role: "system", Content: deepDivePrompt},
		{Role: "user", Content: user},
	}, provider.Options{MaxTokens: 700}, o.opts.RetryDelay)
	if err != nil {
		o.logger.Printf("deep dive summary failed: %v", err)
		return models.AgentResponse{Text: extractiveSummary([]models.SourceItem{src}), Mode: models.ModeFollowUp, Sources: []models.SourceItem{src}, UsedFallback: true}
	}
	return models.AgentResponse{Text: CleanModelText(res.Content), Mode: models.ModeFollowUp, Sources: []models.SourceItem{src}}
}

func (o *Orchestrator) moreSources(ctx context.Context, conversationID string, sess *session.SearchSession) models.AgentResponse {
	query := sess.LastQuery
	if strings.TrimSpace(query) == "" {
		return models.AgentResponse{Text: apologyMessage, Mode: models.ModeFollowUp, UsedFallback: true}
	}
	o.audit(ctx, conversationID, "more_sources", map[string]any{"query": query})

	raw, err := o.webSearch(ctx, query, sess.LastRecency)
	if err != nil {
		o.logger.Printf("more-sources search failed: %v", err)
		return models.AgentResponse{Text: apologyMessage, Mode: models.ModeFollowUp, UsedFallback: true}
	}
	_, items := ParseSearchResult(raw)

	seen := make(map[string]struct{}, len(sess.LastResults))
	for _, r := range sess.LastResults {
		seen[r.ID] = struct{}{}
	}
	var fresh []models.SourceItem
	for _, it := range items {
		if _, dup := seen[it.ID]; !dup {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		return models.AgentResponse{Text: "I didn't find additional coverage beyond the sources I already showed you.", Mode: models.ModeFollowUp}
	}
	sess.AppendResults(fresh, o.now())

	answer, usedFallback := o.summarize(ctx, moreSourcesPrompt, "additional coverage of: "+query, "", fresh, nil)
	return models.AgentResponse{Text: answer, Mode: models.ModeFollowUp, Sources: fresh, UsedFallback: usedFallback}
}

func (o *Orchestrator) webSearch(ctx context.Context, query string, recency models.RecencyWindow) (string, error) {
	args, _ := json.Marshal(map[string]any{
		"query":       query,
		"max_results": o.opts.MaxResults,
		"recency":     string(recency),
	})
	return tools.CallWithAlias(ctx, o.invoker, tools.OpWebSearch, args)
}

func (o *Orchestrator) webBrowse(ctx context.Context, url string) (string, error) {
	args, _ := json.Marshal(map[string]string{"url": url})
	raw, err := tools.CallWithAlias(ctx, o.invoker, tools.OpWebBrowse, args)
	if err != nil {
		return "", err
	}
	var res fetchmodels.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", fmt.Errorf("browse result: %w", err)
	}
	return res.Text, nil
}

type fetchedContent struct {
	source models.SourceItem
	text   string
}

// fetchTopSources pulls full content for the top sources concurrently. Each
// fetch fails independently; low-signal pages (thin wrapper or redirect
// content) are dropped by word count.
func (o *Orchestrator) fetchTopSources(ctx context.Context, items []models.SourceItem) []fetchedContent {
	n := o.opts.MaxFetchSources
	if len(items) < n {
		n = len(items)
	}
	if n == 0 {
		return nil
	}

	results := make([]fetchedContent, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text, err := o.webBrowse(ctx, items[i].URL)
			if err != nil {
				o.logger.Printf("fetch %s failed: %v", items[i].Domain, err)
				return
			}
			if len(strings.Fields(text)) < o.opts.MinFetchWords {
				o.logger.Printf("fetch %s dropped: low-signal content", items[i].Domain)
				return
			}
			results[i] = fetchedContent{source: items[i], text: helpers.Truncate(text, o.opts.MaxFetchChars)}
		}(i)
	}
	wg.Wait()

	out := results[:0]
	for _, r := range results {
		if r.text != "" {
			out = append(out, r)
		}
	}
	return out
}

// summarize produces the final answer text, degrading to an extractive
// summary built from raw snippets when the model call fails.
func (o *Orchestrator) summarize(ctx context.Context, systemPrompt, userText, resultText string, items []models.SourceItem, fetched []fetchedContent) (string, bool) {
	if ctx.Err() != nil {
		return extractiveSummary(items), true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n\n", userText)
	if resultText != "" {
		fmt.Fprintf(&b, "Search results:\n%s\n\n", resultText)
	}
	for _, f := range fetched {
		fmt.Fprintf(&b, "Full article from %s (%q):\n%s\n\n", f.source.Domain, f.source.Title, f.text)
	}
	if resultText == "" && len(fetched) == 0 {
		for i, it := range items {
			fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, it.Title, it.Domain, it.Snippet)
		}
	}

	res, err := provider.ChatWithRetry(ctx, o.chat, []provider.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}, provider.Options{MaxTokens: 900}, o.opts.RetryDelay)
	if err != nil {
		o.logger.Printf("summarization failed, degrading to extractive summary: %v", err)
		return extractiveSummary(items), true
	}
	clean := CleanModelText(res.Content)
	if clean == "" {
		return extractiveSummary(items), true
	}
	return clean, false
}

// extractiveSummary is the no-model fallback: a readable digest of titles
// and snippets.
func extractiveSummary(items []models.SourceItem) string {
	if len(items) == 0 {
		return apologyMessage
	}
	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	max := len(items)
	if max > 5 {
		max = 5
	}
	for _, it := range items[:max] {
		fmt.Fprintf(&b, "- %s (%s)", it.Title, it.Domain)
		if it.Snippet != "" {
			fmt.Fprintf(&b, ": %s", it.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

type quoteVerdict int

const (
	quoteFresh quoteVerdict = iota
	quoteStale
	quoteUndated
)

// quoteFreshness judges market-quote sources: stale when the newest
// timestamped source is older than the window, undated when no source
// carries a timestamp at all. Absence of timestamps is not evidence of
// staleness.
func quoteFreshness(items []models.SourceItem, now time.Time, window time.Duration) quoteVerdict {
	var newest time.Time
	dated := false
	for _, it := range items {
		if it.PublishedAt == nil {
			continue
		}
		dated = true
		if it.PublishedAt.After(newest) {
			newest = *it.PublishedAt
		}
	}
	if !dated {
		return quoteUndated
	}
	if now.Sub(newest) > window {
		return quoteStale
	}
	return quoteFresh
}

func (o *Orchestrator) audit(ctx context.Context, conversationID, kind string, detail map[string]any) {
	o.sink.Append(ctx, audit.Event{
		Time:         o.now(),
		Conversation: conversationID,
		Kind:         kind,
		Detail:       detail,
	})
}
