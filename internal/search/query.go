package search

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/provider"
)

const (
	newsQueryPrompt = `You turn a user message into a short news search query.
Bias toward recent coverage: prefer concrete subjects over question phrasing.
Use only words from the user's message or the entity context given to you.
Respond with bare JSON: {"query": "...", "recency": "day|week|month|any"}.
Keep the query under 10 words.`

	factQueryPrompt = `You turn a user message into a short web search query for
factual lookup. Prefer stable, encyclopedic phrasing over temporal wording.
Use only words from the user's message or the entity context given to you.
Respond with bare JSON: {"query": "...", "recency": "day|week|month|any"}.
Keep the query under 10 words.`

	marketQuoteInstruction = `The user is asking about a market price or index
level. Include the instrument name and the word "today" in the query and set
recency to "day".`
)

// BuiltQuery is the query-builder output.
type BuiltQuery struct {
	Query        string
	Recency      models.RecencyWindow
	UsedFallback bool
}

// QueryBuilder constructs bounded, validated search queries. Model output is
// never trusted directly: every candidate passes token validation against
// the user's own words, and any failure lands on a deterministic fallback
// template.
type QueryBuilder struct {
	chat       provider.ChatClient
	logger     *log.Logger
	retryDelay time.Duration
}

func NewQueryBuilder(chat provider.ChatClient, retryDelay time.Duration, logger *log.Logger) *QueryBuilder {
	if logger == nil {
		logger = log.New(log.Writer(), "[QUERY] ", log.LstdFlags)
	}
	return &QueryBuilder{chat: chat, logger: logger, retryDelay: retryDelay}
}

// Build produces the search query for one turn. The model proposes, the
// validator disposes; fallback construction cannot fail.
func (qb *QueryBuilder) Build(ctx context.Context, text string, mode models.SearchMode, entity *models.ResolvedEntity, sess *session.SearchSession) BuiltQuery {
	candidate, modelRecency, err := qb.propose(ctx, text, mode, entity)
	out := BuiltQuery{}
	if err == nil && validateQuery(candidate, text, entity) {
		out.Query = candidate
	} else {
		if err != nil {
			qb.logger.Printf("model query failed (%v), using fallback", err)
		} else {
			qb.logger.Printf("model query %q failed validation, using fallback", candidate)
		}
		out.Query = FallbackQuery(text, entity, sess)
		out.UsedFallback = true
	}

	out.Recency = resolveRecency(text, modelRecency, mode)
	if mode == models.ModeNewsAggregate {
		out.Query = canonicalizeNewsQuery(out.Query)
	}
	return out
}

func (qb *QueryBuilder) propose(ctx context.Context, text string, mode models.SearchMode, entity *models.ResolvedEntity) (string, models.RecencyWindow, error) {
	system := factQueryPrompt
	if mode == models.ModeNewsAggregate {
		system = newsQueryPrompt
	}
	if MarketQuoteIntent(text) {
		system += "\n" + marketQuoteInstruction
	}

	userMsg := text
	if entity != nil {
		userMsg += "\n\nEntity context: " + entity.Name
		if entity.Hint != "" {
			userMsg += " (" + entity.Hint + ")"
		}
	}

	res, err := provider.ChatWithRetry(ctx, qb.chat, []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: userMsg},
	}, provider.Options{MaxTokens: 100, JSONOnly: true}, qb.retryDelay)
	if err != nil {
		return "", "", err
	}

	var parsed struct {
		Query   string `json:"query"`
		Recency string `json:"recency"`
	}
	if err := decodeModelJSON(res.Content, &parsed); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(parsed.Query), models.ParseRecency(strings.ToLower(parsed.Recency)), nil
}

// glueWords are tokens a generated query may contain regardless of the user's
// wording.
var glueWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "for": {}, "in": {}, "on": {},
	"and": {}, "or": {}, "to": {}, "at": {}, "vs": {}, "versus": {},
	"latest": {}, "news": {}, "update": {}, "updates": {}, "today": {},
	"current": {}, "price": {}, "top": {}, "headlines": {}, "best": {},
	"review": {}, "meaning": {}, "definition": {}, "explained": {},
	"history": {}, "results": {}, "live": {}, "now": {},
}

// validateQuery checks that every token of a candidate query is explained by
// the user's message, the entity, or the glue-word allow-list. One stray
// token is tolerated; two or more discard the candidate.
func validateQuery(candidate, userText string, entity *models.ResolvedEntity) bool {
	tokens := queryTokens(candidate)
	if len(tokens) == 0 || len(tokens) > 12 {
		return false
	}

	pool := make(map[string]struct{})
	for _, t := range queryTokens(userText) {
		pool[t] = struct{}{}
	}
	if entity != nil {
		for _, t := range queryTokens(entity.Name) {
			pool[t] = struct{}{}
		}
		for _, t := range queryTokens(entity.Hint) {
			pool[t] = struct{}{}
		}
	}

	unexplained := 0
	for _, t := range tokens {
		if _, ok := pool[t]; ok {
			continue
		}
		if _, ok := glueWords[t]; ok {
			continue
		}
		if isNumeric(t) {
			continue
		}
		unexplained++
		if unexplained > 1 {
			return false
		}
	}
	return true
}

func queryTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

var (
	leadingFillerRe  = regexp.MustCompile(`(?i)^(?:hey|hi|so|ok(?:ay)?|please|can you|could you|would you|tell me(?: more)?(?: about)?|what(?:'s| is| are| was)|who(?:'s| is| was)|when(?: did| was| is)?|where(?: is| was)?|how (?:do(?:es)?|did|is|are)|search(?: the web)?(?: for)?|look up|look for|find(?: me)?(?: out)?(?: about)?|show me|give me|i(?: would like| want|'d like) to know(?: about)?|about)\s+`)
	leadingArticleRe = regexp.MustCompile(`(?i)^the\s+`)
	trailingNoiseRe  = regexp.MustCompile(`(?i)[\s,]*(?:please|thanks(?: a lot)?|thank you|for me|right now)?\s*[?.!]*\s*$`)
)

// TopicPhrase strips request framing from a message, leaving the subject.
func TopicPhrase(text string) string {
	s := strings.TrimSpace(text)
	for {
		next := leadingFillerRe.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	s = leadingArticleRe.ReplaceAllString(s, "")
	s = trailingNoiseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// FallbackQuery is the deterministic query template used when model
// construction fails or is rejected: entity, then extracted topic phrase,
// then the session's previous query, then the raw message truncated to 60
// characters.
func FallbackQuery(text string, entity *models.ResolvedEntity, sess *session.SearchSession) string {
	if entity != nil && strings.TrimSpace(entity.Name) != "" {
		q := entity.Name
		if entity.Hint != "" {
			q += " " + entity.Hint
		}
		return q
	}
	if topic := TopicPhrase(text); topic != "" {
		return truncateQuery(topic, 60)
	}
	if sess != nil && strings.TrimSpace(sess.LastQuery) != "" {
		return sess.LastQuery
	}
	return truncateQuery(strings.TrimSpace(text), 60)
}

func truncateQuery(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

var temporalMarkers = []struct {
	re      *regexp.Regexp
	recency models.RecencyWindow
}{
	{regexp.MustCompile(`(?i)\b(today|tonight|this (?:morning|afternoon|evening)|right now|breaking|just (?:happened|announced))\b`), models.RecencyDay},
	{regexp.MustCompile(`(?i)\b(this week|past week|last (?:few|couple of) days|recent(?:ly)?)\b`), models.RecencyWeek},
	{regexp.MustCompile(`(?i)\b(this month|past month|last few weeks)\b`), models.RecencyMonth},
}

// resolveRecency prefers explicit temporal markers in the user's own text
// over the model's guess.
func resolveRecency(userText string, modelRecency models.RecencyWindow, mode models.SearchMode) models.RecencyWindow {
	for _, m := range temporalMarkers {
		if m.re.MatchString(userText) {
			return m.recency
		}
	}
	if modelRecency != "" && modelRecency != models.RecencyAny {
		return modelRecency
	}
	if mode == models.ModeNewsAggregate {
		return models.RecencyDay
	}
	return models.RecencyAny
}

var newsChatterWords = map[string]struct{}{
	"news": {}, "headlines": {}, "headline": {}, "latest": {}, "top": {},
	"stories": {}, "story": {}, "breaking": {}, "today": {}, "todays": {},
	"whats": {}, "happening": {}, "going": {}, "on": {}, "the": {}, "in": {},
	"world": {}, "now": {}, "current": {}, "update": {}, "updates": {},
	"me": {}, "give": {}, "show": {}, "tell": {}, "any": {},
}

// canonicalizeNewsQuery maps pure news chatter ("whats the latest news") to
// the fixed headline query instead of echoing noise into the search engine.
func canonicalizeNewsQuery(query string) string {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return "top headlines"
	}
	for _, t := range tokens {
		if _, ok := newsChatterWords[t]; !ok {
			return query
		}
	}
	return "top headlines"
}

var marketQuoteRe = regexp.MustCompile(`(?i)\b(stock price|share price|stock quote|trading at|market cap|(?:price|value) of (?:bitcoin|btc|ethereum|eth|gold|silver|oil)|(?:bitcoin|btc|ethereum|eth) price|(?:dow(?: jones)?|nasdaq|s&p(?: 500)?|ftse|dax|nikkei)\b.*\b(today|now|at|level|close[d]?|doing|up|down)|how (?:is|did) the (?:market|dow|nasdaq|s&p))\b`)

// MarketQuoteIntent reports whether a message asks for a market price or
// index level, which makes the freshness guardrail apply.
func MarketQuoteIntent(text string) bool {
	return marketQuoteRe.MatchString(text)
}
