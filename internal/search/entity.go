package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/models"
	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
)

const entityExtractPrompt = `You extract the main named entity from a user message.
Respond with a bare JSON object: {"name": "...", "type": "person|organization|place|topic", "hint": "..."}.
"hint" is a short disambiguation phrase (profession, location, field). Use only
words that identify the entity, not the user's request verbs.
If the message has no clear named entity, respond with {"name": ""}.`

// EntityResolver canonicalizes the named entity a message is about. It never
// fails outright: the worst case is returning the raw extraction, or nothing.
type EntityResolver struct {
	chat       provider.ChatClient
	invoker    tools.Invoker
	logger     *log.Logger
	retryDelay time.Duration
	now        func() time.Time
}

func NewEntityResolver(chat provider.ChatClient, invoker tools.Invoker, retryDelay time.Duration, logger *log.Logger) *EntityResolver {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENTITY] ", log.LstdFlags)
	}
	return &EntityResolver{chat: chat, invoker: invoker, logger: logger, retryDelay: retryDelay, now: time.Now}
}

// Resolve returns the canonical entity for a message, or nil when the message
// has none. A cached session entity is reused with zero external calls when
// the message mentions it or is a follow-up turn.
func (r *EntityResolver) Resolve(ctx context.Context, text string, sess *session.SearchSession, isFollowUp bool) *models.ResolvedEntity {
	if sess != nil && sess.Entity != nil {
		cached := sess.Entity
		if isFollowUp || containsFold(text, cached.Name) {
			return cached
		}
	}

	extracted := r.extract(ctx, text)
	if extracted == nil {
		return nil
	}

	canonical := r.confirm(ctx, *extracted)
	if sess != nil {
		sess.SetEntity(canonical, r.now())
	}
	return &canonical
}

func (r *EntityResolver) extract(ctx context.Context, text string) *models.ResolvedEntity {
	res, err := provider.ChatWithRetry(ctx, r.chat, []provider.Message{
		{Role: "system", Content: entityExtractPrompt},
		{Role: "user", Content: text},
	}, provider.Options{MaxTokens: 150, JSONOnly: true}, r.retryDelay)
	if err != nil {
		r.logger.Printf("extraction failed: %v", err)
		return nil
	}

	var raw struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Hint string `json:"hint"`
	}
	if err := decodeModelJSON(res.Content, &raw); err != nil {
		r.logger.Printf("extraction parse failed: %v", err)
		return nil
	}
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil
	}
	return &models.ResolvedEntity{
		Name: name,
		Type: models.ParseEntityType(strings.ToLower(strings.TrimSpace(raw.Type))),
		Hint: strings.TrimSpace(raw.Hint),
	}
}

// confirm runs one search for the extracted entity and canonicalizes the
// name from the top result titles. Confirmation failure keeps the raw
// extraction.
func (r *EntityResolver) confirm(ctx context.Context, e models.ResolvedEntity) models.ResolvedEntity {
	query := fmt.Sprintf("%q", e.Name)
	if e.Hint != "" {
		query += " " + e.Hint
	}
	args, _ := json.Marshal(map[string]any{"query": query, "max_results": 5})
	raw, err := tools.CallWithAlias(ctx, r.invoker, tools.OpWebSearch, args)
	if err != nil {
		r.logger.Printf("confirmation search failed, keeping raw extraction: %v", err)
		return e
	}
	_, items := ParseSearchResult(raw)
	for _, item := range items {
		if name, ok := canonicalFromTitle(item.Title, e.Hint); ok {
			e.Name = name
			return e
		}
	}
	return e
}

// canonicalFromTitle extracts a canonical name from a search result title.
// Recognized shapes: "Name - Wikipedia", "Name | Description",
// "Name – Description", or a hint-bearing title cut at the first comma or
// colon.
func canonicalFromTitle(title, hint string) (string, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", false
	}
	if name, found := strings.CutSuffix(title, " - Wikipedia"); found {
		return plausibleName(name)
	}
	for _, sep := range []string{" | ", " – "} {
		if name, _, found := strings.Cut(title, sep); found {
			return plausibleName(name)
		}
	}
	if hint != "" && containsFold(title, hint) {
		if i := strings.IndexAny(title, ",:"); i > 0 {
			return plausibleName(title[:i])
		}
	}
	return "", false
}

// plausibleName rejects canonicalization candidates too long or empty to be
// an entity name.
func plausibleName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 80 {
		return "", false
	}
	return s, true
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
