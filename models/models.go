package models

import (
	"encoding/json"
	"time"
)

// SourceItem is one retrieved web result. The ID is a stable fingerprint of
// the canonicalized URL, so the same article maps to the same ID across
// searches.
type SourceItem struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Domain      string     `json:"domain"`
	Snippet     string     `json:"snippet,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	WordCount   int        `json:"word_count,omitempty"`
}

// StoryCluster groups sources judged to cover the same story.
type StoryCluster struct {
	Title string       `json:"title"`
	Items []SourceItem `json:"items"`
}

// EntityType tags a resolved entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityPlace        EntityType = "place"
	EntityTopic        EntityType = "topic"
	EntityUnknown      EntityType = "unknown"
)

// ParseEntityType maps free-form model output onto a known tag.
func ParseEntityType(s string) EntityType {
	switch EntityType(s) {
	case EntityPerson, EntityOrganization, EntityPlace, EntityTopic:
		return EntityType(s)
	default:
		return EntityUnknown
	}
}

// ResolvedEntity is the canonical name/type for something the user mentioned.
type ResolvedEntity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
	Hint string     `json:"hint,omitempty"`
}

// RecencyWindow constrains how fresh search results must be.
type RecencyWindow string

const (
	RecencyDay   RecencyWindow = "day"
	RecencyWeek  RecencyWindow = "week"
	RecencyMonth RecencyWindow = "month"
	RecencyAny   RecencyWindow = "any"
)

// ParseRecency normalizes a recency string, defaulting to RecencyAny.
func ParseRecency(s string) RecencyWindow {
	switch RecencyWindow(s) {
	case RecencyDay, RecencyWeek, RecencyMonth:
		return RecencyWindow(s)
	default:
		return RecencyAny
	}
}

// SearchMode classifies a user turn for the search pipeline.
type SearchMode string

const (
	ModeNewsAggregate SearchMode = "news_aggregate"
	ModeWebFactFind   SearchMode = "web_fact_find"
	ModeFollowUp      SearchMode = "follow_up"
)

// FollowUpKind refines a follow-up turn.
type FollowUpKind string

const (
	FollowUpDeepDive    FollowUpKind = "deep_dive"
	FollowUpMoreSources FollowUpKind = "more_sources"
)

// UtilityResult is the common currency between the deterministic engine, the
// utility router, and the intent handler. Either Answer is set (inline
// response) or ToolName/ToolArgs describe exactly one operation to run.
type UtilityResult struct {
	Category   string          `json:"category"`
	Answer     string          `json:"answer,omitempty"`
	Confidence float64         `json:"confidence"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
}

// AgentResponse is the terminal output of one user turn.
type AgentResponse struct {
	Text         string         `json:"text"`
	Mode         SearchMode     `json:"mode,omitempty"`
	Sources      []SourceItem   `json:"sources,omitempty"`
	Clusters     []StoryCluster `json:"clusters,omitempty"`
	UsedFallback bool           `json:"used_fallback,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
