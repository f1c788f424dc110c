package session

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/converse/models"
)

// DefaultFreshness bounds how long retrieved results anchor follow-up turns.
const DefaultFreshness = 15 * time.Minute

// SearchSession is per-conversation mutable state for the search pipeline.
// It lives independently of conversational message history: fields are
// overwritten by RecordSearchResults, appended to by AppendResults, and only
// fully zeroed by Clear on conversation reset.
type SearchSession struct {
	Mode            models.SearchMode      `json:"mode,omitempty"`
	LastQuery       string                 `json:"last_query,omitempty"`
	LastRecency     models.RecencyWindow   `json:"last_recency,omitempty"`
	Entity          *models.ResolvedEntity `json:"entity,omitempty"`
	LastResults     []models.SourceItem    `json:"last_results,omitempty"`
	PrimarySourceID string                 `json:"primary_source_id,omitempty"`
	LastClusters    []models.StoryCluster  `json:"last_clusters,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// RecordSearchResults overwrites the search state for a new round. The cached
// entity deliberately survives: an entity can outlive one search round and is
// only dropped by an explicit Clear.
func (s *SearchSession) RecordSearchResults(mode models.SearchMode, query string, recency models.RecencyWindow, results []models.SourceItem, now time.Time) {
	s.Mode = mode
	s.LastQuery = query
	s.LastRecency = recency
	s.LastResults = results
	s.LastClusters = nil
	s.PrimarySourceID = ""
	if len(results) > 0 {
		s.PrimarySourceID = results[0].ID
	}
	s.UpdatedAt = now
}

// AppendResults adds results to the current round, deduplicating by source ID.
func (s *SearchSession) AppendResults(results []models.SourceItem, now time.Time) {
	seen := make(map[string]struct{}, len(s.LastResults))
	for _, r := range s.LastResults {
		seen[r.ID] = struct{}{}
	}
	for _, r := range results {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		s.LastResults = append(s.LastResults, r)
	}
	s.UpdatedAt = now
}

// SetEntity caches a canonical entity for reuse across turns.
func (s *SearchSession) SetEntity(e models.ResolvedEntity, now time.Time) {
	s.Entity = &e
	s.UpdatedAt = now
}

// SetClusters stores the clusters produced by the latest news-mode turn.
func (s *SearchSession) SetClusters(clusters []models.StoryCluster) {
	s.LastClusters = clusters
}

// HasRecentResults reports whether the session can anchor a follow-up: at
// least one result, updated within freshness. Staleness degrades follow-up
// resolution silently rather than erroring.
func (s *SearchSession) HasRecentResults(now time.Time, freshness time.Duration) bool {
	if s == nil || len(s.LastResults) == 0 {
		return false
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return now.Sub(s.UpdatedAt) <= freshness
}

// FindSource returns the recorded source with the given ID, if any.
func (s *SearchSession) FindSource(id string) (models.SourceItem, bool) {
	for _, r := range s.LastResults {
		if r.ID == id {
			return r, true
		}
	}
	return models.SourceItem{}, false
}

// PrimarySource returns the current primary source, falling back to the
// first recorded result.
func (s *SearchSession) PrimarySource() (models.SourceItem, bool) {
	if s.PrimarySourceID != "" {
		if src, ok := s.FindSource(s.PrimarySourceID); ok {
			return src, true
		}
	}
	if len(s.LastResults) > 0 {
		return s.LastResults[0], true
	}
	return models.SourceItem{}, false
}

// Clear zeroes every field, including the cached entity.
func (s *SearchSession) Clear() {
	*s = SearchSession{}
}

// Store persists one SearchSession per conversation. Get returns a snapshot
// (an empty session when none exists); Save writes the snapshot back.
type Store interface {
	Get(ctx context.Context, conversationID string) (*SearchSession, error)
	Save(ctx context.Context, conversationID string, s *SearchSession) error
	Reset(ctx context.Context, conversationID string) error
}
