package search

import (
	"sort"
	"strings"

	"github.com/mohammad-safakhou/converse/models"
)

// DefaultClusterThreshold is the Jaccard similarity above which two titles
// are considered the same story.
const DefaultClusterThreshold = 0.3

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "it": {}, "its": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "over": {},
	"after": {}, "before": {}, "into": {}, "about": {}, "amid": {},
	"says": {}, "say": {}, "said": {}, "new": {}, "how": {}, "what": {},
	"why": {}, "will": {}, "has": {}, "have": {}, "had": {}, "not": {},
}

// stemWord strips a few common suffixes so "markets"/"market" and
// "reported"/"report" land on the same token.
func stemWord(w string) string {
	switch {
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		return w[:len(w)-3]
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "es") && len(w) > 4:
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ed") && len(w) > 4:
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ly") && len(w) > 4:
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && len(w) > 3:
		return w[:len(w)-1]
	}
	return w
}

// titleWords normalizes a title into its comparison word set.
func titleWords(title string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		f = stemWord(f)
		if len(f) < 2 {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

type protoCluster struct {
	items []models.SourceItem
	words map[string]struct{}
	order int
}

// Cluster groups items into story clusters by title similarity. Greedy
// single pass: each item joins the best-matching existing cluster at or
// above threshold, else starts its own. Output is ordered by descending
// size, ties broken by first appearance, so identical input always yields
// identical output.
func Cluster(items []models.SourceItem, threshold float64) []models.StoryCluster {
	if threshold <= 0 {
		threshold = DefaultClusterThreshold
	}
	var clusters []*protoCluster
	for _, item := range items {
		words := titleWords(item.Title)
		best := -1
		bestScore := 0.0
		for i, c := range clusters {
			if score := jaccard(words, c.words); score >= threshold && score > bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 {
			c := clusters[best]
			c.items = append(c.items, item)
			for w := range words {
				c.words[w] = struct{}{}
			}
		} else {
			clusters = append(clusters, &protoCluster{
				items: []models.SourceItem{item},
				words: words,
				order: len(clusters),
			})
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if len(clusters[i].items) != len(clusters[j].items) {
			return len(clusters[i].items) > len(clusters[j].items)
		}
		return clusters[i].order < clusters[j].order
	})

	out := make([]models.StoryCluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, models.StoryCluster{
			Title: c.items[0].Title,
			Items: c.items,
		})
	}
	return out
}
