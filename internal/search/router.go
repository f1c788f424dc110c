package search

import (
	"regexp"
	"time"

	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/models"
)

var (
	deepDiveRe = regexp.MustCompile(`(?i)\b(tell me more|more (?:about|on) (?:that|this|it)|go deeper|dig(?: in)? deeper|deep dive|elaborate|expand on (?:that|this|it)|what about (?:that|this|it)|the (?:first|second|third|last) (?:one|source|article|story)|that (?:article|story|source|one)|read (?:that|it|the article)|summarize (?:that|this|it)|open (?:that|it))\b`)

	moreSourcesRe = regexp.MustCompile(`(?i)\b(more sources|other sources|more coverage|related (?:coverage|articles|stories)|what else is there|any other (?:sources|articles|coverage)|additional sources|more articles|who else (?:covered|reported))\b`)

	newsIntentRe = regexp.MustCompile(`(?i)\b(news|headlines?|top stories|breaking|latest (?:on|about|news)|what(?:'s| is) (?:happening|going on))\b`)
)

// ClassifyMode decides how a turn is handled. FollowUp is chosen only when
// the session still holds fresh results and the message actually reads as a
// follow-up; a stale session silently downgrades to a fresh search instead
// of erroring.
func ClassifyMode(text string, sess *session.SearchSession, now time.Time, freshness time.Duration) (models.SearchMode, models.FollowUpKind) {
	referential := deepDiveRe.MatchString(text) || moreSourcesRe.MatchString(text)
	if referential && sess != nil && sess.HasRecentResults(now, freshness) {
		if moreSourcesRe.MatchString(text) {
			return models.ModeFollowUp, models.FollowUpMoreSources
		}
		return models.ModeFollowUp, models.FollowUpDeepDive
	}
	if newsIntentRe.MatchString(text) {
		return models.ModeNewsAggregate, ""
	}
	return models.ModeWebFactFind, ""
}
