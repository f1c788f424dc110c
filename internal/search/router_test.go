package search

import (
	"testing"
	"time"

	"github.com/mohammad-safakhou/converse/internal/session"
	"github.com/mohammad-safakhou/converse/models"
)

func freshSession(now time.Time) *session.SearchSession {
	s := &session.SearchSession{}
	s.RecordSearchResults(models.ModeNewsAggregate, "election results", models.RecencyDay,
		itemsFromTitles("Election results announced"), now.Add(-2*time.Minute))
	return s
}

func TestClassifyModeFollowUp(t *testing.T) {
	t.Parallel()
	now := time.Now()

	mode, kind := ClassifyMode("tell me more about that", freshSession(now), now, session.DefaultFreshness)
	if mode != models.ModeFollowUp || kind != models.FollowUpDeepDive {
		t.Fatalf("got %s/%s, want follow_up/deep_dive", mode, kind)
	}

	mode, kind = ClassifyMode("are there any other sources on this?", freshSession(now), now, session.DefaultFreshness)
	if mode != models.ModeFollowUp || kind != models.FollowUpMoreSources {
		t.Fatalf("got %s/%s, want follow_up/more_sources", mode, kind)
	}
}

func TestClassifyModeStaleSessionDowngrades(t *testing.T) {
	t.Parallel()
	now := time.Now()

	stale := &session.SearchSession{}
	stale.RecordSearchResults(models.ModeWebFactFind, "q", models.RecencyAny,
		itemsFromTitles("Old result"), now.Add(-20*time.Minute))

	mode, _ := ClassifyMode("tell me more about that", stale, now, session.DefaultFreshness)
	if mode == models.ModeFollowUp {
		t.Fatalf("stale session must not anchor a follow-up")
	}

	mode, _ = ClassifyMode("tell me more about that", nil, now, session.DefaultFreshness)
	if mode == models.ModeFollowUp {
		t.Fatalf("nil session must not anchor a follow-up")
	}
}

func TestClassifyModeNewsVsFactFind(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tests := []struct {
		input string
		want  models.SearchMode
	}{
		{"what's the latest news on the election", models.ModeNewsAggregate},
		{"show me today's top stories", models.ModeNewsAggregate},
		{"what's happening in the markets", models.ModeNewsAggregate},
		{"how tall is the Eiffel Tower", models.ModeWebFactFind},
		{"who founded the company", models.ModeWebFactFind},
	}
	for _, tc := range tests {
		mode, _ := ClassifyMode(tc.input, nil, now, session.DefaultFreshness)
		if mode != tc.want {
			t.Fatalf("%q: got %s, want %s", tc.input, mode, tc.want)
		}
	}
}

func TestClassifyModeReferentialNeedsFreshResults(t *testing.T) {
	t.Parallel()
	now := time.Now()

	// Referential phrasing over a session with no results at all.
	empty := &session.SearchSession{UpdatedAt: now}
	mode, _ := ClassifyMode("expand on that", empty, now, session.DefaultFreshness)
	if mode == models.ModeFollowUp {
		t.Fatalf("resultless session must not anchor a follow-up")
	}
}
