package search

import (
	"regexp"
	"strings"
)

var (
	rolePrefixRe    = regexp.MustCompile(`(?i)^\s*(assistant|ai|bot)\s*:\s*`)
	specialTokenRe  = regexp.MustCompile(`<\|[^|>]*\|>`)
	selfDialogueRe  = regexp.MustCompile(`(?im)^\s*(user|human)\s*:.*$`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	danglingLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\($`)
	unclosedFenceRe = regexp.MustCompile("(?s)```[^`]*$")
)

// CleanModelText strips template artifacts a small model tends to leak:
// role prefixes, special tokens, self-dialogue continuations where the model
// starts answering as the user, and dangling incomplete markdown.
func CleanModelText(s string) string {
	s = specialTokenRe.ReplaceAllString(s, "")
	s = rolePrefixRe.ReplaceAllString(s, "")

	// Cut everything from the first invented "User:" turn onward.
	if loc := selfDialogueRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	s = strings.TrimSpace(s)
	s = trimDanglingMarkdown(s)
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func trimDanglingMarkdown(s string) string {
	// Unclosed code fence at the tail: drop the fence and what follows.
	if strings.Count(s, "```")%2 == 1 {
		if loc := unclosedFenceRe.FindStringIndex(s); loc != nil {
			s = strings.TrimSpace(s[:loc[0]])
		}
	}
	// A link whose URL never arrived.
	s = danglingLinkRe.ReplaceAllString(s, "$1")
	// Emphasis opened on the final characters with nothing after it.
	for _, mark := range []string{"**", "__", "*", "_"} {
		if strings.HasSuffix(s, mark) && strings.Count(s, mark)%2 == 1 {
			s = strings.TrimSpace(strings.TrimSuffix(s, mark))
		}
	}
	return s
}
