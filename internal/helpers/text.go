package helpers

import "strings"

// Truncate cuts s to at most max bytes, preferring a word boundary near the
// limit and never splitting a multi-byte rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !isRuneStart(s[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	if i := strings.LastIndexByte(cut, ' '); i > max*3/4 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
