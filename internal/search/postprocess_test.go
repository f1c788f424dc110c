package search

import (
	"strings"
	"testing"
)

func TestCleanModelText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "role prefix stripped",
			in:   "Assistant: The answer is 42.",
			want: "The answer is 42.",
		},
		{
			name: "special tokens removed",
			in:   "The answer is 42.<|endoftext|>",
			want: "The answer is 42.",
		},
		{
			name: "self dialogue cut",
			in:   "The answer is 42.\nUser: what else can you tell me\nAssistant: Also...",
			want: "The answer is 42.",
		},
		{
			name: "blank runs collapsed",
			in:   "First paragraph.\n\n\n\nSecond paragraph.",
			want: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name: "dangling bold trimmed",
			in:   "Markets closed higher on **",
			want: "Markets closed higher on",
		},
		{
			name: "balanced emphasis kept",
			in:   "Markets closed **higher** today.",
			want: "Markets closed **higher** today.",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanModelText(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCleanModelTextUnclosedFence(t *testing.T) {
	t.Parallel()

	in := "Here is the summary.\n```\nhalf a code block that never ends"
	got := CleanModelText(in)
	if strings.Contains(got, "```") {
		t.Fatalf("unclosed fence survived: %q", got)
	}
	if !strings.Contains(got, "Here is the summary.") {
		t.Fatalf("prose before the fence lost: %q", got)
	}
}
