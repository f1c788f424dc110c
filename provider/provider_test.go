package provider

import (
	"context"
	"testing"
	"time"
)

type scriptedClient struct {
	calls   int
	errs    []error
	lastMsg []Message
}

func (s *scriptedClient) Chat(_ context.Context, messages []Message, _ Options) (Result, error) {
	s.lastMsg = messages
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return Result{}, err
	}
	return Result{Content: "ok"}, nil
}

func TestChatWithRetryRetriesOnceOnTransient(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{errs: []error{ErrTransient}}
	res, err := ChatWithRetry(context.Background(), client, []Message{{Role: "user", Content: "hi"}}, Options{}, time.Millisecond)
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if res.Content != "ok" {
		t.Fatalf("unexpected content %q", res.Content)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", client.calls)
	}
}

func TestChatWithRetryFallsBackToReducedContext(t *testing.T) {
	t.Parallel()
	client := &scriptedClient{errs: []error{ErrTransient, ErrTransient}}
	messages := []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "mid"},
		{Role: "user", Content: "last"},
	}
	_, err := ChatWithRetry(context.Background(), client, messages, Options{}, time.Millisecond)
	if err != nil {
		t.Fatalf("expected reduced-context call to succeed, got %v", err)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", client.calls)
	}
	if len(client.lastMsg) != 2 {
		t.Fatalf("expected reduced context of 2 messages, got %d", len(client.lastMsg))
	}
	if client.lastMsg[1].Content != "last" {
		t.Fatalf("expected last user message to survive, got %q", client.lastMsg[1].Content)
	}
}

func TestChatWithRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()
	permanent := context.DeadlineExceeded
	client := &scriptedClient{errs: []error{permanent}}
	if _, err := ChatWithRetry(context.Background(), client, nil, Options{}, time.Millisecond); err == nil {
		t.Fatalf("expected permanent error to propagate")
	}
	if client.calls != 1 {
		t.Fatalf("expected no retry on permanent error, got %d calls", client.calls)
	}
}
