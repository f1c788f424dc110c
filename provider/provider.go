package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// ErrTransient marks transport-level failures ("failed to process request",
// 5xx, timeouts) that are worth exactly one retry before degrading.
var ErrTransient = errors.New("transient llm failure")

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune one chat call.
type Options struct {
	MaxTokens   int
	Temperature float64
	// JSONOnly asks the model for a bare JSON object response.
	JSONOnly bool
}

// Result is the outcome of one chat call.
type Result struct {
	Content      string
	FinishReason string
	TokensUsed   int64
}

// ChatClient is the narrow contract the core consumes: entity extraction,
// query construction, and summarization all go through Chat. Implementations
// must support cancellation via ctx and keep their retry budget bounded.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts Options) (Result, error)
}

// Config carries provider construction settings.
type Config struct {
	Type        Client        `mapstructure:"type"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// New creates a ChatClient for the configured provider type.
func New(cfg Config) (ChatClient, error) {
	switch cfg.Type {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		return newOpenAIClient(cfg), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Type)
	}
}

// ChatWithRetry runs one chat call with the bounded recovery ladder: a single
// retry after a short fixed delay on transient errors, then a reduced-context
// retry (system plus final user message only). Anything after that is the
// caller's problem — callers degrade to static text, never loop.
func ChatWithRetry(ctx context.Context, client ChatClient, messages []Message, opts Options, retryDelay time.Duration) (Result, error) {
	res, err := client.Chat(ctx, messages, opts)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrTransient) {
		return Result{}, err
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	res, err = client.Chat(ctx, messages, opts)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrTransient) {
		return Result{}, err
	}
	reduced := reduceContext(messages)
	if len(reduced) == len(messages) {
		return Result{}, err
	}
	return client.Chat(ctx, reduced, opts)
}

// reduceContext keeps the system prompt and the last user message.
func reduceContext(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if m.Role == "system" {
			out = append(out, m)
			break
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			out = append(out, messages[i])
			break
		}
	}
	if len(out) == 0 {
		return messages
	}
	return out
}
