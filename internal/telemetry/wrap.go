package telemetry

import (
	"context"
	"encoding/json"

	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
)

// WrapChat decorates a chat client so every call's reported token usage
// lands in the token counters.
func WrapChat(inner provider.ChatClient, t *Telemetry) provider.ChatClient {
	if t == nil {
		return inner
	}
	return &countingChat{inner: inner, tele: t}
}

type countingChat struct {
	inner provider.ChatClient
	tele  *Telemetry
}

func (c *countingChat) Chat(ctx context.Context, messages []provider.Message, opts provider.Options) (provider.Result, error) {
	res, err := c.inner.Chat(ctx, messages, opts)
	if err == nil {
		c.tele.RecordTokens(res.TokensUsed)
	}
	return res, err
}

// WrapInvoker decorates a tool invoker so every operation is counted by
// name and outcome.
func WrapInvoker(inner tools.Invoker, t *Telemetry) tools.Invoker {
	if t == nil {
		return inner
	}
	return &countingInvoker{inner: inner, tele: t}
}

type countingInvoker struct {
	inner tools.Invoker
	tele  *Telemetry
}

func (ci *countingInvoker) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	out, err := ci.inner.Call(ctx, name, args)
	ci.tele.RecordToolCall(name, err)
	return out, err
}
