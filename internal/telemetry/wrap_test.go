package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
)

type fixedChat struct {
	tokens int64
	err    error
}

func (f fixedChat) Chat(context.Context, []provider.Message, provider.Options) (provider.Result, error) {
	if f.err != nil {
		return provider.Result{}, f.err
	}
	return provider.Result{Content: "ok", TokensUsed: f.tokens}, nil
}

type fixedInvoker struct {
	err error
}

func (f fixedInvoker) Call(context.Context, string, json.RawMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "done", nil
}

func quietTelemetry() *Telemetry {
	return New(log.New(io.Discard, "", 0))
}

func TestWrapChatCountsTokens(t *testing.T) {
	t.Parallel()

	tele := quietTelemetry()
	chat := WrapChat(fixedChat{tokens: 42}, tele)

	if _, err := chat.Chat(context.Background(), nil, provider.Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := chat.Chat(context.Background(), nil, provider.Options{}); err != nil {
		t.Fatal(err)
	}
	if got := tele.Snapshot().TotalTokens; got != 84 {
		t.Fatalf("TotalTokens = %d, want 84", got)
	}
}

func TestWrapChatSkipsFailedCalls(t *testing.T) {
	t.Parallel()

	tele := quietTelemetry()
	chat := WrapChat(fixedChat{tokens: 42, err: errors.New("boom")}, tele)

	if _, err := chat.Chat(context.Background(), nil, provider.Options{}); err == nil {
		t.Fatal("expected error")
	}
	if got := tele.Snapshot().TotalTokens; got != 0 {
		t.Fatalf("TotalTokens = %d, want 0", got)
	}
}

func TestWrapInvokerCountsByOperationAndOutcome(t *testing.T) {
	t.Parallel()

	tele := quietTelemetry()
	ok := WrapInvoker(fixedInvoker{}, tele)
	bad := WrapInvoker(fixedInvoker{err: errors.New("down")}, tele)

	if _, err := ok.Call(context.Background(), tools.OpWebSearch, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := ok.Call(context.Background(), tools.OpWebSearch, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := bad.Call(context.Background(), tools.OpWebBrowse, nil); err == nil {
		t.Fatal("expected error")
	}

	snap := tele.Snapshot()
	if got := snap.ToolCalls[tools.OpWebSearch+"/ok"]; got != 2 {
		t.Fatalf("%s/ok = %d, want 2", tools.OpWebSearch, got)
	}
	if got := snap.ToolCalls[tools.OpWebBrowse+"/error"]; got != 1 {
		t.Fatalf("%s/error = %d, want 1", tools.OpWebBrowse, got)
	}
}

func TestWrapNilTelemetryPassesThrough(t *testing.T) {
	t.Parallel()

	inner := fixedChat{tokens: 1}
	if got := WrapChat(inner, nil); got != provider.ChatClient(inner) {
		t.Fatal("nil telemetry should return the inner client")
	}
	innerInv := fixedInvoker{}
	if got := WrapInvoker(innerInv, nil); got != tools.Invoker(innerInv) {
		t.Fatal("nil telemetry should return the inner invoker")
	}
}
