package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/converse/internal/assistant"
	"github.com/mohammad-safakhou/converse/internal/audit"
	"github.com/mohammad-safakhou/converse/internal/search"
	"github.com/mohammad-safakhou/converse/internal/session/inmemory"
	"github.com/mohammad-safakhou/converse/internal/telemetry"
	"github.com/mohammad-safakhou/converse/internal/utility"
	"github.com/mohammad-safakhou/converse/provider"
	"github.com/mohammad-safakhou/converse/tools"
)

type noopChat struct{}

func (noopChat) Chat(context.Context, []provider.Message, provider.Options) (provider.Result, error) {
	return provider.Result{Content: `{"name":""}`}, nil
}

type noopInvoker struct{}

func (noopInvoker) Call(_ context.Context, name string, _ json.RawMessage) (string, error) {
	return "", fmt.Errorf("%w: %s", tools.ErrUnknownOperation, name)
}

func testHandlers() *handlers {
	logger := log.New(io.Discard, "", 0)
	store := inmemory.NewStore()
	orch := search.NewOrchestrator(noopChat{}, noopInvoker{}, store, audit.NopSink{}, search.Options{}, logger)
	tele := telemetry.New(logger)
	a := assistant.New(utility.NewHandler(noopInvoker{}, logger), orch, store, tele, logger)
	return &handlers{assistant: a, tele: tele}
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := testHandlers()
	h.register(e)

	body := strings.NewReader(`{"text":"what is 2+2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/c1/messages", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Response.Text, "4") {
		t.Fatalf("unexpected answer: %q", resp.Response.Text)
	}
}

func TestPostMessageRejectsEmptyText(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := testHandlers()
	h.register(e)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/c1/messages", strings.NewReader(`{"text":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestResetConversation(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := testHandlers()
	h.register(e)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/c1/reset", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOpsMetrics(t *testing.T) {
	t.Parallel()

	e := echo.New()
	h := testHandlers()
	h.register(e)

	req := httptest.NewRequest(http.MethodGet, "/api/ops/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap telemetry.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
}
