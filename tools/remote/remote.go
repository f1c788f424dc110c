package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/converse/tools"
)

// Invoker calls a remote tool-execution service over HTTP. The wire contract
// is deliberately narrow: POST a named operation with JSON arguments, read a
// JSON or text result, possibly fail.
type Invoker struct {
	endpoint   string
	httpClient *http.Client
}

func NewInvoker(endpoint string, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Invoker{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type invokeRequest struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type invokeError struct {
	Error string `json:"error"`
}

func (r *Invoker) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	body, err := json.Marshal(invokeRequest{Name: name, Args: args})
	if err != nil {
		return "", fmt.Errorf("marshal invoke request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool service: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("tool service read: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", tools.ErrUnknownOperation, name)
	}
	if resp.StatusCode != http.StatusOK {
		var payload invokeError
		if json.Unmarshal(out, &payload) == nil && strings.Contains(strings.ToLower(payload.Error), "unknown operation") {
			return "", fmt.Errorf("%w: %s", tools.ErrUnknownOperation, name)
		}
		return "", fmt.Errorf("tool service status %d: %s", resp.StatusCode, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
