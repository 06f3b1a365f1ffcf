package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPRequest — тело запроса HTTP-вызова.
type HTTPRequest struct {
	RunID   string `json:"run_id"`
	NodeID  string `json:"node_id"`
	Token   string `json:"token,omitempty"`
	Payload any    `json:"payload"`
}

// HTTP вызывает внешний endpoint: POST JSON HTTPRequest на URL ресурса.
//
// Синхронный вызов возвращает разобранное JSON-тело ответа. Для
// асинхронного вызова ответ 2xx означает, что работа принята, а
// завершение придёт по токену. Статус >= 400 — TaskError.
type HTTP struct {
	client  *http.Client
	headers map[string]string
}

// HTTPConfig — конфигурация HTTP-вызова.
type HTTPConfig struct {
	Client  *http.Client      // nil — клиент с таймаутом 30s
	Headers map[string]string // дополнительные заголовки
}

// NewHTTP создаёт HTTP Invoker.
func NewHTTP(cfg HTTPConfig) *HTTP {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTP{client: client, headers: cfg.Headers}
}

// Invoke выполняет POST запрос.
func (h *HTTP) Invoke(ctx context.Context, req *Request) (any, error) {
	body, err := json.Marshal(HTTPRequest{
		RunID:   req.RunID,
		NodeID:  req.NodeID,
		Token:   req.Token,
		Payload: req.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Resource, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TaskError{Kind: ErrorTimeout, Cause: err.Error()}
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &TaskError{
			Kind:       ErrorTaskFailed,
			Cause:      fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
			StatusCode: resp.StatusCode,
		}
	}
	if req.Async() {
		return nil, nil
	}
	return parseBody(resp.Header.Get("Content-Type"), data), nil
}

// parseBody разбирает JSON-ответ; прочие ответы возвращаются строкой.
func parseBody(contentType string, data []byte) any {
	if len(data) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		var body any
		if err := json.Unmarshal(data, &body); err == nil {
			return body
		}
	}
	return string(data)
}
