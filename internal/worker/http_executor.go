package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPExecutor — executor "http": синхронный HTTP-запрос, ответ
// становится результатом шага.
//
// Payload:
//   - method (string): HTTP-метод. Default: GET
//   - url (string): URL для запроса (обязательно)
//   - headers (map[string]any): HTTP-заголовки
//   - body (any): тело запроса (сериализуется в JSON)
//   - timeout_sec (number): таймаут запроса в секундах. Default: 30
//
// Output:
//   - status_code (int): HTTP-код ответа
//   - headers (map[string]string): заголовки ответа
//   - body (any): тело ответа (JSON или строка)
type HTTPExecutor struct {
	// Client — HTTP-клиент; nil — http.DefaultClient.
	Client *http.Client
}

// Execute выполняет HTTP-запрос.
func (e *HTTPExecutor) Execute(ctx context.Context, step *Step) (*ExecutionResult, error) {
	method := getString(step.Payload, "method", http.MethodGet)
	url := getString(step.Payload, "url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrHTTPRequest)
	}

	var body any
	if b, ok := step.Payload["body"]; ok {
		body = b
	}
	return doRequest(ctx, e.Client, method, url, getTimeout(step.Payload), step.Payload, body)
}

// ForwardExecutor — executor "forward": передаёт шаг внешней системе
// вместе с токеном. Внешняя система завершает шаг через API токенов,
// поэтому успешная передача не публикует step.completed.
//
// Payload:
//   - url (string): адрес получателя; пусто — ForwardExecutor.URL
//   - headers (map[string]any): HTTP-заголовки
//
// Тело запроса: {"TaskToken", "RunId", "NodeId", "Payload"}.
type ForwardExecutor struct {
	URL    string
	Client *http.Client
}

// Execute передаёт шаг получателю.
func (e *ForwardExecutor) Execute(ctx context.Context, step *Step) (*ExecutionResult, error) {
	url := getString(step.Payload, "url", e.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: forward url is required", ErrHTTPRequest)
	}

	body := map[string]any{
		"TaskToken": step.Token,
		"RunId":     step.RunID,
		"NodeId":    step.NodeID,
		"Payload":   step.Raw,
	}
	result, err := doRequest(ctx, e.Client, http.MethodPost, url, getTimeout(step.Payload), step.Payload, body)
	if err != nil || result.Failed() {
		return result, err
	}
	result.Deferred = true
	return result, nil
}

// doRequest выполняет запрос; HTTP >= 400 — логическая ошибка
// (выход сохраняется для retry по status_code).
func doRequest(ctx context.Context, client *http.Client, method, url string, timeout time.Duration, payload map[string]any, body any) (*ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrHTTPRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}
	setHeaders(req, payload)
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	outputs := buildOutputs(resp, respBody)
	if resp.StatusCode >= 400 {
		return &ExecutionResult{
			Output: outputs,
			Error:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}, nil
	}
	return &ExecutionResult{Output: outputs}, nil
}

// buildOutputs формирует выход из HTTP-ответа.
func buildOutputs(resp *http.Response, body []byte) map[string]any {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// JSON, иначе строка
	var parsedBody any
	if err := json.Unmarshal(body, &parsedBody); err != nil {
		parsedBody = string(body)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsedBody,
	}
}

// getString извлекает строку из map с default значением.
func getString(m map[string]any, key, defaultVal string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return defaultVal
}

// getTimeout извлекает таймаут запроса из payload.
func getTimeout(payload map[string]any) time.Duration {
	switch v := payload["timeout_sec"].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return defaultHTTPTimeout
}

// setHeaders устанавливает заголовки из payload.
func setHeaders(req *http.Request, payload map[string]any) {
	switch h := payload["headers"].(type) {
	case map[string]any:
		for key, val := range h {
			if s, ok := val.(string); ok {
				req.Header.Set(key, s)
			}
		}
	case map[string]string:
		for key, val := range h {
			req.Header.Set(key, val)
		}
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
