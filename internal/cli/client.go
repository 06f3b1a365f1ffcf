package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ConfigurationSummary — элемент списка конфигураций.
type ConfigurationSummary struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// ConfigurationResponse — конфигурация из API.
type ConfigurationResponse struct {
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// LaunchFunctionResponse — launch-функция из API.
type LaunchFunctionResponse struct {
	Namespace   string         `json:"namespace"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Spec        map[string]any `json:"spec"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// Kind возвращает вид launch-функции.
func (f LaunchFunctionResponse) Kind() string {
	kind, _ := f.Spec["kind"].(string)
	return kind
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string         `json:"id"`
	Namespace      string         `json:"namespace"`
	LaunchFunction string         `json:"launch_function"`
	Status         string         `json:"status"`
	Input          map[string]any `json:"input,omitempty"`
	Output         any            `json:"output,omitempty"`
	Terminal       string         `json:"terminal,omitempty"`
	Error          map[string]any `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	StartedAt      string         `json:"started_at,omitempty"`
	FinishedAt     string         `json:"finished_at,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// ErrorKind возвращает вид ошибки run ("" если ошибки нет).
func (r RunResponse) ErrorKind() string {
	kind, _ := r.Error["Error"].(string)
	return kind
}

// NodeResponse — история узла из API.
type NodeResponse struct {
	NodeID     string         `json:"node_id"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	Branch     *int           `json:"branch,omitempty"`
	Token      string         `json:"token,omitempty"`
	Output     any            `json:"output,omitempty"`
	Error      map[string]any `json:"error,omitempty"`
	StartedAt  string         `json:"started_at,omitempty"`
	FinishedAt string         `json:"finished_at,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
}

// --- Request types ---

// StartRunRequest — запуск launch-функции.
type StartRunRequest struct {
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Namespace      string
	LaunchFunction string
	Status         string
	Limit          int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Launchpad API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Configurations ---

// ListConfigurations возвращает конфигурации. Пустой namespace — все.
func (c *Client) ListConfigurations(namespace string) ([]ConfigurationSummary, error) {
	params := url.Values{}
	if namespace != "" {
		params.Set("namespace", namespace)
	}
	var configs []ConfigurationSummary
	err := c.list("/api/v1/configurations", params, &configs)
	return configs, err
}

// GetConfiguration возвращает конфигурацию с документом.
func (c *Client) GetConfiguration(namespace, name string) (*ConfigurationResponse, error) {
	var cfg ConfigurationResponse
	err := c.get(refPath("/api/v1/configurations", namespace, name), &cfg)
	return &cfg, err
}

// PutConfiguration сохраняет конфигурацию. body содержит definition или record.
func (c *Client) PutConfiguration(namespace, name string, body map[string]any) (*ConfigurationResponse, error) {
	var cfg ConfigurationResponse
	err := c.put(refPath("/api/v1/configurations", namespace, name), body, &cfg)
	return &cfg, err
}

// DeleteConfiguration удаляет конфигурацию.
func (c *Client) DeleteConfiguration(namespace, name string) error {
	return c.delete(refPath("/api/v1/configurations", namespace, name))
}

// ResolveConfiguration возвращает итоговую конфигурацию кластера.
func (c *Client) ResolveConfiguration(namespace, name string, overrides map[string]any) (map[string]any, error) {
	var resp struct {
		Configuration map[string]any `json:"configuration"`
	}
	body := map[string]any{"overrides": overrides}
	err := c.post(refPath("/api/v1/configurations", namespace, name)+"/resolve", body, &resp)
	return resp.Configuration, err
}

// --- Launch functions ---

// ListLaunchFunctions возвращает launch-функции. Пустой namespace — все.
func (c *Client) ListLaunchFunctions(namespace string) ([]LaunchFunctionResponse, error) {
	params := url.Values{}
	if namespace != "" {
		params.Set("namespace", namespace)
	}
	var fns []LaunchFunctionResponse
	err := c.list("/api/v1/launch-functions", params, &fns)
	return fns, err
}

// GetLaunchFunction возвращает launch-функцию.
func (c *Client) GetLaunchFunction(namespace, name string) (*LaunchFunctionResponse, error) {
	var fn LaunchFunctionResponse
	err := c.get(refPath("/api/v1/launch-functions", namespace, name), &fn)
	return &fn, err
}

// PutLaunchFunction сохраняет launch-функцию.
func (c *Client) PutLaunchFunction(namespace, name string, body map[string]any) (*LaunchFunctionResponse, error) {
	var fn LaunchFunctionResponse
	err := c.put(refPath("/api/v1/launch-functions", namespace, name), body, &fn)
	return &fn, err
}

// DeleteLaunchFunction удаляет launch-функцию.
func (c *Client) DeleteLaunchFunction(namespace, name string) error {
	return c.delete(refPath("/api/v1/launch-functions", namespace, name))
}

// --- Runs ---

// StartRun запускает launch-функцию.
func (c *Client) StartRun(namespace, name string, req StartRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post(refPath("/api/v1/launch-functions", namespace, name)+"/runs", req, &run)
	return &run, err
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Namespace != "" {
		params.Set("namespace", opts.Namespace)
	}
	if opts.LaunchFunction != "" {
		params.Set("launch_function", opts.LaunchFunction)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// CancelRun отменяет run.
func (c *Client) CancelRun(id, reason string) (*RunResponse, error) {
	var run RunResponse
	body := map[string]string{"reason": reason}
	err := c.post("/api/v1/runs/"+url.PathEscape(id)+"/cancel", body, &run)
	return &run, err
}

// ListNodes возвращает историю узлов run.
func (c *Client) ListNodes(runID string) ([]NodeResponse, error) {
	var nodes []NodeResponse
	err := c.list("/api/v1/runs/"+url.PathEscape(runID)+"/nodes", nil, &nodes)
	return nodes, err
}

// --- Tokens ---

// CompleteToken завершает асинхронный шаг успешно.
func (c *Client) CompleteToken(token string, output any) error {
	body := map[string]any{"output": output}
	return c.post("/api/v1/tokens/"+url.PathEscape(token)+"/success", body, nil)
}

// FailToken завершает асинхронный шаг ошибкой.
func (c *Client) FailToken(token, errorKind, cause string) error {
	body := map[string]string{"error": errorKind, "cause": cause}
	return c.post("/api/v1/tokens/"+url.PathEscape(token)+"/failure", body, nil)
}

// --- HTTP helpers ---

func refPath(prefix, namespace, name string) string {
	return prefix + "/" + url.PathEscape(namespace) + "/" + url.PathEscape(name)
}

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
