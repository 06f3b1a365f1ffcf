package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/mq"
)

// --- Test helpers ---

type recordingPublisher struct {
	mu   sync.Mutex
	sent []mq.StepCompletedPayload
	err  error
}

func (p *recordingPublisher) PublishStepCompleted(_ context.Context, payload mq.StepCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, payload)
	return p.err
}

func (p *recordingPublisher) last(t *testing.T) mq.StepCompletedPayload {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sent) == 0 {
		t.Fatal("expected a published completion")
	}
	return p.sent[len(p.sent)-1]
}

type executorFunc func(ctx context.Context, step *Step) (*ExecutionResult, error)

func (f executorFunc) Execute(ctx context.Context, step *Step) (*ExecutionResult, error) {
	return f(ctx, step)
}

type memoryClusters struct {
	mu       sync.Mutex
	clusters map[string]*domain.Cluster
}

func (m *memoryClusters) Put(_ context.Context, c *domain.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clusters == nil {
		m.clusters = make(map[string]*domain.Cluster)
	}
	m.clusters[c.Name] = c
	return nil
}

// --- HTTPExecutor Tests ---

func TestHTTPExecutor_GET_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("X-Custom", "test-value")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"result": "ok"})
	}))
	defer server.Close()

	executor := &HTTPExecutor{}
	step := &Step{Payload: map[string]any{"method": "GET", "url": server.URL}}

	result, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected execution error: %s", result.Error)
	}

	outputs := result.Output.(map[string]any)
	if outputs["status_code"] != http.StatusOK {
		t.Errorf("expected status 200, got %v", outputs["status_code"])
	}
	headers, ok := outputs["headers"].(map[string]string)
	if !ok || headers["X-Custom"] != "test-value" {
		t.Errorf("expected X-Custom header, got %v", outputs["headers"])
	}
	body, ok := outputs["body"].(map[string]any)
	if !ok || body["result"] != "ok" {
		t.Errorf("expected parsed JSON body, got %#v", outputs["body"])
	}
}

func TestHTTPExecutor_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal"}`))
	}))
	defer server.Close()

	result, err := (&HTTPExecutor{}).Execute(context.Background(), &Step{Payload: map[string]any{"url": server.URL}})
	if err != nil {
		t.Fatalf("HTTP errors should not be infrastructure errors: %v", err)
	}
	if !result.Failed() {
		t.Error("expected execution error for 500")
	}
	if result.Output.(map[string]any)["status_code"] != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %v", result.Output)
	}
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	step := &Step{Payload: map[string]any{"url": server.URL, "timeout_sec": 0.1}}
	if _, err := (&HTTPExecutor{}).Execute(context.Background(), step); err == nil {
		t.Error("expected error for timeout")
	}
}

func TestHTTPExecutor_MissingURL(t *testing.T) {
	_, err := (&HTTPExecutor{}).Execute(context.Background(), &Step{Payload: map[string]any{"method": "GET"}})
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("expected ErrHTTPRequest, got %v", err)
	}
}

// --- ForwardExecutor Tests ---

func TestForwardExecutor_Deferred(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	executor := &ForwardExecutor{URL: server.URL}
	step := &Step{
		RunID:   "run-1",
		NodeID:  "Start Cluster",
		Token:   "tok-1",
		Raw:     map[string]any{"ClusterConfig": map[string]any{"Name": "etl"}},
		Payload: map[string]any{},
	}

	result, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Deferred {
		t.Error("forwarded step should be deferred")
	}
	if received["TaskToken"] != "tok-1" || received["NodeId"] != "Start Cluster" {
		t.Errorf("receiver should get token and node, got %#v", received)
	}
}

func TestForwardExecutor_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	result, err := (&ForwardExecutor{}).Execute(context.Background(), &Step{Payload: map[string]any{"url": server.URL}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deferred || !result.Failed() {
		t.Errorf("rejected forward must fail, got %+v", result)
	}
}

// --- DelayExecutor Tests ---

func TestDelayExecutor_PassesInputThrough(t *testing.T) {
	payload := map[string]any{"seconds": 0.05, "ClusterId": "j-1"}
	start := time.Now()
	result, err := (&DelayExecutor{}).Execute(context.Background(), &Step{Payload: payload, Raw: payload})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output.(map[string]any)["ClusterId"] != "j-1" {
		t.Errorf("input should pass through, got %v", result.Output)
	}
	if elapsed < 40*time.Millisecond {
		t.Error("should have waited at least 40ms")
	}
}

func TestDelayExecutor_UntilInPast(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := &DelayExecutor{Now: func() time.Time { return now }}

	result, err := e.Execute(context.Background(), &Step{Payload: map[string]any{"until": "2024-05-01T11:00:00Z"}})
	if err != nil || result.Failed() {
		t.Fatalf("past timestamp should not wait: %v %+v", err, result)
	}
}

func TestDelayExecutor_InvalidPayload(t *testing.T) {
	tests := []map[string]any{
		{"until": "tomorrow"},
		{"seconds": "ten"},
	}
	for _, payload := range tests {
		result, err := (&DelayExecutor{}).Execute(context.Background(), &Step{Payload: payload})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Failed() {
			t.Errorf("payload %v should fail", payload)
		}
	}
}

func TestDelayExecutor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&DelayExecutor{}).Execute(ctx, &Step{Payload: map[string]any{"seconds": 10.0}}); err == nil {
		t.Error("expected context canceled error")
	}
}

// --- StartClusterExecutor Tests ---

func TestStartClusterExecutor(t *testing.T) {
	store := &memoryClusters{}
	executor := &StartClusterExecutor{
		Store: store,
		NewID: func() string { return "j-TEST" },
	}
	step := &Step{
		RunID:   "5f0c7a8e-3a1b-4c2d-9e8f-001122334455",
		Payload: map[string]any{"ClusterConfig": map[string]any{"Name": "etl"}},
	}

	result, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Output.(map[string]any)
	if out["ClusterId"] != "j-TEST" || out["ClusterName"] != "etl" {
		t.Errorf("unexpected output %#v", out)
	}

	c := store.clusters["etl"]
	if c == nil || c.Status != domain.ClusterStatusRunning || c.RunID == nil {
		t.Errorf("cluster should be recorded as running, got %+v", c)
	}
}

func TestStartClusterExecutor_MissingName(t *testing.T) {
	result, err := (&StartClusterExecutor{Store: &memoryClusters{}}).Execute(context.Background(), &Step{Payload: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Failed() {
		t.Error("missing cluster name must fail the step")
	}
}

func TestNewClusterID(t *testing.T) {
	id := newClusterID()
	if len(id) != 15 || id[:2] != "j-" {
		t.Errorf("unexpected cluster id %q", id)
	}
}

// --- HandlerExecutor Tests ---

func TestHandlerExecutor_TaskError(t *testing.T) {
	executor := &HandlerExecutor{Handler: func(context.Context, any) (any, error) {
		return nil, &invoke.TaskError{Kind: "ClusterRunningError", Cause: "running"}
	}}

	result, err := executor.Execute(context.Background(), &Step{})
	if err != nil {
		t.Fatalf("task errors are logical, got %v", err)
	}
	if result.ErrorKind != "ClusterRunningError" || result.Error != "running" {
		t.Errorf("unexpected result %+v", result)
	}
}

// --- Registry Tests ---

func TestNewRegistry_DefaultExecutors(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"http", "forward", "delay", "echo"} {
		if _, err := r.Get(name); err != nil {
			t.Errorf("expected executor for %s, got error: %v", name, err)
		}
	}
}

func TestRegistry_UnknownExecutor(t *testing.T) {
	if _, err := NewRegistry().Get("unknown"); !errors.Is(err, ErrUnknownExecutor) {
		t.Errorf("expected ErrUnknownExecutor, got %v", err)
	}
}

// --- Backoff Tests ---

func TestCalculateBackoff_Exponential(t *testing.T) {
	policy := &RetryPolicy{
		Backoff:      "exponential",
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped at max
		{6, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, policy); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoff_Fixed(t *testing.T) {
	policy := &RetryPolicy{Backoff: "fixed", InitialDelay: 2 * time.Second}
	for attempt := 1; attempt <= 5; attempt++ {
		if got := calculateBackoff(attempt, policy); got != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %v", attempt, got)
		}
	}
}

func TestCalculateBackoff_NilPolicy(t *testing.T) {
	if got := calculateBackoff(1, nil); got != time.Second {
		t.Errorf("expected 1s default, got %v", got)
	}
}

func TestShouldRetryHTTPStatus(t *testing.T) {
	onStatus := []int{500, 502, 503}
	if !shouldRetryHTTPStatus(502, onStatus) {
		t.Error("502 should be retriable")
	}
	if shouldRetryHTTPStatus(404, onStatus) {
		t.Error("404 should not be retriable")
	}
}

func TestShouldRetry_OnStatus(t *testing.T) {
	policy := &RetryPolicy{OnStatus: []int{503}}
	unavailable := &ExecutionResult{Output: map[string]any{"status_code": 503}, Error: "HTTP 503"}
	notFound := &ExecutionResult{Output: map[string]any{"status_code": 404}, Error: "HTTP 404"}

	if !shouldRetry(unavailable, nil, policy) {
		t.Error("503 should be retried")
	}
	if shouldRetry(notFound, nil, policy) {
		t.Error("404 should not be retried")
	}
	if shouldRetry(nil, context.DeadlineExceeded, policy) {
		t.Error("expired step timeout should not be retried")
	}
}

// --- Worker Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})
	if w.prefetch != defaultPrefetch {
		t.Errorf("expected default prefetch %d, got %d", defaultPrefetch, w.prefetch)
	}
	if w.registry == nil {
		t.Error("registry should be initialized")
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{})
	if w.IsStopped() {
		t.Error("should not be stopped initially")
	}
	w.Stop()
	if !w.IsStopped() {
		t.Error("should be stopped")
	}
}

func TestProcessStep_Success(t *testing.T) {
	pub := &recordingPublisher{}
	w := New(Config{Publisher: pub})

	err := w.processStep(context.Background(), mq.StepInvokePayload{
		RunID:    "run-1",
		NodeID:   "Echo",
		Resource: "queue:echo",
		Token:    "tok-1",
		Payload:  map[string]any{"n": 1.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := pub.last(t)
	if c.Token != "tok-1" || c.Error != "" {
		t.Errorf("unexpected completion %+v", c)
	}
	if c.Output.(map[string]any)["n"] != 1.0 {
		t.Errorf("echo should return payload, got %#v", c.Output)
	}
}

func TestProcessStep_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry()
	reg.Register("flaky", executorFunc(func(context.Context, *Step) (*ExecutionResult, error) {
		calls.Add(1)
		return &ExecutionResult{Error: "still broken"}, nil
	}))

	pub := &recordingPublisher{}
	w := New(Config{
		Publisher: pub,
		Registry:  reg,
		Retry:     &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond},
	})

	if err := w.processStep(context.Background(), mq.StepInvokePayload{Resource: "queue:flaky", Token: "tok-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	c := pub.last(t)
	if c.Error != invoke.ErrorTaskFailed || c.Cause != "still broken" {
		t.Errorf("unexpected completion %+v", c)
	}
}

func TestProcessStep_Timeout(t *testing.T) {
	pub := &recordingPublisher{}
	w := New(Config{Publisher: pub})

	err := w.processStep(context.Background(), mq.StepInvokePayload{
		Resource:   "queue:delay",
		Token:      "tok-1",
		Payload:    map[string]any{"seconds": 5.0},
		TimeoutSec: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := pub.last(t); c.Error != invoke.ErrorTimeout {
		t.Errorf("expected %s completion, got %+v", invoke.ErrorTimeout, c)
	}
}

func TestProcessStep_UnknownExecutor(t *testing.T) {
	pub := &recordingPublisher{}
	w := New(Config{Publisher: pub})

	if err := w.processStep(context.Background(), mq.StepInvokePayload{Resource: "queue:nope", Token: "tok-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := pub.last(t); c.Error != invoke.ErrorTaskFailed {
		t.Errorf("unknown executor should fail the step, got %+v", c)
	}
}

func TestProcessStep_Invalid(t *testing.T) {
	w := New(Config{Publisher: &recordingPublisher{}})
	if err := w.processStep(context.Background(), mq.StepInvokePayload{Resource: "queue:echo"}); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}
}

func TestProcessStep_PublishFailure(t *testing.T) {
	w := New(Config{Publisher: &recordingPublisher{err: errors.New("channel closed")}})
	if err := w.processStep(context.Background(), mq.StepInvokePayload{Resource: "queue:echo", Token: "tok-1"}); err == nil {
		t.Error("publish failure should requeue the step")
	}
}
