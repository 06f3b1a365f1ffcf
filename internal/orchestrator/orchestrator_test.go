package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/coordinator"
	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/pipeline"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// --- Test helpers ---

type memoryRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*domain.Run
}

func newMemoryRuns(runs ...*domain.Run) *memoryRuns {
	m := &memoryRuns{runs: make(map[uuid.UUID]*domain.Run)}
	for _, r := range runs {
		m.runs[r.ID] = r
	}
	return m
}

func (m *memoryRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryRuns) Start(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs[run.ID].Status != domain.RunStatusPending {
		return repo.ErrInvalidState
	}
	run.MarkRunning()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memoryRuns) Update(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memoryRuns) CancelPending(_ context.Context, run *domain.Run, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs[run.ID].Status != domain.RunStatusPending {
		return repo.ErrInvalidState
	}
	run.MarkCancelled(reason)
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memoryRuns) ListPending(_ context.Context, limit int) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Run
	for _, r := range m.runs {
		if r.Status == domain.RunStatusPending && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memoryRuns) status(id uuid.UUID) domain.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id].Status
}

type memoryFunctions map[string]*domain.LaunchFunction

func (m memoryFunctions) Get(_ context.Context, namespace, name string) (*domain.LaunchFunction, error) {
	fn, ok := m[namespace+"/"+name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return fn, nil
}

type memoryConfigs map[string]*domain.Configuration

func (m memoryConfigs) Get(_ context.Context, namespace, name string) (*domain.Configuration, error) {
	cfg, ok := m[namespace+"/"+name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cfg, nil
}

type memoryNodes struct {
	mu    sync.Mutex
	nodes map[string]domain.NodeExecution
}

func (m *memoryNodes) Upsert(_ context.Context, ne *domain.NodeExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes == nil {
		m.nodes = make(map[string]domain.NodeExecution)
	}
	m.nodes[ne.NodeID] = *ne
	return nil
}

func (m *memoryNodes) get(id string) (domain.NodeExecution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ne, ok := m.nodes[id]
	return ne, ok
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []mq.StepCompletedPayload
}

func (p *recordingPublisher) PublishStepCompleted(_ context.Context, payload mq.StepCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, payload)
	return nil
}

// pipelineFunction — конвейер из одного шага echo.
func pipelineFunction() *domain.LaunchFunction {
	return &domain.LaunchFunction{
		Namespace: "analytics",
		Name:      "nightly",
		Spec: domain.LaunchSpec{
			Kind: domain.KindPipeline,
			Phases: []domain.Phase{{Name: "Prepare", Steps: []domain.Step{
				{Name: "echo", Resource: "local:echo", Parameters: map[string]any{"day.$": "$.day"}},
			}}},
		},
	}
}

// launchFunction — launch-cluster с асинхронным шагом start-cluster.
func launchFunction(t *testing.T) (*domain.LaunchFunction, memoryConfigs) {
	t.Helper()
	b, err := clusterconfig.New(context.Background(), clusterconfig.Inputs{Name: "etl", Namespace: "analytics"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := json.Marshal(b.Record())
	if err != nil {
		t.Fatal(err)
	}
	fn := &domain.LaunchFunction{
		Namespace: "analytics",
		Name:      "start-etl",
		Spec: domain.LaunchSpec{
			Kind:            domain.KindLaunchCluster,
			Configuration:   "etl",
			StartTimeoutSec: 5,
			Endpoints:       domain.Endpoints{StartCluster: "queue:start-cluster"},
		},
	}
	return fn, memoryConfigs{"analytics/etl": {Namespace: "analytics", Name: "etl", Document: doc}}
}

func newTestOrchestrator(t *testing.T, runs *memoryRuns, functions memoryFunctions, configs memoryConfigs, queue invoke.Invoker, nodes *memoryNodes) *Orchestrator {
	t.Helper()
	reg := invoke.NewRegistry(nil)
	pipeline.Register(reg, nil, nil)

	router := invoke.NewRouter().Handle("local", reg)
	if queue != nil {
		router.Handle("queue", queue)
	}

	var observer coordinator.Observer
	if nodes != nil {
		observer = NewRecorder(nodes, nil)
	}
	coord := coordinator.New(coordinator.Config{Invoker: router, Observer: observer})
	reg.SetCompleter(coord)

	return New(Config{
		Runs:        runs,
		Functions:   functions,
		Configs:     configs,
		Coordinator: coord,
		Publisher:   &recordingPublisher{},
	})
}

// --- Orchestrator Tests ---

func TestNew(t *testing.T) {
	o := New(Config{})
	if o.pollInterval != defaultPollInterval || o.batchSize != defaultBatchSize || o.maxHops != defaultMaxHops {
		t.Errorf("unexpected defaults: %v %d %d", o.pollInterval, o.batchSize, o.maxHops)
	}
	if o.coord == nil {
		t.Error("coordinator should be initialized")
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	o := New(Config{})
	if o.IsStopped() {
		t.Error("should not be stopped initially")
	}
	o.Stop()
	if !o.IsStopped() {
		t.Error("should be stopped")
	}
}

func TestProcessRun_Pipeline(t *testing.T) {
	run := domain.NewRun("analytics", "nightly", map[string]any{"day": "2026-10-19"})
	runs := newMemoryRuns(run)
	nodes := &memoryNodes{}
	o := newTestOrchestrator(t, runs, memoryFunctions{"analytics/nightly": pipelineFunction()}, nil, nil, nodes)

	if err := o.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	o.Wait()

	got, _ := runs.GetByID(context.Background(), run.ID)
	if got.Status != domain.RunStatusSucceeded || got.Terminal != pipeline.NodePipelineSucceeded {
		t.Fatalf("expected success, got %s at %s (%v)", got.Status, got.Terminal, got.Error)
	}
	result := got.Output.(map[string]any)["Result"].(map[string]any)
	if result["Prepare"].([]any)[0].(map[string]any)["day"] != "2026-10-19" {
		t.Errorf("unexpected output %#v", got.Output)
	}

	ne, ok := nodes.get("echo")
	if !ok || ne.Status != domain.NodeStatusSucceeded || ne.Branch == nil || *ne.Branch != 0 {
		t.Errorf("echo execution should be recorded, got %+v", ne)
	}
}

func TestProcessRun_NotPending(t *testing.T) {
	run := domain.NewRun("analytics", "nightly", nil)
	run.Status = domain.RunStatusRunning
	o := newTestOrchestrator(t, newMemoryRuns(run), memoryFunctions{}, nil, nil, nil)

	if err := o.processRun(context.Background(), run.ID); err != ErrRunNotPending {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}
}

func TestProcessRun_MissingFunction(t *testing.T) {
	run := domain.NewRun("analytics", "missing", nil)
	runs := newMemoryRuns(run)
	o := newTestOrchestrator(t, runs, memoryFunctions{}, nil, nil, nil)

	if err := o.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := runs.GetByID(context.Background(), run.ID)
	if got.Status != domain.RunStatusFailed || got.Error["Error"] != ErrorRuntime {
		t.Errorf("expected runtime failure, got %s (%v)", got.Status, got.Error)
	}
}

func TestProcessRun_LaunchClusterAsync(t *testing.T) {
	fn, configs := launchFunction(t)
	run := domain.NewRun("analytics", "start-etl", nil)
	runs := newMemoryRuns(run)

	var o *Orchestrator
	queue := invoke.Func(func(_ context.Context, req *invoke.Request) (any, error) {
		go func() {
			// Завершение приходит через steps.completed.
			_ = o.processStepCompleted(context.Background(), mq.StepCompletedPayload{
				Token:  req.Token,
				Output: map[string]any{"ClusterId": "j-1"},
			})
		}()
		return nil, nil
	})
	o = newTestOrchestrator(t, runs, memoryFunctions{"analytics/start-etl": fn}, configs, queue, nil)

	if err := o.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	o.Wait()

	got, _ := runs.GetByID(context.Background(), run.ID)
	if got.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected success, got %s (%v)", got.Status, got.Error)
	}
	if got.Output.(map[string]any)["Result"].(map[string]any)["ClusterId"] != "j-1" {
		t.Errorf("unexpected output %#v", got.Output)
	}
}

func TestCancelRun_Active(t *testing.T) {
	fn, configs := launchFunction(t)
	run := domain.NewRun("analytics", "start-etl", nil)
	runs := newMemoryRuns(run)

	invoked := make(chan struct{})
	queue := invoke.Func(func(context.Context, *invoke.Request) (any, error) {
		close(invoked)
		return nil, nil
	})
	o := newTestOrchestrator(t, runs, memoryFunctions{"analytics/start-etl": fn}, configs, queue, nil)

	if err := o.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("start cluster was not invoked")
	}

	if err := o.CancelRun(context.Background(), run.ID, "operator request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	o.Wait()

	got, _ := runs.GetByID(context.Background(), run.ID)
	if got.Status != domain.RunStatusCancelled || got.Error["Cause"] != "operator request" {
		t.Errorf("expected cancelled run, got %s (%v)", got.Status, got.Error)
	}
}

func TestCancelRun_Pending(t *testing.T) {
	run := domain.NewRun("analytics", "nightly", nil)
	runs := newMemoryRuns(run)
	o := newTestOrchestrator(t, runs, memoryFunctions{}, nil, nil, nil)

	if err := o.CancelRun(context.Background(), run.ID, "not needed"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if runs.status(run.ID) != domain.RunStatusCancelled {
		t.Errorf("pending run should be cancelled, got %s", runs.status(run.ID))
	}
}

func TestCancelRun_Unknown(t *testing.T) {
	o := newTestOrchestrator(t, newMemoryRuns(), memoryFunctions{}, nil, nil, nil)
	if err := o.CancelRun(context.Background(), uuid.New(), ""); err != nil {
		t.Errorf("unknown run should be ignored, got %v", err)
	}
}

func TestPoll_PicksUpPendingRuns(t *testing.T) {
	var ids []uuid.UUID
	var runs []*domain.Run
	for i := 0; i < 3; i++ {
		r := domain.NewRun("analytics", "nightly", map[string]any{"day": fmt.Sprint(i)})
		ids = append(ids, r.ID)
		runs = append(runs, r)
	}
	store := newMemoryRuns(runs...)
	o := newTestOrchestrator(t, store, memoryFunctions{"analytics/nightly": pipelineFunction()}, nil, nil, nil)

	o.poll(context.Background())
	o.Wait()

	for _, id := range ids {
		if s := store.status(id); s != domain.RunStatusSucceeded {
			t.Errorf("run %s: expected SUCCEEDED, got %s", id, s)
		}
	}
}

func TestProcessStepCompleted_Republish(t *testing.T) {
	pub := &recordingPublisher{}
	o := New(Config{Publisher: pub, MaxHops: 2})

	if err := o.processStepCompleted(context.Background(), mq.StepCompletedPayload{Token: "foreign"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.sent) != 1 || pub.sent[0].Hops != 1 {
		t.Fatalf("completion should be republished once, got %+v", pub.sent)
	}

	// После MaxHops завершение доставляется локально и отбрасывается как аномалия.
	if err := o.processStepCompleted(context.Background(), mq.StepCompletedPayload{Token: "foreign", Hops: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Errorf("completion over the hop limit must not be republished, got %d", len(pub.sent))
	}
}

// --- Recorder Tests ---

func TestNodeExecution(t *testing.T) {
	runID := uuid.New()
	now := time.Now()

	ne, ok := nodeExecution(coordinator.NodeEvent{
		RunID:   runID.String(),
		NodeID:  "A",
		Kind:    workflow.KindTask,
		Status:  coordinator.NodeFailed,
		Branch:  -1,
		Failure: workflow.NewFailure("A", workflow.ErrorTaskFailed, fmt.Errorf("boom")),
		Time:    now,
	})
	if !ok {
		t.Fatal("expected conversion")
	}
	if ne.Branch != nil || ne.FinishedAt == nil || ne.StartedAt != nil {
		t.Errorf("unexpected execution %+v", ne)
	}
	if ne.Error["Cause"] != "boom" || ne.Status != domain.NodeStatusFailed {
		t.Errorf("unexpected error payload %#v", ne.Error)
	}

	if _, ok := nodeExecution(coordinator.NodeEvent{RunID: "run-1"}); ok {
		t.Error("non-UUID runs should not be recorded")
	}
}
