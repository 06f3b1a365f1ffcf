package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/coordinator"
	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// --- Test helpers ---

func testRecord(t *testing.T) *clusterconfig.Record {
	t.Helper()
	b, err := clusterconfig.New(context.Background(), clusterconfig.Inputs{
		Name:      "etl",
		Namespace: "analytics",
		Tags:      map[string]string{"team": "data"},
	}, nil)
	if err != nil {
		t.Fatalf("new configuration: %v", err)
	}
	return b.Record()
}

type fakeConfigs map[string]*domain.Configuration

func (f fakeConfigs) Get(_ context.Context, namespace, name string) (*domain.Configuration, error) {
	cfg, ok := f[namespace+"/"+name]
	if !ok {
		return nil, errors.New("not found")
	}
	return cfg, nil
}

func newRunner(t *testing.T, checker ClusterChecker) *coordinator.Coordinator {
	t.Helper()
	reg := invoke.NewRegistry(slog.Default())
	Register(reg, checker, slog.Default())

	var c *coordinator.Coordinator
	starter := invoke.Func(func(_ context.Context, req *invoke.Request) (any, error) {
		payload := req.Payload.(map[string]any)
		cfg := payload["ClusterConfig"].(map[string]any)
		go func() {
			_, _ = c.Complete(context.Background(), req.Token, invoke.Success(map[string]any{
				"ClusterId":   "j-1",
				"ClusterName": cfg["Name"],
			}))
		}()
		return nil, nil
	})

	router := invoke.NewRouter().Handle("local", reg).Handle("queue", starter)
	c = coordinator.New(coordinator.Config{Invoker: router})
	reg.SetCompleter(c)
	return c
}

// --- LaunchCluster Tests ---

func TestLaunchCluster_Shape(t *testing.T) {
	g, err := LaunchCluster(context.Background(), testRecord(t), nil, LaunchOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if g.Entry() != NodeOverrideClusterConfigs {
		t.Errorf("unexpected entry %s", g.Entry())
	}
	if g.SharedFail() != NodeLaunchFailure {
		t.Errorf("unexpected shared fail %s", g.SharedFail())
	}

	start, ok := g.Node(NodeStartCluster)
	if !ok || start.Kind != workflow.KindAsyncTask || start.Resource != DefaultStartCluster {
		t.Fatalf("unexpected start node %+v", start)
	}
	if start.Parameters["TaskToken.$"] != "$$.Task.Token" {
		t.Error("start node must receive the task token")
	}
	check, _ := g.Node(NodeFailIfClusterRunning)
	if check.Catch == nil || check.Catch.Target != NodeLaunchFailure {
		t.Errorf("check node must be caught by %s, got %+v", NodeLaunchFailure, check.Catch)
	}
}

func TestLaunchCluster_EndpointsFromParameters(t *testing.T) {
	resolver := param.Static{ParamStartCluster: "https://launcher.internal/start"}
	g, err := LaunchCluster(context.Background(), testRecord(t), resolver, LaunchOptions{
		OverrideClusterConfigs: "local:custom-override",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	cases := map[string]string{
		NodeOverrideClusterConfigs: "local:custom-override",
		NodeFailIfClusterRunning:   DefaultFailIfClusterRunning,
		NodeStartCluster:           "https://launcher.internal/start",
	}
	for id, want := range cases {
		n, _ := g.Node(id)
		if n.Resource != want {
			t.Errorf("%s resource = %s, want %s", id, n.Resource, want)
		}
	}
}

func TestLaunchCluster_ResolverError(t *testing.T) {
	boom := errors.New("redis down")
	resolver := param.Func(func(context.Context, string) (string, error) { return "", boom })
	if _, err := LaunchCluster(context.Background(), testRecord(t), resolver, LaunchOptions{}); !errors.Is(err, boom) {
		t.Errorf("expected resolver error, got %v", err)
	}
}

func TestLaunchCluster_Run(t *testing.T) {
	g, err := LaunchCluster(context.Background(), testRecord(t), nil, LaunchOptions{
		ClusterTags: map[string]string{"owner": "launchpad"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	c := newRunner(t, CheckerFunc(func(context.Context, string) (bool, error) { return false, nil }))
	input := map[string]any{
		InputOverrides: map[string]any{"ClusterName": "etl-adhoc"},
	}
	res, err := c.Run(context.Background(), "run-1", g, input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != coordinator.RunSucceeded || res.Terminal != NodeLaunchSucceeded {
		t.Fatalf("expected success, got %s at %s (%v)", res.Status, res.Terminal, res.Error)
	}

	data := res.Output.(map[string]any)
	result := data["Result"].(map[string]any)
	if result["ClusterId"] != "j-1" || result["ClusterName"] != "etl-adhoc" {
		t.Errorf("unexpected result %#v", result)
	}
	tags := data["ClusterConfig"].(map[string]any)["Tags"].([]any)
	if len(tags) != 2 {
		t.Errorf("expected configuration and function tags, got %#v", tags)
	}
}

func TestLaunchCluster_ClusterRunning(t *testing.T) {
	g, err := LaunchCluster(context.Background(), testRecord(t), nil, LaunchOptions{DefaultFailIfClusterRunning: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	c := newRunner(t, CheckerFunc(func(_ context.Context, name string) (bool, error) { return name == "etl", nil }))
	res, err := c.Run(context.Background(), "run-1", g, map[string]any{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != coordinator.RunFailed || res.Terminal != NodeLaunchFailure {
		t.Fatalf("expected failure, got %s at %s", res.Status, res.Terminal)
	}
	if res.Error["Error"] != ErrorClusterRunning || res.Error["Node"] != NodeFailIfClusterRunning {
		t.Errorf("unexpected error %#v", res.Error)
	}
}

func TestLaunchCluster_InputDisablesCheck(t *testing.T) {
	g, err := LaunchCluster(context.Background(), testRecord(t), nil, LaunchOptions{DefaultFailIfClusterRunning: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	c := newRunner(t, CheckerFunc(func(context.Context, string) (bool, error) { return true, nil }))
	res, err := c.Run(context.Background(), "run-1", g, map[string]any{InputFailIfClusterRunning: false})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != coordinator.RunSucceeded {
		t.Errorf("execution input should disable the check, got %s (%v)", res.Status, res.Error)
	}
}

// --- Handler Tests ---

func TestOverrideClusterConfigs_UnknownOverride(t *testing.T) {
	document, err := recordPayload(testRecord(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = OverrideClusterConfigs(context.Background(), map[string]any{
		"ExecutionInput": map[string]any{InputOverrides: map[string]any{"NoSuchOverride": 1}},
		"ClusterConfig":  document,
	})

	var terr *invoke.TaskError
	if !errors.As(err, &terr) || terr.Kind != ErrorOverride {
		t.Errorf("expected %s task error, got %v", ErrorOverride, err)
	}
}

func TestOverrideClusterConfigs_DefaultOverrides(t *testing.T) {
	document, err := recordPayload(testRecord(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := OverrideClusterConfigs(context.Background(), map[string]any{
		"ExecutionInput":   map[string]any{},
		"ClusterConfig":    document,
		"DefaultOverrides": map[string]any{"ClusterName": "from-function"},
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if name := out.(map[string]any)["Name"]; name != "from-function" {
		t.Errorf("unexpected name %v", name)
	}
}

func TestOverrideClusterConfigs_MissingConfig(t *testing.T) {
	if _, err := OverrideClusterConfigs(context.Background(), map[string]any{}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestMergeTags(t *testing.T) {
	existing := []any{
		map[string]any{"Key": "team", "Value": "data"},
		map[string]any{"Key": "env", "Value": "dev"},
	}
	got := mergeTags(existing, map[string]string{"env": "prod", "cost": "etl"})

	want := []string{"team=data", "env=prod", "cost=etl"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tags, got %#v", len(want), got)
	}
	for i, w := range want {
		tag := got[i].(map[string]any)
		if tag["Key"].(string)+"="+tag["Value"].(string) != w {
			t.Errorf("tag %d = %v, want %s", i, tag, w)
		}
	}
}

func TestFailIfClusterRunning_CheckerError(t *testing.T) {
	boom := errors.New("db down")
	h := FailIfClusterRunning(CheckerFunc(func(context.Context, string) (bool, error) { return false, boom }), nil)
	_, err := h(context.Background(), map[string]any{
		"DefaultFailIfClusterRunning": true,
		"ClusterConfig":               map[string]any{"Name": "etl"},
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected checker error, got %v", err)
	}
}

// --- Phases Tests ---

func TestPhaseResultPath(t *testing.T) {
	cases := map[string]string{
		"Prepare":   "$.Result.Prepare",
		"load data": "$.Result['load data']",
		"step-2":    "$.Result['step-2']",
	}
	for phase, want := range cases {
		if got := PhaseResultPath(phase); got != want {
			t.Errorf("PhaseResultPath(%q) = %s, want %s", phase, got, want)
		}
	}
}

func TestPhases_Run(t *testing.T) {
	phases := []domain.Phase{
		{Name: "Prepare", Steps: []domain.Step{
			{Name: "first", Resource: "local:echo", Parameters: map[string]any{"n": 1}},
			{Name: "second", Resource: "local:echo", Parameters: map[string]any{"n": 2}},
		}},
		{Name: "Load", Steps: []domain.Step{
			{Name: "load", Resource: "local:echo", Parameters: map[string]any{"prev.$": "$.Result.Prepare[1].n"}},
		}},
	}
	g, err := Phases(phases, PhaseOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	c := newRunner(t, nil)
	res, err := c.Run(context.Background(), "run-1", g, map[string]any{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != coordinator.RunSucceeded || res.Terminal != NodePipelineSucceeded {
		t.Fatalf("expected success, got %s at %s (%v)", res.Status, res.Terminal, res.Error)
	}

	result := res.Output.(map[string]any)["Result"].(map[string]any)
	prepare := result["Prepare"].([]any)
	if len(prepare) != 2 || prepare[0].(map[string]any)["n"] != 1 {
		t.Errorf("unexpected Prepare result %#v", prepare)
	}
	load := result["Load"].([]any)
	if load[0].(map[string]any)["prev"] != 2 {
		t.Errorf("Load should see Prepare output, got %#v", load)
	}
}

func TestPhases_AsyncStepGetsToken(t *testing.T) {
	g, err := Phases([]domain.Phase{{Name: "Wait", Steps: []domain.Step{
		{Name: "callback", Resource: "queue:delay", Async: true, TimeoutSec: 30},
	}}}, PhaseOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	n, _ := g.Node("callback")
	if n.Kind != workflow.KindAsyncTask || n.TimeoutSec != 30 {
		t.Errorf("unexpected node %+v", n)
	}
	if n.Parameters["TaskToken.$"] != "$$.Task.Token" {
		t.Errorf("async step must receive the task token, got %#v", n.Parameters)
	}
}

// --- Build Tests ---

func TestBuild_LaunchCluster(t *testing.T) {
	doc, err := json.Marshal(testRecord(t))
	if err != nil {
		t.Fatal(err)
	}
	configs := fakeConfigs{"analytics/etl": {Namespace: "analytics", Name: "etl", Document: doc}}
	fn := &domain.LaunchFunction{
		Namespace: "analytics",
		Name:      "start-etl",
		Spec:      domain.LaunchSpec{Kind: domain.KindLaunchCluster, Configuration: "etl", StartTimeoutSec: 600},
	}

	g, err := Build(context.Background(), fn, configs, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	start, _ := g.Node(NodeStartCluster)
	if start.TimeoutSec != 600 {
		t.Errorf("unexpected start timeout %d", start.TimeoutSec)
	}
}

func TestBuild_MissingConfiguration(t *testing.T) {
	fn := &domain.LaunchFunction{
		Namespace: "analytics",
		Name:      "start-etl",
		Spec:      domain.LaunchSpec{Kind: domain.KindLaunchCluster, Configuration: "missing"},
	}
	if _, err := Build(context.Background(), fn, fakeConfigs{}, nil); err == nil {
		t.Error("expected error for missing configuration")
	}
}

func TestBuild_Invalid(t *testing.T) {
	fn := &domain.LaunchFunction{Name: "x", Spec: domain.LaunchSpec{Kind: "cron"}}
	if _, err := Build(context.Background(), fn, nil, nil); !errors.Is(err, domain.ErrInvalidLaunchFunction) {
		t.Errorf("expected ErrInvalidLaunchFunction, got %v", err)
	}
}
