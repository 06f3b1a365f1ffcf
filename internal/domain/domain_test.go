package domain

import (
	"errors"
	"testing"
	"time"
)

// --- LaunchFunction Tests ---

func TestLaunchFunction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fn      LaunchFunction
		wantErr bool
	}{
		{
			name: "launch cluster",
			fn:   LaunchFunction{Name: "launch-basic", Spec: LaunchSpec{Kind: KindLaunchCluster, Configuration: "basic"}},
		},
		{
			name:    "launch cluster without configuration",
			fn:      LaunchFunction{Name: "launch-basic", Spec: LaunchSpec{Kind: KindLaunchCluster}},
			wantErr: true,
		},
		{
			name: "pipeline",
			fn: LaunchFunction{Name: "pipe", Spec: LaunchSpec{Kind: KindPipeline, Phases: []Phase{
				{Name: "Phase1", Steps: []Step{{Name: "s1", Resource: "local:echo"}}},
			}}},
		},
		{
			name: "pipeline duplicate step",
			fn: LaunchFunction{Name: "pipe", Spec: LaunchSpec{Kind: KindPipeline, Phases: []Phase{
				{Name: "Phase1", Steps: []Step{{Name: "s1", Resource: "local:echo"}}},
				{Name: "Phase2", Steps: []Step{{Name: "s1", Resource: "local:echo"}}},
			}}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			fn:      LaunchFunction{Name: "x", Spec: LaunchSpec{Kind: "terraform"}},
			wantErr: true,
		},
		{
			name:    "missing name",
			fn:      LaunchFunction{Spec: LaunchSpec{Kind: KindLaunchCluster, Configuration: "basic"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidLaunchFunction) {
				t.Errorf("expected ErrInvalidLaunchFunction, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLaunchFunction_ConfigurationRef(t *testing.T) {
	fn := LaunchFunction{Namespace: "analytics", Spec: LaunchSpec{Configuration: "etl"}}
	ns, name := fn.ConfigurationRef()
	if ns != "analytics" || name != "etl" {
		t.Errorf("unexpected ref %s/%s", ns, name)
	}

	fn.Spec.ConfigurationNamespace = "shared"
	if ns, _ := fn.ConfigurationRef(); ns != "shared" {
		t.Errorf("expected explicit namespace, got %s", ns)
	}
}

// --- Run Tests ---

func TestRun_Lifecycle(t *testing.T) {
	run := NewRun("default", "launch-basic", nil)
	if run.Status != RunStatusPending || run.Input == nil {
		t.Fatalf("unexpected new run %+v", run)
	}

	run.MarkRunning()
	if run.StartedAt == nil || run.IsFinished() {
		t.Error("running run should have StartedAt and not be finished")
	}

	run.MarkFailed("Launch Cluster Failure", nil, map[string]any{"Error": "TaskFailed"})
	if !run.IsFinished() || run.Status != RunStatusFailed || run.Error["Error"] != "TaskFailed" {
		t.Errorf("unexpected failed run %+v", run)
	}
	if run.Duration() < 0 {
		t.Error("duration must not be negative")
	}
}

func TestRunStatus(t *testing.T) {
	if RunStatusRunning.IsTerminal() || !RunStatusCancelled.IsTerminal() {
		t.Error("unexpected IsTerminal result")
	}
	if RunStatus("DONE").IsValid() {
		t.Error("unknown status must be invalid")
	}
}

// --- Schedule Tests ---

func TestSchedule_IsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	s := &Schedule{Name: "nightly", CronExpr: "0 2 * * *", NextDueAt: &past}
	if !s.IsDue(now) {
		t.Error("schedule should be due")
	}
	s.Disabled = true
	if s.IsDue(now) {
		t.Error("disabled schedule must not be due")
	}

	s = &Schedule{Name: "fresh"}
	if s.IsDue(now) {
		t.Error("schedule without NextDueAt must not be due")
	}
}

func TestClusterStatus_IsActive(t *testing.T) {
	if !ClusterStatusStarting.IsActive() || ClusterStatusTerminated.IsActive() {
		t.Error("unexpected IsActive result")
	}
}
