package workflow

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// --- Builder Tests ---

func TestBuilder_Chain(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Task("B", "local:b", WithResultPath("$.Result"))
	b.Succeed("Done")
	b.Chain("A", "B", "Done")

	g, err := b.Build("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Entry() != "A" {
		t.Errorf("expected entry A, got %s", g.Entry())
	}
	a, _ := g.Node("A")
	if a.Next != "B" {
		t.Errorf("expected A.next = B, got %s", a.Next)
	}

	want := []string{"A", "B", "Done", "Fail"}
	got := g.Order()
	if len(got) != len(want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBuilder_ImplicitCatch(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Succeed("Done")
	b.Chain("A", "Done")

	g, err := b.Build("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.SharedFail() != SharedFailID {
		t.Errorf("expected shared fail %s, got %s", SharedFailID, g.SharedFail())
	}
	a, _ := g.Node("A")
	if a.Catch == nil || a.Catch.Target != SharedFailID || a.Catch.ErrorPath != DefaultErrorPath {
		t.Errorf("expected implicit catch to %s at %s, got %+v", SharedFailID, DefaultErrorPath, a.Catch)
	}
	done, _ := g.Node("Done")
	if done.Catch != nil {
		t.Error("terminal nodes should not receive catch")
	}
}

func TestBuilder_DeclaredSharedFail(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Succeed("Done")
	b.Fail("Launch Cluster Failure", WithNotification("Launch failed", "$.Error"))
	b.Chain("A", "Done")

	g, err := b.Build("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.SharedFail() != "Launch Cluster Failure" {
		t.Errorf("unexpected shared fail %s", g.SharedFail())
	}
	if _, ok := g.Node(SharedFailID); ok {
		t.Error("implicit Fail node should not be created when one is declared")
	}
}

func TestBuilder_ExplicitCatchKept(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Task("Cleanup", "local:cleanup")
	b.Succeed("Done")
	b.Chain("A", "Done")
	b.Link("Cleanup", "Done")
	b.AttachCatch("A", "Cleanup", "$.Failure")

	g, err := b.Build("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := g.Node("A")
	if a.Catch.Target != "Cleanup" || a.Catch.ErrorPath != "$.Failure" {
		t.Errorf("explicit catch replaced: %+v", a.Catch)
	}
	cleanup, _ := g.Node("Cleanup")
	if cleanup.Catch == nil || cleanup.Catch.Target != SharedFailID {
		t.Error("cleanup should receive implicit catch")
	}
}

func TestBuilder_CycleDetected(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Task("B", "local:b")
	b.Task("C", "local:c")
	b.Chain("A", "B", "C")

	// C → A замыкает цикл на предка.
	b.Link("C", "A")

	if !errors.Is(b.Err(), ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", b.Err())
	}
	if _, err := b.Build("A"); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Build should return ErrCycleDetected, got %v", err)
	}
}

func TestBuilder_CycleThroughCatch(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Task("B", "local:b")
	b.Link("A", "B")
	b.AttachCatch("B", "A", "")

	if !errors.Is(b.Err(), ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", b.Err())
	}
}

func TestBuilder_SelfLink(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Link("A", "A")

	if !errors.Is(b.Err(), ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", b.Err())
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder) error
		want  error
	}{
		{
			name: "duplicate ID",
			build: func(b *Builder) error {
				b.Task("A", "local:a")
				b.Task("A", "local:b")
				return b.Err()
			},
			want: ErrDuplicateNodeID,
		},
		{
			name: "link unknown",
			build: func(b *Builder) error {
				b.Task("A", "local:a")
				b.Link("A", "missing")
				return b.Err()
			},
			want: ErrUnknownNode,
		},
		{
			name: "next already set",
			build: func(b *Builder) error {
				b.Task("A", "local:a")
				b.Succeed("S1")
				b.Succeed("S2")
				b.Link("A", "S1").Link("A", "S2")
				return b.Err()
			},
			want: ErrNextAlreadySet,
		},
		{
			name: "terminal next",
			build: func(b *Builder) error {
				b.Succeed("S")
				b.Task("A", "local:a")
				b.Link("S", "A")
				return b.Err()
			},
			want: ErrTerminalNext,
		},
		{
			name: "catch on terminal",
			build: func(b *Builder) error {
				b.Succeed("S")
				b.Fail("F")
				b.AttachCatch("S", "F", "")
				return b.Err()
			},
			want: ErrInvalidCatchTarget,
		},
		{
			name: "invalid error path",
			build: func(b *Builder) error {
				b.Task("A", "local:a")
				b.Fail("F")
				b.AttachCatch("A", "F", "$..Error")
				return b.Err()
			},
			want: ErrInvalidDataPath,
		},
		{
			name: "unreachable node",
			build: func(b *Builder) error {
				b.Task("A", "local:a")
				b.Task("Orphan", "local:o")
				b.Succeed("S")
				b.Chain("A", "S")
				_, err := b.Build("A")
				return err
			},
			want: ErrDanglingNode,
		},
		{
			name: "top-level node without next",
			build: func(b *Builder) error {
				b.Task("A", "local:a")
				_, err := b.Build("A")
				return err
			},
			want: ErrDanglingNode,
		},
		{
			name: "missing resource",
			build: func(b *Builder) error {
				b.Task("A", "")
				b.Succeed("S")
				b.Chain("A", "S")
				_, err := b.Build("A")
				return err
			},
			want: ErrMissingResource,
		},
		{
			name: "unknown entry",
			build: func(b *Builder) error {
				_, err := b.Build("nope")
				return err
			},
			want: ErrUnknownNode,
		},
		{
			name: "branch joins top level",
			build: func(b *Builder) error {
				b.Task("B0", "local:b0")
				b.Succeed("S")
				b.Link("B0", "S")
				b.Parallel("P", []string{"B0"})
				b.Link("P", "S")
				_, err := b.Build("P")
				return err
			},
			want: ErrCrossBlock,
		},
		{
			name: "invalid result path",
			build: func(b *Builder) error {
				b.Task("A", "local:a", WithResultPath("$.items[*]"))
				b.Succeed("S")
				b.Chain("A", "S")
				_, err := b.Build("A")
				return err
			},
			want: ErrInvalidDataPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(NewBuilder())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuilder_ValidationErrorFields(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Link("A", "missing")

	var verr *ValidationError
	if !errors.As(b.Err(), &verr) {
		t.Fatalf("expected ValidationError, got %T", b.Err())
	}
	if verr.NodeID != "A" || verr.Field != "next" {
		t.Errorf("unexpected fields: %+v", verr)
	}
}

// --- Parallel / Chain Tests ---

func TestBuilder_Parallel(t *testing.T) {
	b := NewBuilder()
	b.Task("B0", "local:b0")
	b.Task("B1", "local:b1")
	b.Task("B1.next", "local:b1-next")
	b.Link("B1", "B1.next")
	b.Parallel("P", []string{"B0", "B1"}, WithResultPath("$.Result.Phase1"))
	b.Succeed("Done")
	b.Chain("P", "Done")

	g, err := b.Build("P")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.TopLevel("B0") || g.TopLevel("B1.next") {
		t.Error("branch nodes should not be top level")
	}
	if !g.TopLevel("P") {
		t.Error("parallel node should be top level")
	}
	b0, _ := g.Node("B0")
	if b0.Catch != nil {
		t.Error("branch nodes should not receive implicit catch")
	}
	p, _ := g.Node("P")
	if p.Catch == nil || p.Catch.Target != SharedFailID {
		t.Error("parallel node should receive implicit catch")
	}
}

func TestBuilder_BranchLocalCatch(t *testing.T) {
	b := NewBuilder()
	b.Task("B0", "local:b0")
	b.Succeed("B0.recovered")
	b.AttachCatch("B0", "B0.recovered", "$.Error")
	b.Parallel("P", []string{"B0"})
	b.Succeed("Done")
	b.Chain("P", "Done")

	if _, err := b.Build("P"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuilder_ChainBlock(t *testing.T) {
	b := NewBuilder()
	b.Task("Step1", "local:s1")
	b.Task("Step2", "local:s2")
	b.Link("Step1", "Step2")
	b.ChainBlock("Setup", "Step1")
	b.Succeed("Done")
	b.Chain("Setup", "Done")

	g, err := b.Build("Setup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.TopLevel("Step2") {
		t.Error("body nodes should not be top level")
	}
	if g.Len() != 5 {
		t.Errorf("expected 5 nodes, got %d", g.Len())
	}
}

func TestBuilder_BuildDoesNotMutate(t *testing.T) {
	b := NewBuilder()
	b.Task("A", "local:a")
	b.Succeed("Done")
	b.Chain("A", "Done")

	g1, err := b.Build("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2, err := b.Build("A")
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if g1.Len() != g2.Len() {
		t.Errorf("repeated builds differ: %d vs %d", g1.Len(), g2.Len())
	}
	if n := b.nodes["A"]; n.Catch != nil {
		t.Error("builder state should not receive the implicit catch")
	}
}

// --- Definition Tests ---

func TestGraph_LoadRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Task("Override", "local:override-cluster-configs",
		WithResultPath("$.ClusterConfig"),
		WithParameters(map[string]any{"config.$": "$.ClusterConfig"}))
	b.AsyncTask("Start", "queue:start-cluster", WithTimeout(time.Hour))
	b.Succeed("Done", WithNotification("Launch Cluster Succeeded", "$.Result"))
	b.Fail("Failed", WithNotification("Launch Cluster Failure", "$.Error"))
	b.Chain("Override", "Start", "Done")

	g, err := b.Build("Override")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	loaded, err := Load(&def)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.SharedFail() != "Failed" {
		t.Errorf("unexpected shared fail %s", loaded.SharedFail())
	}
	start, _ := loaded.Node("Start")
	if start.Timeout() != time.Hour {
		t.Errorf("unexpected timeout %v", start.Timeout())
	}
	orig, got := g.Order(), loaded.Order()
	if len(orig) != len(got) {
		t.Fatalf("order mismatch: %v vs %v", orig, got)
	}
	for i := range orig {
		if orig[i] != got[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], orig[i])
		}
	}
}
