package param

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shaiso/Launchpad/internal/kv"
)

// --- EnvName Tests ---

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"/launchpad/control_plane/endpoints/run_job_flow": "LAUNCHPAD_CONTROL_PLANE_ENDPOINTS_RUN_JOB_FLOW",
		"subnet-id":   "SUBNET_ID",
		"already_OK9": "ALREADY_OK9",
		"trailing/":   "TRAILING",
	}
	for in, want := range tests {
		if got := EnvName(in); got != want {
			t.Errorf("EnvName(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- Resolver Tests ---

func TestStatic_Resolve(t *testing.T) {
	s := Static{"a": "1"}

	v, err := s.Resolve(context.Background(), "a")
	if err != nil || v != "1" {
		t.Errorf("expected 1, got %q (%v)", v, err)
	}
	if _, err := s.Resolve(context.Background(), "b"); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("expected ErrParameterNotFound, got %v", err)
	}
}

func TestEnv_Resolve(t *testing.T) {
	env := &Env{
		Prefix: "LP_",
		lookup: func(key string) (string, bool) {
			if key == "LP_SUBNET_ID" {
				return "subnet-123", true
			}
			return "", false
		},
	}

	v, err := env.Resolve(context.Background(), "subnet-id")
	if err != nil || v != "subnet-123" {
		t.Errorf("expected subnet-123, got %q (%v)", v, err)
	}
	if _, err := env.Resolve(context.Background(), "other"); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("expected ErrParameterNotFound, got %v", err)
	}
}

func TestChain_Resolve(t *testing.T) {
	boom := errors.New("boom")
	chain := Chain{
		Static{"a": "first"},
		Static{"a": "second", "b": "second"},
		Func(func(_ context.Context, name string) (string, error) {
			if name == "c" {
				return "", boom
			}
			return "", ErrParameterNotFound
		}),
	}

	ctx := context.Background()
	if v, _ := chain.Resolve(ctx, "a"); v != "first" {
		t.Errorf("first source should win, got %q", v)
	}
	if v, _ := chain.Resolve(ctx, "b"); v != "second" {
		t.Errorf("expected fallback to second source, got %q", v)
	}
	if _, err := chain.Resolve(ctx, "c"); !errors.Is(err, boom) {
		t.Errorf("unexpected errors must stop the chain, got %v", err)
	}
	if _, err := chain.Resolve(ctx, "d"); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("expected ErrParameterNotFound, got %v", err)
	}
}

func TestRedis_Resolve(t *testing.T) {
	if os.Getenv("REDIS_URL") == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := kv.NewClient(ctx)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer client.Close()

	key := "launchpad:test:parameters"
	defer client.Del(ctx, key)

	r := NewRedis(client, key)
	if err := r.Put(ctx, "endpoint", "http://example"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if v, err := r.Resolve(ctx, "endpoint"); err != nil || v != "http://example" {
		t.Errorf("expected http://example, got %q (%v)", v, err)
	}
	if _, err := r.Resolve(ctx, "missing"); !errors.Is(err, ErrParameterNotFound) {
		t.Errorf("expected ErrParameterNotFound, got %v", err)
	}
}
