package repo

import (
	"context"
	"errors"
	"testing"
)

// --- Helper Tests ---

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string should map to NULL")
	}
	if got := nullString("x"); got == nil || *got != "x" {
		t.Errorf("unexpected value %v", got)
	}
}

func TestMarshalNullable(t *testing.T) {
	var nilMap map[string]any
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"nil map", nilMap, ""},
		{"empty map", map[string]any{}, "{}"},
		{"scalar", "ok", `"ok"`},
		{"list", []any{1, "a"}, `[1,"a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalNullable(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnmarshalNullable(t *testing.T) {
	dst := map[string]any{"keep": true}
	if err := unmarshalNullable(nil, &dst); err != nil || dst["keep"] != true {
		t.Errorf("NULL must leave destination untouched, got %v %v", dst, err)
	}

	var out any
	if err := unmarshalNullable([]byte(`{"ClusterId":"j-1"}`), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(map[string]any)["ClusterId"] != "j-1" {
		t.Errorf("unexpected value %#v", out)
	}
}

// --- DB Tests ---

func TestNewPool_InvalidMaxConns(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "many")
	if _, err := NewPool(context.Background()); err == nil {
		t.Error("expected error for invalid DB_MAX_CONNS")
	}
}

func TestLeaderLock_ReleaseWithoutAcquire(t *testing.T) {
	lock := NewLeaderLock(nil, 42)
	if err := lock.Release(context.Background()); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got %v", err)
	}
	// Close без соединения ничего не делает
	lock.Close(context.Background())
}
