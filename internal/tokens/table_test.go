package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/kv"
)

// --- Memory Tests ---

func TestMemory_PutTake(t *testing.T) {
	testTable(t, NewMemory())
}

func TestMemory_ConcurrentTake(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Put(ctx, "tok-1", Entry{RunID: "run-1", NodeID: "Start"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Из нескольких одновременных доставок токен получает ровно одна.
	var wg sync.WaitGroup
	var taken atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Take(ctx, "tok-1"); err == nil {
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	if taken.Load() != 1 {
		t.Errorf("expected exactly one take, got %d", taken.Load())
	}
}

// --- Redis Tests ---

func TestRedis_PutTake(t *testing.T) {
	if !kv.Enabled() {
		t.Skip("REDIS_URL not set")
	}
	client, err := kv.NewClient(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	testTable(t, NewRedis(client, RedisConfig{Prefix: "launchpad:test:" + uuid.NewString() + ":"}))
}

func testTable(t *testing.T, table Table) {
	t.Helper()
	ctx := context.Background()

	if err := table.Put(ctx, "tok-1", Entry{RunID: "run-1", NodeID: "Start Cluster"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := table.Put(ctx, "tok-1", Entry{RunID: "run-2"}); !errors.Is(err, ErrTokenExists) {
		t.Errorf("expected ErrTokenExists, got %v", err)
	}
	if n, _ := table.Len(ctx); n != 1 {
		t.Errorf("expected 1 pending token, got %d", n)
	}

	entry, err := table.Take(ctx, "tok-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if entry.RunID != "run-1" || entry.NodeID != "Start Cluster" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}

	if _, err := table.Take(ctx, "tok-1"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("second take should fail with ErrUnknownToken, got %v", err)
	}
	if n, _ := table.Len(ctx); n != 0 {
		t.Errorf("expected no pending tokens, got %d", n)
	}
}
