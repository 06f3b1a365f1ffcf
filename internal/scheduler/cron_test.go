package scheduler

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/shaiso/Launchpad/internal/domain"
)

// --- CalculateNextDue Tests ---

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{Name: "nightly", CronExpr: "0 2 * * *"}
	from := time.Date(2026, 3, 10, 1, 59, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}
	want := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	next, _ = CalculateNextDue(sched, want)
	if !next.Equal(want.Add(24 * time.Hour)) {
		t.Errorf("cron must move strictly forward, got %v", next)
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Moscow"); err != nil {
		t.Skip("tzdata not available")
	}
	sched := &domain.Schedule{Name: "nightly", CronExpr: "0 2 * * *", Timezone: "Europe/Moscow"}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}
	// 02:00 MSK = 23:00 UTC предыдущего дня
	want := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if next.Location() != time.UTC {
		t.Error("next due must be returned in UTC")
	}
}

func TestCalculateNextDue_NoTiming(t *testing.T) {
	if _, err := CalculateNextDue(&domain.Schedule{Name: "x"}, time.Now()); err == nil {
		t.Error("expected error for schedule without cron or interval")
	}
}

func TestCalculateNextDue_IntervalGrid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := rapid.IntRange(1, 86400).Draw(t, "interval")
		offset := rapid.Int64Range(0, 10*365*24*3600).Draw(t, "offset")
		from := time.Unix(1_700_000_000+offset, 0).UTC()
		sched := &domain.Schedule{Name: "grid", IntervalSec: sec}

		next, err := CalculateNextDue(sched, from)
		if err != nil {
			t.Fatalf("CalculateNextDue: %v", err)
		}
		d := time.Duration(sec) * time.Second
		if !next.After(from) || next.Sub(from) > d {
			t.Fatalf("next %v out of (from, from+interval] for from %v", next, from)
		}
		// Любая точка внутри слота даёт то же время
		again, _ := CalculateNextDue(sched, next.Add(-time.Nanosecond))
		if !again.Equal(next) {
			t.Fatalf("slot not stable: %v vs %v", again, next)
		}
	})
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{"*/5 * * * *", "0 2 * * 1-5", "@daily"}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("%q: unexpected error %v", expr, err)
		}
	}
	if err := ValidateCronExpr("61 * * * *"); err == nil {
		t.Error("expected error for minute 61")
	}
}
