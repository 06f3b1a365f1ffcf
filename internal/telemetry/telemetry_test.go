package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- Logging Tests ---

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"INFO+2", slog.LevelInfo + 2},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			if got := LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	if FromContextOr(context.Background(), fallback) != fallback {
		t.Error("empty context should return fallback")
	}
	if FromContextOr(context.Background(), nil) != slog.Default() {
		t.Error("nil fallback should return default logger")
	}

	scoped := NodeLogger(fallback, "run-1", "launch")
	ctx := WithLogger(context.Background(), scoped)
	if FromContextOr(ctx, fallback) != scoped {
		t.Error("context logger should win over fallback")
	}
	if FromContext(ctx) != scoped {
		t.Error("FromContext should return context logger")
	}
}

func TestNodeLogger_Attributes(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	NodeLogger(logger, "run-1", "start").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "run_id=run-1") || !strings.Contains(out, "node_id=start") {
		t.Errorf("missing attributes in %q", out)
	}
}

// --- ServiceMux Tests ---

func TestServiceMux(t *testing.T) {
	mux := ServiceMux(time.Now())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "ok") {
		t.Errorf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	ObserveRun("SUCCEEDED", 2*time.Second)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `launchpad_runs_total{status="SUCCEEDED"}`) {
		t.Error("metrics should expose launchpad_runs_total")
	}
}
