package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики Launchpad.
var (
	// RunsTotal — завершённые runs по статусу.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_runs_total",
		Help: "Finished runs by terminal status",
	}, []string{"status"})

	// RunDuration — длительность runs.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "launchpad_run_duration_seconds",
		Help:    "Run duration from entry to terminal node",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// NodeExecutionsTotal — выполнения узлов по виду и статусу.
	NodeExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_node_executions_total",
		Help: "Workflow node executions by kind and status",
	}, []string{"kind", "status"})

	// TokenAnomaliesTotal — повторные и неизвестные токены завершения.
	TokenAnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_token_anomalies_total",
		Help: "Completion callbacks for unknown or already used tokens",
	}, []string{"reason"})

	// PendingTokens — ожидающие токены в этом процессе.
	PendingTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_pending_tokens",
		Help: "Async nodes awaiting a completion callback",
	})

	// NotificationsFailedTotal — неудачные уведомления.
	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "launchpad_notifications_failed_total",
		Help: "Notifications that could not be delivered",
	})

	// WorkerStepsTotal — шаги исполнителя по executor и статусу.
	WorkerStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_worker_steps_total",
		Help: "Async steps executed by the worker",
	}, []string{"executor", "status"})

	// HTTPRequestsTotal — запросы HTTP API.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_api_http_requests_total",
		Help: "HTTP requests handled by launchpad-api",
	}, []string{"route", "status"})

	// MessagesTotal — обработанные сообщения очередей по результату.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_mq_messages_total",
		Help: "Consumed queue messages by outcome (ack, requeue, dead)",
	}, []string{"queue", "result"})

	// ScheduledRunsTotal — срабатывания расписаний по результату.
	ScheduledRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "launchpad_scheduled_runs_total",
		Help: "Schedule firings by outcome (created, duplicate, skipped, failed)",
	}, []string{"schedule", "result"})
)

// ObserveRun учитывает завершённый run.
func ObserveRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration.Seconds())
}

// ServiceMux возвращает mux с /healthz и /metrics.
func ServiceMux(started time.Time) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(started).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
