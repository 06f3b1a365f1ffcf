// Launchpad Worker — выполняет асинхронные шаги launch-функций.
//
// Worker:
//   - Получает шаги из очереди steps.invoke
//   - Выполняет executor'ом по имени ресурса (start-cluster, forward, http, delay)
//   - Реализует retry с exponential backoff
//   - Публикует завершение с токеном в steps.completed
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/pipeline"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/telemetry"
	"github.com/shaiso/Launchpad/internal/worker"
)

func main() {
	startTime := time.Now()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger("launchpad-worker")
	logger.Info("starting launchpad-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool: реестр запущенных кластеров
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	clusterRepo := repo.NewClusterRepo(pool)

	// RabbitMQ
	mqConn, err := mq.Dial(ctx, logger, 10)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	// Executors
	registry := worker.NewRegistry()
	registry.Register("forward", &worker.ForwardExecutor{URL: os.Getenv("FORWARD_URL")})
	registry.Register("start-cluster", &worker.StartClusterExecutor{Store: clusterRepo})
	registry.Register(pipeline.HandlerOverrideClusterConfigs,
		&worker.HandlerExecutor{Handler: pipeline.OverrideClusterConfigs})
	registry.Register(pipeline.HandlerFailIfClusterRunning,
		&worker.HandlerExecutor{Handler: pipeline.FailIfClusterRunning(clusterRepo, logger)})

	w := worker.New(worker.Config{
		Publisher: publisher,
		Conn:      mqConn,
		Registry:  registry,
		Retry: &worker.RetryPolicy{
			MaxAttempts:  3,
			Backoff:      "exponential",
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
		},
		Logger: logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := telemetry.ServiceMux(startTime)

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	server := &http.Server{Addr: port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info("launchpad-worker stopped")
}
