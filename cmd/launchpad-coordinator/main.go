// Launchpad Coordinator — выполняет runs launch-функций.
//
// Coordinator:
//   - Получает новые runs из RabbitMQ (и polling'ом из БД)
//   - Строит граф по launch-функции и хранимой конфигурации
//   - Выполняет граф, ожидая завершения асинхронных шагов по токенам
//   - Сохраняет итог run и историю выполнения узлов
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Launchpad/internal/coordinator"
	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/kv"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/notify"
	"github.com/shaiso/Launchpad/internal/orchestrator"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/pipeline"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/telemetry"
	"github.com/shaiso/Launchpad/internal/tokens"
)

func main() {
	startTime := time.Now()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger("launchpad-coordinator")
	logger.Info("starting launchpad-coordinator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	runRepo := repo.NewRunRepo(pool)
	functionRepo := repo.NewLaunchFunctionRepo(pool)
	configRepo := repo.NewConfigurationRepo(pool)
	nodeRepo := repo.NewNodeExecutionRepo(pool)
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

	// Redis: таблица токенов и параметры (опционально)
	resolver := param.Chain{}
	var table tokens.Table
	if kv.Enabled() {
		client, err := kv.NewClient(ctx)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		table = tokens.NewRedis(client, tokens.RedisConfig{TTL: 7 * 24 * time.Hour})
		resolver = append(resolver, param.NewRedis(client, ""))
		logger.Info("redis token table enabled")
	}
	resolver = append(resolver, param.NewEnv())

	// Вызовы узлов: local, http(s), queue
	local := invoke.NewRegistry(logger)
	pipeline.Register(local, clusterRepo, logger)

	httpInvoker := invoke.NewHTTP(invoke.HTTPConfig{})
	router := invoke.NewRouter().
		Handle("local", local).
		Handle("http", httpInvoker).
		Handle("https", httpInvoker).
		Handle("queue", invoke.NewQueue(publisher))

	coord := coordinator.New(coordinator.Config{
		Invoker:  router,
		Notifier: notify.Multi{notify.NewLog(logger), notify.NewQueue(publisher)},
		Tokens:   table,
		Observer: orchestrator.NewRecorder(nodeRepo, logger),
		Logger:   logger,
	})
	local.SetCompleter(coord)

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Runs:        runRepo,
		Functions:   functionRepo,
		Configs:     configRepo,
		Resolver:    resolver,
		Coordinator: coord,
		Publisher:   publisher,
		Conn:        mqConn,
		Logger:      logger,
	})

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := telemetry.ServiceMux(startTime)

	port := ":8083"
	if v := os.Getenv("COORDINATOR_PORT"); v != "" {
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

	// Останавливаем orchestrator
	orch.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info("launchpad-coordinator stopped")
}
