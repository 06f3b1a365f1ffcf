// Launchpad API — HTTP API конфигураций, launch-функций и runs.
//
// API:
//   - Хранит конфигурации кластеров и launch-функции в Postgres
//   - Создаёт runs и публикует run.pending в RabbitMQ
//   - Принимает завершения асинхронных шагов по токену корреляции
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Launchpad/internal/api"
	"github.com/shaiso/Launchpad/internal/kv"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/telemetry"
)

func main() {
	startTime := time.Now()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger("launchpad-api")
	logger.Info("starting launchpad-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// RabbitMQ
	mqConn, err := mq.Dial(ctx, logger, 10)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	// Параметры: Redis (если задан REDIS_URL), затем переменные окружения
	resolver := param.Chain{}
	if kv.Enabled() {
		client, err := kv.NewClient(ctx)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		resolver = append(resolver, param.NewRedis(client, ""))
		logger.Info("redis parameter store enabled")
	}
	resolver = append(resolver, param.NewEnv())

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Configurations: repo.NewConfigurationRepo(pool),
		Functions:      repo.NewLaunchFunctionRepo(pool),
		Runs:           repo.NewRunRepo(pool),
		Nodes:          repo.NewNodeExecutionRepo(pool),
		Publisher:      publisher,
		Resolver:       resolver,
		Logger:         logger,
	})

	// Health и metrics
	mux := telemetry.ServiceMux(startTime)

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("launchpad-api stopped")
}
