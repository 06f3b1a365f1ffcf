// Launchpad Scheduler — запускает launch-функции по расписанию.
//
// Расписания читаются из SCHEDULES_FILE. Тики выполняет только лидер:
// лидерство удерживается через pg_try_advisory_lock.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/scheduler"
	"github.com/shaiso/Launchpad/internal/telemetry"
)

const schedLockKey int64 = 424242

func main() {
	startTime := time.Now()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger("launchpad-scheduler")
	logger.Info("starting launchpad-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := os.Getenv("SCHEDULES_FILE")
	if path == "" {
		path = "schedules.yaml"
	}
	schedules, err := scheduler.LoadFile(path)
	if err != nil {
		logger.Error("failed to load schedules", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("schedules loaded", "path", path, "count", len(schedules))

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// RabbitMQ (опционально: без него runs забирает polling orchestrator'а)
	var publisher scheduler.Publisher
	mqConn, err := mq.Dial(ctx, logger, 3)
	if err != nil {
		logger.Warn("RabbitMQ not available, relying on orchestrator polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	sched, err := scheduler.New(scheduler.Config{
		Schedules: schedules,
		Runs:      repo.NewRunRepo(pool),
		Functions: repo.NewLaunchFunctionRepo(pool),
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	go runLeaderLoop(ctx, pool, sched, logger)

	// HTTP mux: /healthz + /metrics
	mux := telemetry.ServiceMux(startTime)

	port := ":8084"
	if v := os.Getenv("SCHEDULER_PORT"); v != "" {
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

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info("launchpad-scheduler stopped")
}

// runLeaderLoop раз в секунду пытается стать лидером и выполняет тик.
func runLeaderLoop(ctx context.Context, pool *pgxpool.Pool, sched *scheduler.Scheduler, logger *slog.Logger) {
	lock := repo.NewLeaderLock(pool, schedLockKey)
	defer lock.Close(context.Background())

	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	var leader bool
	for {
		select {
		case <-tk.C:
			// пытаемся стать лидером (или подтвердить лидерство)
			ok, err := lock.TryAcquire(ctx)
			if err != nil {
				logger.Warn("leader lock check failed", "error", err)
			}
			if ok != leader {
				logger.Info("scheduler leadership changed", "leader", ok)
				leader = ok
			}
			if !leader {
				// не лидер — пропускаем тик
				continue
			}

			if err := sched.Tick(ctx); err != nil && ctx.Err() == nil {
				logger.Error("scheduler tick failed", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}
