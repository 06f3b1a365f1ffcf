package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Launchpad/internal/mq"
)

const defaultPrefetch = 5

// CompletionPublisher публикует завершения шагов в steps.completed.
type CompletionPublisher interface {
	PublishStepCompleted(ctx context.Context, payload mq.StepCompletedPayload) error
}

// Worker выполняет асинхронные шаги.
//
// Worker — stateless компонент системы, который:
//   - Получает шаги из очереди steps.invoke
//   - Выполняет шаг executor'ом по имени ресурса
//   - Реализует retry с exponential backoff
//   - Публикует завершение с токеном в steps.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	publisher CompletionPublisher
	conn      *mq.Connection
	registry  *Registry
	retry     *RetryPolicy
	prefetch  int

	consumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Publisher CompletionPublisher
	Conn      *mq.Connection

	// Registry (опционально; если nil — используется NewRegistry())
	Registry *Registry

	// Retry — политика повторов; nil — одна попытка.
	Retry *RetryPolicy

	// Prefetch — шагов в работе одновременно на одном воркере (default: 5).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Worker{
		publisher: cfg.Publisher,
		conn:      cfg.Conn,
		registry:  registry,
		retry:     cfg.Retry,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает consumer steps.invoke.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"executors", w.registry.Names(),
		"prefetch", w.prefetch,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:       mq.QueueStepsInvoke,
		Handler:     w.handleStepInvoke,
		Prefetch:    w.prefetch,
		Concurrency: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("step consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущих шагов.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
