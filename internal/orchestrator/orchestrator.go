package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/coordinator"
	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/pipeline"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
	defaultMaxHops      = 10
	finishTimeout       = 10 * time.Second
)

// RunStore — хранилище runs.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	Start(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	CancelPending(ctx context.Context, run *domain.Run, reason string) error
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
}

// FunctionStore — хранилище launch-функций.
type FunctionStore interface {
	Get(ctx context.Context, namespace, name string) (*domain.LaunchFunction, error)
}

// CompletionPublisher переотправляет завершения шагов.
type CompletionPublisher interface {
	PublishStepCompleted(ctx context.Context, payload mq.StepCompletedPayload) error
}

// Orchestrator управляет жизненным циклом runs.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback)
//   - Атомарно забирает run (PENDING → RUNNING)
//   - Строит граф launch-функции и выполняет его через Coordinator
//   - Доставляет завершения асинхронных шагов из steps.completed
//   - Отменяет runs по запросам из runs.cancel
//   - Сохраняет итог run (SUCCEEDED/FAILED/CANCELLED)
//
// Несколько экземпляров безопасны: run выполняет тот, кто первым
// перевёл его в RUNNING.
type Orchestrator struct {
	runs      RunStore
	functions FunctionStore
	configs   pipeline.ConfigStore
	resolver  param.Resolver
	coord     *coordinator.Coordinator

	publisher CompletionPublisher
	conn      *mq.Connection

	// Причины отмены активных runs (runID → reason).
	cancelReasons map[string]string
	mu            sync.Mutex

	// Consumers
	runConsumer    *mq.Consumer
	stepConsumer   *mq.Consumer
	cancelConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int
	maxHops      int

	// Lifecycle
	logger     *slog.Logger
	baseCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	runsWG     sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	Runs      RunStore
	Functions FunctionStore
	Configs   pipeline.ConfigStore

	// Resolver — параметры ресурсов шагов (nil — значения по умолчанию).
	Resolver param.Resolver

	// Coordinator выполняет графы.
	Coordinator *coordinator.Coordinator

	// MQ
	Publisher CompletionPublisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 100)

	// MaxHops — переотправок завершения без ожидающего узла (default: 10).
	MaxHops int

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxHops := cfg.MaxHops
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	coord := cfg.Coordinator
	if coord == nil {
		coord = coordinator.New(coordinator.Config{Logger: logger})
	}

	return &Orchestrator{
		runs:          cfg.Runs,
		functions:     cfg.Functions,
		configs:       cfg.Configs,
		resolver:      cfg.Resolver,
		coord:         coord,
		publisher:     cfg.Publisher,
		conn:          cfg.Conn,
		cancelReasons: make(map[string]string),
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		maxHops:       maxHops,
		logger:        logger,
		baseCtx:       context.Background(),
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для runs.pending
//   - Consumer для steps.completed
//   - Consumer для runs.cancel
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.baseCtx = ctx
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunsPending,
		Handler:  o.handleRunPending,
		Prefetch: 10,
	})
	o.stepConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueueStepsCompleted,
		Handler:  o.handleStepCompleted,
		Prefetch: 50,
	})
	o.cancelConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunsCancel,
		Handler:  o.handleRunCancel,
		Prefetch: 10,
	})

	for name, c := range map[string]*mq.Consumer{
		"run":    o.runConsumer,
		"step":   o.stepConsumer,
		"cancel": o.cancelConsumer,
	} {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("consumer error", "consumer", name, "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator. Выполняющиеся runs отменяются,
// их итог сохраняется до возврата.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...",
		"active_runs", len(o.coord.ActiveRuns()),
	)

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	for _, c := range []*mq.Consumer{o.runConsumer, o.stepConsumer, o.cancelConsumer} {
		if c != nil {
			c.Stop()
		}
	}

	o.wg.Wait()
	o.runsWG.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// Wait ждёт завершения запущенных runs.
func (o *Orchestrator) Wait() {
	o.runsWG.Wait()
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	runs, err := o.runs.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	o.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]
		if o.isRunActive(run.ID) {
			continue
		}
		if err := o.processRun(ctx, run.ID); err != nil && !errors.Is(err, ErrRunNotPending) {
			o.logger.Error("failed to process run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}

// isRunActive проверяет, выполняется ли run этим процессом.
func (o *Orchestrator) isRunActive(runID uuid.UUID) bool {
	_, ok := o.coord.RunState(runID.String())
	return ok
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	return len(o.coord.ActiveRuns())
}

// GetActiveRunStats возвращает статистику по активному run.
func (o *Orchestrator) GetActiveRunStats(runID uuid.UUID) (coordinator.RunStats, bool) {
	st, ok := o.coord.RunState(runID.String())
	if !ok {
		return coordinator.RunStats{}, false
	}
	return st.Stats(), true
}
