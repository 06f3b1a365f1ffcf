package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/telemetry"
)

// Результаты срабатывания расписания (метка result).
const (
	resultCreated   = "created"
	resultDuplicate = "duplicate"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

// RunStore — хранилище runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByIdempotencyKey(ctx context.Context, namespace, launchFunction, key string) (*domain.Run, error)
}

// FunctionStore — хранилище launch-функций.
type FunctionStore interface {
	Get(ctx context.Context, namespace, name string) (*domain.LaunchFunction, error)
}

// Publisher публикует run.pending.
type Publisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
}

// Scheduler — планировщик, создающий runs по расписаниям из файла.
//
// Состояние расписаний (NextDueAt, LastRunAt) хранится в памяти.
// Пропущенные за время простоя срабатывания не догоняются: после
// старта первым считается ближайшее будущее время.
type Scheduler struct {
	schedules []domain.Schedule
	runs      RunStore
	functions FunctionStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []domain.Schedule
	Runs      RunStore
	Functions FunctionStore
	Publisher Publisher // может быть nil: orchestrator заберёт run polling'ом
	Logger    *slog.Logger
	Now       func() time.Time // по умолчанию time.Now
}

// New создаёт Scheduler и вычисляет первое время запуска каждого расписания.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		schedules: make([]domain.Schedule, len(cfg.Schedules)),
		runs:      cfg.Runs,
		functions: cfg.Functions,
		publisher: cfg.Publisher,
		logger:    logger,
		now:       now,
	}
	copy(s.schedules, cfg.Schedules)

	start := now()
	for i := range s.schedules {
		sched := &s.schedules[i]
		if sched.Namespace == "" {
			sched.Namespace = "default"
		}
		next, err := CalculateNextDue(sched, start)
		if err != nil {
			return nil, err
		}
		sched.NextDueAt = &next
	}
	return s, nil
}

// Schedules возвращает снимок состояния расписаний.
func (s *Scheduler) Schedules() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

// Tick выполняет один тик планировщика.
//
// Для каждого наступившего расписания:
//  1. Создаёт PENDING run с ключом идемпотентности "{name}_{due_unix}"
//  2. Сдвигает NextDueAt
//  3. Публикует run.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var due, created int
	for i := range s.schedules {
		sched := &s.schedules[i]
		if !sched.IsDue(now) {
			continue
		}
		due++

		runCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule", sched.Name,
				"error", err,
			)
			telemetry.ScheduledRunsTotal.WithLabelValues(sched.Name, resultFailed).Inc()
			continue
		}
		if runCreated {
			created++
		}
	}

	if due > 0 {
		s.logger.Info("scheduler tick completed",
			"due", due,
			"runs_created", created,
		)
	}
	return ctx.Err()
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если run был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	dueAt := *sched.NextDueAt

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		return false, fmt.Errorf("calculate next due: %w", err)
	}

	// 1. Launch-функция должна существовать
	if _, err := s.functions.Get(ctx, sched.Namespace, sched.LaunchFunction); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("launch function not found for schedule, skipping",
				"schedule", sched.Name,
				"namespace", sched.Namespace,
				"launch_function", sched.LaunchFunction,
			)
			sched.NextDueAt = &nextDue
			telemetry.ScheduledRunsTotal.WithLabelValues(sched.Name, resultSkipped).Inc()
			return false, nil
		}
		return false, fmt.Errorf("get launch function: %w", err)
	}

	// 2. Один run на расписание и момент времени
	idempKey := IdempotencyKey(sched.Name, dueAt)

	existing, err := s.runs.GetByIdempotencyKey(ctx, sched.Namespace, sched.LaunchFunction, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	if existing != nil {
		s.logger.Debug("run already exists (idempotency)",
			"schedule", sched.Name,
			"run_id", existing.ID,
			"idempotency_key", idempKey,
		)
		sched.RecordRun(now, nextDue)
		telemetry.ScheduledRunsTotal.WithLabelValues(sched.Name, resultDuplicate).Inc()
		return false, nil
	}

	run := domain.NewRun(sched.Namespace, sched.LaunchFunction, copyInput(sched.Input))
	run.IdempotencyKey = idempKey

	if err := s.runs.Create(ctx, run); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Другой экземпляр успел раньше
			sched.RecordRun(now, nextDue)
			telemetry.ScheduledRunsTotal.WithLabelValues(sched.Name, resultDuplicate).Inc()
			return false, nil
		}
		return false, fmt.Errorf("create run: %w", err)
	}

	s.logger.Info("created run from schedule",
		"run_id", run.ID,
		"schedule", sched.Name,
		"launch_function", sched.LaunchFunction,
		"due_at", dueAt,
	)

	// 3. Следующее время выполнения
	sched.RecordRun(now, nextDue)
	telemetry.ScheduledRunsTotal.WithLabelValues(sched.Name, resultCreated).Inc()

	// 4. Публикуем событие
	if s.publisher != nil {
		if err := s.publisher.PublishRunPending(ctx, run.ID); err != nil {
			// Run уже в БД, orchestrator заберёт его polling'ом
			s.logger.Warn("failed to publish run.pending",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
	return true, nil
}

// IdempotencyKey возвращает ключ идемпотентности запуска по расписанию.
func IdempotencyKey(name string, dueAt time.Time) string {
	return fmt.Sprintf("%s_%d", name, dueAt.Unix())
}

// copyInput копирует верхний уровень входных данных, чтобы runs не делили map.
func copyInput(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
